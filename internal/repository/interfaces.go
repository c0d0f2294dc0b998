// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/convlog/internal/model"
)

// ConvLogRepository は会話ログデータの永続化インターフェース。
// 取り込みパイプラインと修復ジョブの両方から使用される。
type ConvLogRepository interface {
	// ExistsByFingerprint は指定フィンガープリントのレコードが既に存在するかを返す。
	// 重複判定の唯一の手段。conv_idやタイムスタンプでは判定しない。
	ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)

	// MaxSequence は指定パーティション（YYYYMMDD）内の連番の最大値を返す。
	// パーティションにレコードが存在しない場合は-1を返す。
	// 不正な形式のconv_idがパーティションに混在している場合はエラーを返す。
	MaxSequence(ctx context.Context, partition string) (int, error)

	// Insert は会話レコードを1件挿入する。
	Insert(ctx context.Context, record *model.Record) error

	// ListAll は全レコードをconv_id昇順で取得する。バックアップ出力用。
	ListAll(ctx context.Context) ([]*model.Record, error)

	// ListIdentifiers は全レコードのconv_idをconv_id昇順で取得する。
	// 識別子形式の検査に使用する。
	ListIdentifiers(ctx context.Context) ([]string, error)

	// ListMissingFingerprint はフィンガープリントがNULLのレコードを取得する。
	// バックフィル対象の列挙に使用する。
	ListMissingFingerprint(ctx context.Context) ([]*model.Record, error)

	// ListFingerprints はNULLでない全フィンガープリントを取得する。
	// バックフィル時の重複スキップ判定に使用する。
	ListFingerprints(ctx context.Context) ([]string, error)

	// UpdateFingerprint は指定conv_idのレコードにフィンガープリントを設定する。
	UpdateFingerprint(ctx context.Context, convID, fingerprint string) error

	// DeleteByIDs は指定conv_idのレコード群を単一トランザクションで削除する。
	// 1件でも失敗した場合は全件ロールバックする。
	DeleteByIDs(ctx context.Context, convIDs []string) error

	// ListQuestionsByPartition は指定パーティションの質問レコードを
	// conv_id昇順で取得する。分類ジョブの対象列挙に使用する。
	ListQuestionsByPartition(ctx context.Context, partition string) ([]*model.Record, error)
}

// ClassificationRepository は質問分類結果の永続化インターフェース。
type ClassificationRepository interface {
	// ExistsStockCls は指定conv_idの銘柄分類結果が既に存在するかを返す。
	ExistsStockCls(ctx context.Context, convID string) (bool, error)

	// InsertStockCls は銘柄分類結果（o/x）を1件挿入する。
	InsertStockCls(ctx context.Context, convID, label string) error

	// InsertClicked は銘柄コードクリックの検出結果（o/x）を1件挿入する。
	InsertClicked(ctx context.Context, convID, label string) error
}
