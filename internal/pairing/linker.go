// Package pairing は同一バッチ内のQ/Aレコードの連結を提供する。
// 各Aレコードに対応するQレコードのフィンガープリントをpair_refとして
// 付与し、保存後も質問と応答を突合できるようにする。
package pairing

import (
	"log/slog"
	"strconv"

	"github.com/hitoshi/convlog/internal/model"
)

// Linker はQ/Aペアの連結器。バッチ単位で使い捨てる。
// レコードは「質問の直後にその応答が続く」順序で渡されることを前提と
// する。順序が崩れたバッチではpair_refがNULLのまま残るが、致命エラー
// にはしない（連結失敗として件数を報告する）。
type Linker struct {
	logger *slog.Logger
}

// NewLinker はLinkerの新しいインスタンスを生成する。
func NewLinker(logger *slog.Logger) *Linker {
	return &Linker{logger: logger}
}

// Link はバッチ内の各AレコードにQレコードのフィンガープリントを
// pair_refとして付与する。戻り値は連結に失敗したAレコードの件数。
//
// グループ化キーは (user_id, 正規化済み日時, ペア順序) から導出する。
// QとAは内容が異なるためcontentはキーに使えない。ペア順序は
// バッチ内インデックスの半分（Q/Aが2件で1ペア）で決まる。
// 各レコードのFingerprintは事前に計算済みであること。
func (l *Linker) Link(records []*model.Record) int {
	questions := make(map[string]string, len(records)/2)
	failures := 0

	for i, rec := range records {
		key := pairKey(rec, i)

		switch rec.Role {
		case model.RoleQuestion:
			questions[key] = rec.Fingerprint
			rec.PairRef = ""
		case model.RoleAnswer:
			qFingerprint, ok := questions[key]
			if !ok {
				// バッチの切り詰めや順序崩れで対応するQが見つからない場合。
				// pair_refをNULLのままにして取り込みは継続する。
				failures++
				l.logger.Warn("Aレコードに対応するQレコードが見つかりません",
					slog.String("user_id", rec.UserID),
					slog.String("date", model.FeedTimeString(rec.Date)),
					slog.Int("batch_index", i),
				)
				rec.PairRef = ""
				continue
			}
			rec.PairRef = qFingerprint
		}
	}

	return failures
}

// pairKey はQ/Aペアのグループ化キーを導出する。
func pairKey(rec *model.Record, index int) string {
	return rec.UserID + "|" + model.FeedTimeString(rec.Date) + "|" + strconv.Itoa(index/2)
}
