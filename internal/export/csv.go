// Package export は会話ログの帳票出力（CSVバックアップ・Excel）を提供する。
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hitoshi/convlog/internal/model"
)

// columnHeaders はバックアップ・帳票出力共通のカラム見出し。
// テーブルの全カラムをそのままの順で出力する。
var columnHeaders = []string{
	"conv_id", "fingerprint", "pair_ref", "date", "qa",
	"content", "user_id", "tenant_id", "created_at",
}

// BackupFileName はバックアップCSVのファイル名を生成する。
// 形式: backup_{テーブル名}_{YYYYMMDD_HHMMSS}.csv
func BackupFileName(table string, now time.Time) string {
	return fmt.Sprintf("backup_%s_%s.csv", table, now.Format("20060102_150405"))
}

// WriteBackupCSV は会話レコードの全件をCSVファイルに書き出す。
// 出力先ディレクトリが存在しない場合は作成する。
// 戻り値は書き出した行数（ヘッダを除く）。
func WriteBackupCSV(path string, records []*model.Record) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("バックアップディレクトリの作成に失敗しました: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("バックアップファイルの作成に失敗しました: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	if err := w.Write(columnHeaders); err != nil {
		return 0, fmt.Errorf("CSVヘッダの書き出しに失敗しました: %w", err)
	}

	for _, record := range records {
		if err := w.Write(recordRow(record)); err != nil {
			return 0, fmt.Errorf("CSV行の書き出しに失敗しました: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("CSVのフラッシュに失敗しました: %w", err)
	}

	return len(records), nil
}

// recordRow は会話レコードをカラム見出しと同じ順の文字列スライスに変換する。
func recordRow(record *model.Record) []string {
	return []string{
		record.ConvID,
		record.Fingerprint,
		record.PairRef,
		model.FeedTimeString(record.Date),
		string(record.Role),
		record.Content,
		record.UserID,
		record.TenantID,
		record.CreatedAt.Format(time.RFC3339),
	}
}
