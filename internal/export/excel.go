package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hitoshi/convlog/internal/model"
)

// ExcelFileName はExcel帳票のファイル名を生成する。
// 形式: convlog_{YYYYMMDD_HHMMSS}.xlsx
func ExcelFileName(now time.Time) string {
	return fmt.Sprintf("convlog_%s.xlsx", now.Format("20060102_150405"))
}

// WriteExcel は会話レコードの全件をExcelファイルに書き出す。
// 1行目に見出し、2行目以降にレコードを出力する。
// 戻り値は書き出した行数（見出しを除く）。
func WriteExcel(path string, records []*model.Record) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("出力先ディレクトリの作成に失敗しました: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"

	header := make([]interface{}, len(columnHeaders))
	for i, h := range columnHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return 0, fmt.Errorf("見出し行の書き出しに失敗しました: %w", err)
	}

	for i, record := range records {
		row := recordRow(record)
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, fmt.Errorf("セル座標の変換に失敗しました: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return 0, fmt.Errorf("データ行の書き出しに失敗しました: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return 0, fmt.Errorf("Excelファイルの保存に失敗しました: %w", err)
	}

	return len(records), nil
}
