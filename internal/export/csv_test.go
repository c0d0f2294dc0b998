package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hitoshi/convlog/internal/model"
)

// TestBackupFileName はバックアップファイル名の形式を検証する。
func TestBackupFileName(t *testing.T) {
	now := time.Date(2025, 9, 22, 14, 30, 45, 0, time.UTC)
	got := BackupFileName("conv_logs", now)
	want := "backup_conv_logs_20250922_143045.csv"
	if got != want {
		t.Errorf("BackupFileName = %q, want %q", got, want)
	}
}

// TestWriteBackupCSV はヘッダとレコードがCSVに書き出されることを検証する。
func TestWriteBackupCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backup", "backup_conv_logs_20250922_143045.csv")

	records := []*model.Record{
		{
			ConvID:      "20250922_00000",
			Fingerprint: "2a75cec4d1f94e6fb3a8c9d0e1f23456",
			Date:        time.Date(2025, 9, 22, 14, 30, 0, 0, model.LocationKST),
			Role:        model.RoleQuestion,
			Content:     "삼성전자 주가 알려줘",
			UserID:      "user-1",
			TenantID:    "ibk",
			CreatedAt:   time.Date(2025, 9, 22, 15, 0, 0, 0, time.UTC),
		},
		{
			ConvID:   "20250922_00001",
			PairRef:  "2a75cec4d1f94e6fb3a8c9d0e1f23456",
			Date:     time.Date(2025, 9, 22, 14, 30, 0, 0, model.LocationKST),
			Role:     model.RoleAnswer,
			Content:  "응답",
			TenantID: "ibk",
		},
	}

	count, err := WriteBackupCSV(path, records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("バックアップファイルを開けません: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("CSVの読み取りに失敗: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3（ヘッダ+2行）", len(rows))
	}
	if rows[0][0] != "conv_id" || rows[0][1] != "fingerprint" {
		t.Errorf("ヘッダ行が不正: %v", rows[0])
	}
	if rows[1][0] != "20250922_00000" {
		t.Errorf("rows[1][0] = %q, want %q", rows[1][0], "20250922_00000")
	}
	// フィンガープリントがNULLのレガシー行は空文字列で出力される
	if rows[2][1] != "" {
		t.Errorf("rows[2][1] = %q, want empty", rows[2][1])
	}
	if rows[2][2] != "2a75cec4d1f94e6fb3a8c9d0e1f23456" {
		t.Errorf("rows[2][2] = %q, want pair_ref", rows[2][2])
	}
}

// TestWriteBackupCSV_Empty はレコードなしでもヘッダのみのファイルが
// 作成されることを検証する。
func TestWriteBackupCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	count, err := WriteBackupCSV(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0", count)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("バックアップファイルを開けません: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("CSVの読み取りに失敗: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("len(rows) = %d, want 1（ヘッダのみ）", len(rows))
	}
}
