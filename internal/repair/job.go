// Package repair はレガシー会話ログの検査と修復を提供する。
//
// 旧バージョンのパイプラインは識別子にハッシュを埋め込んだ行や
// フィンガープリント未設定の行を残しており、修復ジョブはそれらを
// 分類 → バックアップ → バックフィル → 削除 → 検証 の順で処理する。
package repair

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hitoshi/convlog/internal/export"
	"github.com/hitoshi/convlog/internal/fingerprint"
	"github.com/hitoshi/convlog/internal/identifier"
	"github.com/hitoshi/convlog/internal/model"
	"github.com/hitoshi/convlog/internal/repository"
)

// maxSamples は検証時に警告ログへ載せる残存不正識別子の最大数。
const maxSamples = 5

// Report は修復実行1回分の集計結果。
type Report struct {
	// TotalRows は検査対象の全行数。
	TotalRows int
	// WellFormed は正常形式（YYYYMMDD_NNNNN）の識別子数。
	WellFormed int
	// HashCorrupted はハッシュが埋め込まれた破損識別子数。
	HashCorrupted int
	// OtherMalformed は上記以外の不正識別子数。
	OtherMalformed int
	// Backfilled はフィンガープリントを補完した行数。
	Backfilled int
	// SkippedDuplicate は補完時に重複のためスキップした行数。
	SkippedDuplicate int
	// Purged は削除した破損行数。
	Purged int
	// RemainingMalformed は修復後も残存する不正識別子数。
	RemainingMalformed int
	// BackupFile は変更前に出力したバックアップCSVのパス。プレビュー時は空。
	BackupFile string
	// BackupRows はバックアップに書き出した行数。
	BackupRows int
	// Samples は残存する不正識別子のサンプル（最大5件）。
	Samples []string
}

// Job はレガシーデータ修復ジョブ。
// Strictを有効にすると、ハッシュ破損行に加えてその他の不正形式行も削除する。
type Job struct {
	repo      repository.ConvLogRepository
	logger    *slog.Logger
	backupDir string
	strict    bool
}

// NewJob はJobの新しいインスタンスを生成する。
func NewJob(repo repository.ConvLogRepository, logger *slog.Logger, backupDir string, strict bool) *Job {
	return &Job{
		repo:      repo,
		logger:    logger,
		backupDir: backupDir,
		strict:    strict,
	}
}

// Preview は識別子の分類のみを行い、データを一切変更しない。
func (j *Job) Preview(ctx context.Context) (*Report, error) {
	report := &Report{}
	if _, err := j.classify(ctx, report); err != nil {
		return nil, err
	}

	j.logger.Info("修復プレビュー完了",
		"total_rows", report.TotalRows,
		"well_formed", report.WellFormed,
		"hash_corrupted", report.HashCorrupted,
		"other_malformed", report.OtherMalformed,
	)
	return report, nil
}

// Execute は修復を実行する。
// バックアップが失敗した場合はデータを変更せずに中断する。
// 削除は単一トランザクションで行い、部分削除は発生しない。
func (j *Job) Execute(ctx context.Context) (*Report, error) {
	report := &Report{}

	purgeTargets, err := j.classify(ctx, report)
	if err != nil {
		return nil, err
	}

	// バックアップ: 変更前の全行をCSVへ退避。失敗時はここで中断する
	if err := j.backup(ctx, report); err != nil {
		return nil, err
	}

	purgeSet := make(map[string]bool, len(purgeTargets))
	for _, id := range purgeTargets {
		purgeSet[id] = true
	}

	if err := j.backfill(ctx, report, purgeSet); err != nil {
		return report, err
	}

	if len(purgeTargets) > 0 {
		if err := j.repo.DeleteByIDs(ctx, purgeTargets); err != nil {
			return report, fmt.Errorf("破損行の削除に失敗しました: %w", err)
		}
		report.Purged = len(purgeTargets)
	}

	if err := j.verify(ctx, report); err != nil {
		return report, err
	}

	j.logger.Info("修復完了",
		"backfilled", report.Backfilled,
		"skipped_duplicate", report.SkippedDuplicate,
		"purged", report.Purged,
		"remaining_malformed", report.RemainingMalformed,
		"backup_file", report.BackupFile,
	)
	return report, nil
}

// classify は全識別子を分類し、削除対象のconv_id一覧を返す。
func (j *Job) classify(ctx context.Context, report *Report) ([]string, error) {
	ids, err := j.repo.ListIdentifiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("識別子一覧の取得に失敗しました: %w", err)
	}

	var purgeTargets []string
	report.TotalRows = len(ids)

	for _, id := range ids {
		switch identifier.Classify(id) {
		case identifier.ClassWellFormed:
			report.WellFormed++
		case identifier.ClassHashCorrupted:
			report.HashCorrupted++
			purgeTargets = append(purgeTargets, id)
		case identifier.ClassOtherMalformed:
			report.OtherMalformed++
			if j.strict {
				purgeTargets = append(purgeTargets, id)
			}
		}
	}

	return purgeTargets, nil
}

// backup は変更前の全行をタイムスタンプ付きCSVへ書き出す。
func (j *Job) backup(ctx context.Context, report *Report) error {
	records, err := j.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("バックアップ対象の取得に失敗しました: %w", err)
	}

	path := filepath.Join(j.backupDir, export.BackupFileName("conv_logs", time.Now()))
	rows, err := export.WriteBackupCSV(path, records)
	if err != nil {
		return fmt.Errorf("バックアップの書き出しに失敗しました: %w", err)
	}

	report.BackupFile = path
	report.BackupRows = rows
	j.logger.Info("バックアップ完了", "file", path, "rows", rows)
	return nil
}

// backfill はフィンガープリント未設定の行にフィンガープリントを補完する。
// 削除対象の行だけは補完せず、それ以外は識別子の形式を問わず補完する
// （非strict時に残存するその他不正形式行も重複排除の対象であり続けるため）。
// 補完値が既存のフィンガープリントと重複する場合はスキップして記録する。
// 設定済みのフィンガープリントは決して書き換えない。
func (j *Job) backfill(ctx context.Context, report *Report, purgeSet map[string]bool) error {
	existing, err := j.repo.ListFingerprints(ctx)
	if err != nil {
		return fmt.Errorf("既存フィンガープリントの取得に失敗しました: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, fp := range existing {
		seen[fp] = true
	}

	missing, err := j.repo.ListMissingFingerprint(ctx)
	if err != nil {
		return fmt.Errorf("補完対象の取得に失敗しました: %w", err)
	}

	for _, record := range missing {
		// この後削除する行は補完しない
		if purgeSet[record.ConvID] {
			continue
		}

		fp := fingerprint.Compute(record.UserID, record.Content, model.FeedTimeString(record.Date))
		if seen[fp] {
			report.SkippedDuplicate++
			continue
		}

		if err := j.repo.UpdateFingerprint(ctx, record.ConvID, fp); err != nil {
			return fmt.Errorf("フィンガープリントの補完に失敗しました: %w", err)
		}
		seen[fp] = true
		report.Backfilled++
	}

	return nil
}

// verify は修復後の識別子を再検査し、残存する不正識別子を警告する。
func (j *Job) verify(ctx context.Context, report *Report) error {
	ids, err := j.repo.ListIdentifiers(ctx)
	if err != nil {
		return fmt.Errorf("検証用の識別子一覧の取得に失敗しました: %w", err)
	}

	for _, id := range ids {
		if identifier.IsWellFormed(id) {
			continue
		}
		report.RemainingMalformed++
		if len(report.Samples) < maxSamples {
			report.Samples = append(report.Samples, id)
		}
	}

	if report.RemainingMalformed > 0 {
		j.logger.Warn("修復後も不正な識別子が残存しています",
			"remaining", report.RemainingMalformed,
			"samples", report.Samples,
		)
	}
	return nil
}
