// Package ingest は会話ログの取り込みパイプラインを提供する。
//
// 1往復分のフィードデータをQ/Aの2レコードに展開し、
// 正規化・フィンガープリント付与・ペア連結・重複排除を経て永続化する。
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/convlog/internal/fingerprint"
	"github.com/hitoshi/convlog/internal/identifier"
	"github.com/hitoshi/convlog/internal/model"
	"github.com/hitoshi/convlog/internal/pairing"
	"github.com/hitoshi/convlog/internal/repository"
	"github.com/hitoshi/convlog/internal/security"
)

// Summary は取り込み実行1回分の集計結果。
type Summary struct {
	// Total は展開された発話レコードの総数（スキップ分を含む）。
	Total int
	// New は新規に挿入されたレコード数。
	New int
	// Duplicate はフィンガープリント重複によりスキップされたレコード数。
	Duplicate int
	// PairingFailures は対応する質問が見つからなかった応答レコード数。
	PairingFailures int
	// Skipped は不正データのため展開段階で除外された発話数。
	Skipped int
}

// Service は取り込みパイプラインの調整役。
// 展開 → 正規化 → フィンガープリント → ペア連結 → 採番 → 重複判定 → 挿入
// の順で処理し、実行ごとの集計を返す。
type Service struct {
	repo      repository.ConvLogRepository
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger

	tenants       []string
	defaultTenant string
}

// NewService はServiceの新しいインスタンスを生成する。
// tenantsは既知のテナントID一覧、defaultTenantは未知テナントの正規化先。
func NewService(
	repo repository.ConvLogRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
	tenants []string,
	defaultTenant string,
) *Service {
	return &Service{
		repo:          repo,
		sanitizer:     sanitizer,
		logger:        logger,
		tenants:       tenants,
		defaultTenant: defaultTenant,
	}
}

// Ingest はフィードから受信した会話ログのバッチを取り込む。
// 空バッチは何も行わずゼロ値の集計を返す。
// 採番または挿入が失敗した場合はその時点までの集計とエラーを返す。
// 重複レコードも採番自体は消費するため、連番には欠番が生じ得る。
func (s *Service) Ingest(ctx context.Context, logs []model.FeedLog) (*Summary, error) {
	summary := &Summary{}
	if len(logs) == 0 {
		return summary, nil
	}

	runID := uuid.New().String()
	logger := s.logger.With("run_id", runID)

	records := s.expand(logs, summary, logger)
	summary.Total = len(records) + summary.Skipped

	summary.PairingFailures = pairing.NewLinker(logger).Link(records)

	assigner := identifier.NewAssigner(s.repo)
	now := time.Now()

	for _, record := range records {
		partition := model.PartitionKey(record.Date)

		convID, err := assigner.Next(ctx, partition)
		if err != nil {
			logger.Error("識別子の採番に失敗",
				"partition", partition,
				"error", err,
			)
			return summary, fmt.Errorf("識別子の採番に失敗しました: %w", err)
		}
		record.ConvID = convID

		exists, err := s.repo.ExistsByFingerprint(ctx, record.Fingerprint)
		if err != nil {
			return summary, fmt.Errorf("重複判定に失敗しました: %w", err)
		}
		if exists {
			summary.Duplicate++
			continue
		}

		record.CreatedAt = now
		if err := s.repo.Insert(ctx, record); err != nil {
			logger.Error("レコードの挿入に失敗",
				"conv_id", record.ConvID,
				"error", err,
			)
			return summary, fmt.Errorf("レコードの挿入に失敗しました: %w", err)
		}
		summary.New++
	}

	logger.Info("取り込み完了",
		"total", summary.Total,
		"new", summary.New,
		"duplicate", summary.Duplicate,
		"pairing_failures", summary.PairingFailures,
		"skipped", summary.Skipped,
	)

	return summary, nil
}

// expand は1往復分のフィードデータをQ/Aの2レコードに展開し正規化する。
// 日付が不正な往復は両発話ともスキップし、内容が空の発話は個別にスキップする。
func (s *Service) expand(logs []model.FeedLog, summary *Summary, logger *slog.Logger) []*model.Record {
	var records []*model.Record

	for _, log := range logs {
		parsed, err := model.ParseFeedTime(log.Date)
		if err != nil {
			logger.Warn("日付の解析に失敗したため往復をスキップ",
				"date", log.Date,
				"error", err,
			)
			summary.Skipped += 2
			continue
		}
		date := model.ToKST(parsed)

		userID := ""
		if log.UserID != nil {
			userID = *log.UserID
		}
		tenantID := ""
		if log.TenantID != nil {
			tenantID = *log.TenantID
		}
		tenantID = model.NormalizeTenant(tenantID, s.tenants, s.defaultTenant)

		for _, turn := range []struct {
			role    model.Role
			content string
		}{
			{model.RoleQuestion, log.Q},
			{model.RoleAnswer, log.A},
		} {
			content := s.sanitizer.Sanitize(turn.content)
			if content == "" {
				logger.Warn("内容が空の発話をスキップ",
					"role", string(turn.role),
					"date", log.Date,
				)
				summary.Skipped++
				continue
			}

			records = append(records, &model.Record{
				Fingerprint: fingerprint.Compute(userID, content, model.FeedTimeString(date)),
				Date:        date,
				Role:        turn.role,
				Content:     content,
				UserID:      userID,
				TenantID:    tenantID,
			})
		}
	}

	return records
}
