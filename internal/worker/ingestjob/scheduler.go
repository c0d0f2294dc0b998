// Package ingestjob は会話ログの定期取り込みジョブを提供する。
// ティッカーでテナントごとの当日分の取り込みと質問分類を実行する。
package ingestjob

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/convlog/internal/ingest"
	"github.com/hitoshi/convlog/internal/metrics"
	"github.com/hitoshi/convlog/internal/model"
)

// LogFetcher は管理APIからの会話ログ取得インターフェース。
type LogFetcher interface {
	FetchLogs(ctx context.Context, tenantID string, from, to time.Time) ([]model.FeedLog, error)
}

// LogIngester は会話ログバッチの取り込みインターフェース。
type LogIngester interface {
	Ingest(ctx context.Context, logs []model.FeedLog) (*ingest.Summary, error)
}

// QuestionClassifier は質問分類ジョブの実行インターフェース。
type QuestionClassifier interface {
	Run(ctx context.Context, partition string) (int, error)
}

// Scheduler は取り込みジョブのスケジューリングを行う。
// 多重実行は排他ロックで防止し、実行中に次のティックが来た場合はスキップする。
type Scheduler struct {
	fetcher    LogFetcher
	ingester   LogIngester
	classifier QuestionClassifier
	collector  metrics.MetricsCollector
	logger     *slog.Logger
	tenants    []string

	mu sync.Mutex
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// classifierがnilの場合は分類段階をスキップする。
func NewScheduler(
	fetcher LogFetcher,
	ingester LogIngester,
	classifier QuestionClassifier,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	tenants []string,
) *Scheduler {
	return &Scheduler{
		fetcher:    fetcher,
		ingester:   ingester,
		classifier: classifier,
		collector:  collector,
		logger:     logger,
		tenants:    tenants,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("tenant_count", len(s.tenants)),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("取り込みサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("取り込みサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全テナントのKST当日分を1回取り込み、質問分類を実行する。
// 前回の実行が継続中の場合は何もせずに戻る。
// テナント単位の失敗は記録して次のテナントへ継続する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.mu.TryLock() {
		s.logger.Warn("前回の取り込みが継続中のためスキップします")
		return nil
	}
	defer s.mu.Unlock()

	start := time.Now()
	nowKST := model.ToKST(start)
	partition := model.PartitionKey(nowKST)

	// KST当日の0時から翌日0時までを対象とする
	from := time.Date(nowKST.Year(), nowKST.Month(), nowKST.Day(), 0, 0, 0, 0, model.LocationKST)
	to := from.AddDate(0, 0, 1)

	for _, tenantID := range s.tenants {
		s.collector.RecordIngestRun(tenantID)

		logs, err := s.fetcher.FetchLogs(ctx, tenantID, from, to)
		if err != nil {
			s.collector.RecordIngestFailure(tenantID)
			s.logger.Error("会話ログの取得に失敗しました",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()),
			)
			continue
		}

		summary, err := s.ingester.Ingest(ctx, logs)
		if err != nil {
			s.collector.RecordIngestFailure(tenantID)
			s.logger.Error("会話ログの取り込みに失敗しました",
				slog.String("tenant_id", tenantID),
				slog.String("error", err.Error()),
			)
			continue
		}

		s.collector.RecordIngestSummary(summary.New, summary.Duplicate, summary.PairingFailures, summary.Skipped)
		s.logger.Info("テナントの取り込みが完了しました",
			slog.String("tenant_id", tenantID),
			slog.Int("new", summary.New),
			slog.Int("duplicate", summary.Duplicate),
		)
	}

	if s.classifier != nil {
		if _, err := s.classifier.Run(ctx, partition); err != nil {
			s.logger.Error("質問分類の実行に失敗しました",
				slog.String("partition", partition),
				slog.String("error", err.Error()),
			)
		}
	}

	s.collector.RecordIngestDuration(time.Since(start))
	return nil
}
