package ingestjob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/convlog/internal/ingest"
	"github.com/hitoshi/convlog/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockFetcher struct {
	mu      sync.Mutex
	logs    []model.FeedLog
	err     error
	calls   int
	tenants []string
	from    time.Time
	to      time.Time
}

func (m *mockFetcher) FetchLogs(ctx context.Context, tenantID string, from, to time.Time) ([]model.FeedLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.tenants = append(m.tenants, tenantID)
	m.from = from
	m.to = to
	if m.err != nil {
		return nil, m.err
	}
	return m.logs, nil
}

type mockIngester struct {
	mu      sync.Mutex
	summary *ingest.Summary
	err     error
	calls   int
	block   chan struct{}
}

func (m *mockIngester) Ingest(ctx context.Context, logs []model.FeedLog) (*ingest.Summary, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.block != nil {
		<-m.block
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.summary, nil
}

type mockClassifier struct {
	mu         sync.Mutex
	calls      int
	partitions []string
	err        error
}

func (m *mockClassifier) Run(ctx context.Context, partition string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.partitions = append(m.partitions, partition)
	if m.err != nil {
		return 0, m.err
	}
	return 1, nil
}

type mockCollector struct {
	mu        sync.Mutex
	runs      []string
	failures  []string
	summaries int
	durations int
	httpCalls int
}

func (m *mockCollector) RecordIngestRun(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, tenantID)
}

func (m *mockCollector) RecordIngestSummary(newCount, duplicate, pairingFailures, skipped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries++
}

func (m *mockCollector) RecordIngestFailure(tenantID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, tenantID)
}

func (m *mockCollector) RecordFeedHTTPStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.httpCalls++
}

func (m *mockCollector) RecordIngestDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations++
}

func TestScheduler_RunOnce_AllTenants(t *testing.T) {
	fetcher := &mockFetcher{logs: []model.FeedLog{{Date: "2025-09-22T10:00:00+09:00", Q: "질문", A: "답변"}}}
	ingester := &mockIngester{summary: &ingest.Summary{Total: 2, New: 2}}
	classifier := &mockClassifier{}
	collector := &mockCollector{}

	s := NewScheduler(fetcher, ingester, classifier, collector, testLogger(), []string{"ibk", "ibks"})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if fetcher.calls != 2 {
		t.Errorf("FetchLogs呼び出し回数: got %d, want 2", fetcher.calls)
	}
	if fetcher.tenants[0] != "ibk" || fetcher.tenants[1] != "ibks" {
		t.Errorf("テナントの順序が不正: %v", fetcher.tenants)
	}
	if ingester.calls != 2 {
		t.Errorf("Ingest呼び出し回数: got %d, want 2", ingester.calls)
	}
	if classifier.calls != 1 {
		t.Errorf("分類実行回数: got %d, want 1", classifier.calls)
	}
	if len(collector.runs) != 2 {
		t.Errorf("RecordIngestRun回数: got %d, want 2", len(collector.runs))
	}
	if collector.summaries != 2 {
		t.Errorf("RecordIngestSummary回数: got %d, want 2", collector.summaries)
	}
	if collector.durations != 1 {
		t.Errorf("RecordIngestDuration回数: got %d, want 1", collector.durations)
	}
}

func TestScheduler_RunOnce_FetchWindowIsKSTToday(t *testing.T) {
	fetcher := &mockFetcher{}
	ingester := &mockIngester{summary: &ingest.Summary{}}
	collector := &mockCollector{}

	s := NewScheduler(fetcher, ingester, nil, collector, testLogger(), []string{"ibk"})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	nowKST := model.ToKST(time.Now())
	wantFrom := time.Date(nowKST.Year(), nowKST.Month(), nowKST.Day(), 0, 0, 0, 0, model.LocationKST)
	if !fetcher.from.Equal(wantFrom) {
		t.Errorf("取得開始時刻: got %v, want %v", fetcher.from, wantFrom)
	}
	if !fetcher.to.Equal(wantFrom.AddDate(0, 0, 1)) {
		t.Errorf("取得終了時刻: got %v, want %v", fetcher.to, wantFrom.AddDate(0, 0, 1))
	}
}

func TestScheduler_RunOnce_FetchFailureContinues(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("接続エラー")}
	ingester := &mockIngester{summary: &ingest.Summary{}}
	collector := &mockCollector{}

	s := NewScheduler(fetcher, ingester, nil, collector, testLogger(), []string{"ibk", "ibks"})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if fetcher.calls != 2 {
		t.Errorf("失敗後も次のテナントを処理すべき: calls=%d", fetcher.calls)
	}
	if ingester.calls != 0 {
		t.Errorf("取得失敗時はIngestを呼ばない: calls=%d", ingester.calls)
	}
	if len(collector.failures) != 2 {
		t.Errorf("RecordIngestFailure回数: got %d, want 2", len(collector.failures))
	}
}

func TestScheduler_RunOnce_IngestFailureContinues(t *testing.T) {
	fetcher := &mockFetcher{}
	ingester := &mockIngester{err: errors.New("DB接続エラー")}
	classifier := &mockClassifier{}
	collector := &mockCollector{}

	s := NewScheduler(fetcher, ingester, classifier, collector, testLogger(), []string{"ibk"})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if len(collector.failures) != 1 {
		t.Errorf("RecordIngestFailure回数: got %d, want 1", len(collector.failures))
	}
	if collector.summaries != 0 {
		t.Errorf("取り込み失敗時はサマリを記録しない: %d", collector.summaries)
	}
	if classifier.calls != 1 {
		t.Errorf("取り込み失敗でも分類は実行する: calls=%d", classifier.calls)
	}
}

func TestScheduler_RunOnce_ClassifierFailureDoesNotAbort(t *testing.T) {
	fetcher := &mockFetcher{}
	ingester := &mockIngester{summary: &ingest.Summary{}}
	classifier := &mockClassifier{err: errors.New("分類エラー")}
	collector := &mockCollector{}

	s := NewScheduler(fetcher, ingester, classifier, collector, testLogger(), []string{"ibk"})

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("分類の失敗はサイクル全体を失敗させない: %v", err)
	}
	if collector.durations != 1 {
		t.Errorf("失敗後も実行時間を記録すべき: %d", collector.durations)
	}
}

func TestScheduler_RunOnce_SkipsWhenAlreadyRunning(t *testing.T) {
	block := make(chan struct{})
	fetcher := &mockFetcher{}
	ingester := &mockIngester{summary: &ingest.Summary{}, block: block}
	collector := &mockCollector{}

	s := NewScheduler(fetcher, ingester, nil, collector, testLogger(), []string{"ibk"})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.RunOnce(context.Background())
	}()

	// 1回目がIngestでブロックするのを待つ
	deadline := time.After(2 * time.Second)
	for {
		ingester.mu.Lock()
		started := ingester.calls > 0
		ingester.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("1回目の実行が開始されなかった")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("実行中のスキップはエラーにしない: %v", err)
	}

	close(block)
	wg.Wait()

	if ingester.calls != 1 {
		t.Errorf("多重実行が防止されていない: calls=%d", ingester.calls)
	}
}

func TestScheduler_Start_StopsOnContextCancel(t *testing.T) {
	fetcher := &mockFetcher{}
	ingester := &mockIngester{summary: &ingest.Summary{}}
	collector := &mockCollector{}

	s := NewScheduler(fetcher, ingester, nil, collector, testLogger(), []string{"ibk"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の即時実行を待つ
	deadline := time.After(2 * time.Second)
	for {
		fetcher.mu.Lock()
		started := fetcher.calls > 0
		fetcher.mu.Unlock()
		if started {
			break
		}
		select {
		case <-deadline:
			t.Fatal("起動直後の実行が行われなかった")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("コンテキストキャンセル後に停止しなかった")
	}
}
