// Package feed はチャット管理APIからの会話ログ取得機能を提供する。
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/doyensec/safeurl"
	"golang.org/x/time/rate"

	"github.com/hitoshi/convlog/internal/model"
)

// StatusRecorder は管理APIの応答ステータスコードを記録するインターフェース。
type StatusRecorder interface {
	RecordFeedHTTPStatus(statusCode int)
}

// Client はチャット管理APIのクライアント。
// テナントと日付範囲を指定して会話ログの一覧を取得する。
// レートリミッタにより管理APIへの連続アクセスを抑制する。
type Client struct {
	httpClient  *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	recorder    StatusRecorder
	baseURL     string
	bearerToken string
}

// NewClient はClientの新しいインスタンスを生成する。
// requestsPerSecondは管理APIへのリクエストレートの上限。
// recorderはnilの場合ステータスコードを記録しない。
func NewClient(
	httpClient *http.Client,
	logger *slog.Logger,
	recorder StatusRecorder,
	baseURL string,
	bearerToken string,
	requestsPerSecond float64,
) *Client {
	return &Client{
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:      logger,
		recorder:    recorder,
		baseURL:     baseURL,
		bearerToken: bearerToken,
	}
}

// NewSafeHTTPClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlによりプライベートIP、ループバック、リンクローカル、
// メタデータIPへのリクエストがブロックされる。
func NewSafeHTTPClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// FetchLogs は指定テナント・日付範囲の会話ログを取得する。
// 日付範囲はUTCの日付（YYYY-MM-DD）としてAPIに渡される。
// APIは会話ログのJSON配列を返す。
func (c *Client) FetchLogs(ctx context.Context, tenantID string, from, to time.Time) ([]model.FeedLog, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("レートリミッタの待機に失敗しました: %w", err)
	}

	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("管理API URLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("tenant_id", tenantID)
	q.Set("from_date_utc", from.UTC().Format("2006-01-02"))
	q.Set("to_date_utc", to.UTC().Format("2006-01-02"))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("管理APIの呼び出しに失敗しました",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("管理APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if c.recorder != nil {
		c.recorder.RecordFeedHTTPStatus(resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("管理APIがエラーステータスを返しました",
			slog.String("tenant_id", tenantID),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("管理APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var logs []model.FeedLog
	if err := json.Unmarshal(body, &logs); err != nil {
		c.logger.Error("管理APIのレスポンスのパースに失敗しました",
			slog.String("tenant_id", tenantID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	c.logger.Info("会話ログを取得しました",
		slog.String("tenant_id", tenantID),
		slog.Int("count", len(logs)),
	)

	return logs, nil
}
