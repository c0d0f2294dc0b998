// Package classify は質問発話の銘柄関連分類を提供する。
//
// 分類結果はstock_cls（銘柄質問か否か）とclicked_logs（アプリ内の
// 銘柄ボタンクリック経由か否か）の2テーブルに記録される。
package classify

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/hitoshi/convlog/internal/llm"
	"github.com/hitoshi/convlog/internal/repository"
)

var (
	// suffixPattern は単一トークン質問の末尾から除去する補助語。
	suffixPattern = regexp.MustCompile(`(뉴스|주식|정보|분석)$`)
	// clickedPattern は銘柄ボタンクリック時に発話へ残る表現。
	clickedPattern = regexp.MustCompile(`\(KR:\d+\)`)
)

// stockGuideline は銘柄質問分類のシステムプロンプト。
// 応答はoまたはxの1文字に制限する。
const stockGuideline = `당신은 증권사 챗봇의 질문 분류기입니다. ` +
	`사용자 질문이 특정 증권 종목에 대한 분석/시세/정보 질문이면 'o', ` +
	`그렇지 않으면 'x'만 답하세요. 다른 텍스트는 출력하지 마세요.`

// LoadTickerList は銘柄名一覧ファイル（1行1銘柄）を読み込む。
func LoadTickerList(path string) (map[string]bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("銘柄一覧ファイルを開けません: %w", err)
	}
	defer f.Close()

	tickers := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			tickers[name] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("銘柄一覧ファイルの読み取りに失敗しました: %w", err)
	}
	return tickers, nil
}

// Service は質問分類ジョブ。
// 指定パーティションの未分類の質問を分類し結果を保存する。
type Service struct {
	convRepo repository.ConvLogRepository
	clsRepo  repository.ClassificationRepository
	llm      llm.Client
	tickers  map[string]bool
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
// tickersは銘柄名の集合。nilの場合は単一トークン照合を行わない。
func NewService(
	convRepo repository.ConvLogRepository,
	clsRepo repository.ClassificationRepository,
	llmClient llm.Client,
	tickers map[string]bool,
	logger *slog.Logger,
) *Service {
	return &Service{
		convRepo: convRepo,
		clsRepo:  clsRepo,
		llm:      llmClient,
		tickers:  tickers,
		logger:   logger,
	}
}

// Run は指定パーティション（YYYYMMDD）の質問を分類する。
// 応答レコードと分類済みの質問はスキップする。戻り値は処理件数。
func (s *Service) Run(ctx context.Context, partition string) (int, error) {
	records, err := s.convRepo.ListQuestionsByPartition(ctx, partition)
	if err != nil {
		return 0, fmt.Errorf("分類対象の取得に失敗しました: %w", err)
	}

	processed := 0
	for _, record := range records {
		exists, err := s.clsRepo.ExistsStockCls(ctx, record.ConvID)
		if err != nil {
			return processed, fmt.Errorf("分類済み判定に失敗しました: %w", err)
		}
		if exists {
			continue
		}

		label := s.labelQuestion(ctx, record.Content)
		clicked := "x"
		if clickedPattern.MatchString(record.Content) {
			clicked = "o"
		}

		if err := s.clsRepo.InsertStockCls(ctx, record.ConvID, label); err != nil {
			return processed, fmt.Errorf("分類結果の保存に失敗しました: %w", err)
		}
		if err := s.clsRepo.InsertClicked(ctx, record.ConvID, clicked); err != nil {
			return processed, fmt.Errorf("クリック検出結果の保存に失敗しました: %w", err)
		}
		processed++
	}

	s.logger.Info("質問分類完了",
		"partition", partition,
		"processed", processed,
	)
	return processed, nil
}

// labelQuestion は質問が銘柄関連（o）か否（x）かを判定する。
// 単一トークンの質問は補助語を除去して銘柄一覧と照合し、
// それ以外はチャット補完APIに問い合わせる。
// API呼び出しが失敗した場合はxとして継続する。
func (s *Service) labelQuestion(ctx context.Context, content string) string {
	if len(strings.Fields(content)) == 1 {
		cleaned := suffixPattern.ReplaceAllString(strings.TrimSpace(content), "")
		if s.tickers[cleaned] {
			return "o"
		}
		return "x"
	}

	resp, err := s.llm.Complete(ctx, stockGuideline, content)
	if err != nil {
		s.logger.Warn("分類APIの呼び出しに失敗したためxとして扱います",
			"error", err,
		)
		return "x"
	}
	if strings.TrimSpace(strings.ToLower(resp)) == "o" {
		return "o"
	}
	return "x"
}
