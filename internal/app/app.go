package app

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/convlog/internal/classify"
	"github.com/hitoshi/convlog/internal/config"
	"github.com/hitoshi/convlog/internal/database"
	"github.com/hitoshi/convlog/internal/export"
	"github.com/hitoshi/convlog/internal/feed"
	"github.com/hitoshi/convlog/internal/handler"
	"github.com/hitoshi/convlog/internal/ingest"
	"github.com/hitoshi/convlog/internal/llm"
	"github.com/hitoshi/convlog/internal/logger"
	"github.com/hitoshi/convlog/internal/metrics"
	"github.com/hitoshi/convlog/internal/model"
	"github.com/hitoshi/convlog/internal/repair"
	"github.com/hitoshi/convlog/internal/repository"
	"github.com/hitoshi/convlog/internal/security"
	"github.com/hitoshi/convlog/internal/worker/ingestjob"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
	)

	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	switch cmd {
	case CommandIngest:
		return runIngest(cfg, rest)
	case CommandRepair:
		return runRepair(cfg, rest)
	case CommandExport:
		return runExport(cfg, rest)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runWorker(cfg)
	}
}

// openDatabase はDB接続を開いて疎通確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// buildIngestService は取り込みサービスと依存関係を組み立てる。
func buildIngestService(cfg *config.Config, convRepo repository.ConvLogRepository) *ingest.Service {
	sanitizer := security.NewContentSanitizer()
	return ingest.NewService(convRepo, sanitizer, slog.Default(), cfg.FeedTenants, cfg.DefaultTenant)
}

// buildFeedClient は管理APIクライアントを組み立てる。
// SSRF防止付きHTTPクライアントを使用する。recorderはnil可。
func buildFeedClient(cfg *config.Config, recorder feed.StatusRecorder) *feed.Client {
	return feed.NewClient(
		feed.NewSafeHTTPClient(cfg.FetchTimeout),
		slog.Default(),
		recorder,
		cfg.FeedBaseURL,
		cfg.FeedBearerToken,
		cfg.FeedRateLimit,
	)
}

// buildClassifyService は質問分類サービスを組み立てる。
// LLM設定が未指定の場合はnilを返し、分類段階はスキップされる。
func buildClassifyService(cfg *config.Config, convRepo repository.ConvLogRepository, clsRepo repository.ClassificationRepository) (*classify.Service, error) {
	if !cfg.ClassificationEnabled() {
		slog.Info("LLM設定が未指定のため質問分類をスキップします")
		return nil, nil
	}

	var tickers map[string]bool
	if cfg.TickerListPath != "" {
		var err error
		tickers, err = classify.LoadTickerList(cfg.TickerListPath)
		if err != nil {
			return nil, fmt.Errorf("銘柄リストの読み込みに失敗しました: %w", err)
		}
		slog.Info("銘柄リストを読み込みました", slog.Int("count", len(tickers)))
	}

	llmClient := llm.NewClient(
		&http.Client{Timeout: 60 * time.Second},
		slog.Default(),
		cfg.LLMBaseURL,
		cfg.LLMAPIKey,
		cfg.LLMModel,
	)
	return classify.NewService(convRepo, clsRepo, llmClient, tickers, slog.Default()), nil
}

// runWorker はワーカーモードで起動する。
// 定期取り込みスケジューラと管理HTTPサーバー（/health, /metrics）を起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	convRepo := repository.NewPostgresConvLogRepo(db)
	clsRepo := repository.NewPostgresClassificationRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	ingestSvc := buildIngestService(cfg, convRepo)
	feedClient := buildFeedClient(cfg, collector)

	classifySvc, err := buildClassifyService(cfg, convRepo, clsRepo)
	if err != nil {
		return err
	}

	// classifySvcがnilの場合、インターフェース値もnilにする
	var classifier ingestjob.QuestionClassifier
	if classifySvc != nil {
		classifier = classifySvc
	}

	scheduler := ingestjob.NewScheduler(
		feedClient, ingestSvc, classifier, collector,
		slog.Default(), cfg.FeedTenants,
	)

	router := handler.NewRouter(db, registry)
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	go func() {
		slog.Info("admin server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	slog.Info("worker starting",
		slog.Duration("ingest_interval", cfg.IngestInterval),
		slog.Int("tenant_count", len(cfg.FeedTenants)),
	)

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.IngestInterval)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runIngest は指定期間の取り込みを全テナント分1回実行する。
// --from/--toはUTC日付（YYYY-MM-DD）。省略時はKST基準の当日。
func runIngest(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fromStr := fs.String("from", "", "取得開始日（YYYY-MM-DD、UTC）")
	toStr := fs.String("to", "", "取得終了日（YYYY-MM-DD、UTC）")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	from, to, err := resolveIngestWindow(*fromStr, *toStr, time.Now())
	if err != nil {
		return err
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	convRepo := repository.NewPostgresConvLogRepo(db)
	ingestSvc := buildIngestService(cfg, convRepo)
	feedClient := buildFeedClient(cfg, nil)

	ctx := context.Background()
	for _, tenantID := range cfg.FeedTenants {
		logs, err := feedClient.FetchLogs(ctx, tenantID, from, to)
		if err != nil {
			return fmt.Errorf("会話ログの取得に失敗しました: %w", err)
		}

		summary, err := ingestSvc.Ingest(ctx, logs)
		if err != nil {
			return fmt.Errorf("会話ログの取り込みに失敗しました: %w", err)
		}

		slog.Info("取り込みが完了しました",
			slog.String("tenant_id", tenantID),
			slog.Int("total", summary.Total),
			slog.Int("new", summary.New),
			slog.Int("duplicate", summary.Duplicate),
			slog.Int("pairing_failures", summary.PairingFailures),
			slog.Int("skipped", summary.Skipped),
		)
	}

	return nil
}

// resolveIngestWindow は--from/--toから取得期間を決定する。
// 両方省略時は現在時刻のKST当日を返す。片方のみの指定はエラー。
func resolveIngestWindow(fromStr, toStr string, now time.Time) (time.Time, time.Time, error) {
	if fromStr == "" && toStr == "" {
		nowKST := model.ToKST(now)
		from := time.Date(nowKST.Year(), nowKST.Month(), nowKST.Day(), 0, 0, 0, 0, model.LocationKST)
		return from, from.AddDate(0, 0, 1), nil
	}
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--fromと--toは両方指定してください")
	}

	from, err := time.ParseInLocation("2006-01-02", fromStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--fromのパースに失敗しました: %w", err)
	}
	to, err := time.ParseInLocation("2006-01-02", toStr, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("--toのパースに失敗しました: %w", err)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--toは--from以降の日付を指定してください")
	}
	return from, to, nil
}

// runRepair はレガシーデータ修復を実行する。
// デフォルトはドライラン（分類レポートのみ）。--executeで実際に修復する。
// --strictはハッシュ破損に加えてその他の不正形式も削除対象にする。
func runRepair(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("repair", flag.ContinueOnError)
	execute := fs.Bool("execute", false, "実際に修復を実行する（省略時はドライラン）")
	strict := fs.Bool("strict", false, "その他の不正形式の識別子も削除対象にする")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	convRepo := repository.NewPostgresConvLogRepo(db)
	job := repair.NewJob(convRepo, slog.Default(), cfg.BackupDir, *strict)

	ctx := context.Background()

	var report *repair.Report
	if *execute {
		report, err = job.Execute(ctx)
	} else {
		report, err = job.Preview(ctx)
	}
	if err != nil {
		return fmt.Errorf("修復ジョブの実行に失敗しました: %w", err)
	}

	slog.Info("修復ジョブが完了しました",
		slog.Bool("executed", *execute),
		slog.Int("total_rows", report.TotalRows),
		slog.Int("well_formed", report.WellFormed),
		slog.Int("hash_corrupted", report.HashCorrupted),
		slog.Int("other_malformed", report.OtherMalformed),
		slog.Int("backfilled", report.Backfilled),
		slog.Int("skipped_duplicate", report.SkippedDuplicate),
		slog.Int("purged", report.Purged),
		slog.Int("remaining_malformed", report.RemainingMalformed),
		slog.String("backup_file", report.BackupFile),
	)
	return nil
}

// runExport は全会話ログをExcelファイルに出力する。
func runExport(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	outDir := fs.String("out", ".", "出力先ディレクトリ")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	convRepo := repository.NewPostgresConvLogRepo(db)

	records, err := convRepo.ListAll(context.Background())
	if err != nil {
		return fmt.Errorf("会話ログの取得に失敗しました: %w", err)
	}

	path := filepath.Join(*outDir, export.ExcelFileName(time.Now()))
	rows, err := export.WriteExcel(path, records)
	if err != nil {
		return fmt.Errorf("Excelファイルの出力に失敗しました: %w", err)
	}

	slog.Info("エクスポートが完了しました",
		slog.String("path", path),
		slog.Int("rows", rows),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
