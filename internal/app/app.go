// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/seatman/internal/clock"
	"github.com/hitoshi/seatman/internal/config"
	"github.com/hitoshi/seatman/internal/database"
	"github.com/hitoshi/seatman/internal/handler"
	"github.com/hitoshi/seatman/internal/logger"
	"github.com/hitoshi/seatman/internal/metrics"
	"github.com/hitoshi/seatman/internal/middleware"
	"github.com/hitoshi/seatman/internal/notify"
	"github.com/hitoshi/seatman/internal/patron"
	"github.com/hitoshi/seatman/internal/repository"
	"github.com/hitoshi/seatman/internal/security"
	"github.com/hitoshi/seatman/internal/session"
	"github.com/hitoshi/seatman/internal/store"
	"github.com/hitoshi/seatman/internal/worker/cleanup"
	"github.com/hitoshi/seatman/internal/worker/monitor"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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
		slog.String("port", cfg.ServerPort),
		slog.Bool("offline", cfg.Offline()),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// repos は構築済みのリポジトリ一式。
type repos struct {
	sessions repository.SessionRepository
	patrons  repository.PatronRepository
	settings repository.SettingsRepository
}

// buildDispatcher はアラート通知の配信先を構築する。
// Webhook URLが設定されていない場合はログ出力のみのディスパッチャーを使用する。
func buildDispatcher(cfg *config.Config, guard security.SSRFGuardService) (notify.Dispatcher, error) {
	if cfg.AlertWebhookURL == "" {
		return notify.NewLogDispatcher(slog.Default()), nil
	}
	if err := guard.ValidateURL(cfg.AlertWebhookURL); err != nil {
		return nil, fmt.Errorf("invalid ALERT_WEBHOOK_URL: %w", err)
	}
	client := guard.NewSafeClient(cfg.NotifyTimeout)
	return notify.NewWebhookClient(client, slog.Default(), cfg.AlertWebhookURL), nil
}

// runServe はAPIサーバーモードで起動する。
// DATABASE_URLが設定されていれば接続モード（PostgreSQL + 変更通知フィード）、
// 未設定ならオフライン/デモモード（インメモリストア + 同一プロセス内モニター）で動作する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.System()

	// 1. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. ストレージバックエンドの構築
	var rp repos
	var feed store.ChangeFeed

	if cfg.Offline() {
		slog.Info("starting in offline/demo mode (in-memory store)")
		rp = repos{
			sessions: repository.NewMemorySessionRepo(),
			patrons:  repository.NewMemoryPatronRepo(),
			settings: repository.NewMemorySettingsRepo(),
		}
	} else {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		slog.Info("database connection established")

		rp = repos{
			sessions: repository.NewPostgresSessionRepo(db),
			patrons:  repository.NewPostgresPatronRepo(db),
			settings: repository.NewPostgresSettingsRepo(db),
		}
		feed = database.NewListener(cfg.DatabaseURL, slog.Default())
	}

	// 3. セキュリティサービスとドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()

	lifecycleService := session.NewService(rp.sessions, rp.patrons, clk, slog.Default(), collector)
	patronService := patron.NewService(rp.patrons, sanitizer, clk, slog.Default())

	// 4. セッションストアの構築
	st := store.NewStore(
		rp.sessions, rp.patrons, rp.settings,
		feed, clk, slog.Default(), collector, cfg.HistoryLimit,
	)

	if cfg.Offline() {
		// オフラインモードは変更通知フィードがないため初回同期のみ
		if err := st.Start(ctx); err != nil {
			return fmt.Errorf("failed to start store: %w", err)
		}
	} else {
		go func() {
			if err := st.Start(ctx); err != nil {
				slog.Error("store change feed stopped", slog.String("error", err.Error()))
			}
		}()
	}

	// 5. オフラインモードではモニターを同一プロセス内で起動する
	// （接続モードではworkerサブコマンドが担当する）
	if cfg.Offline() {
		ssrfGuard := security.NewSSRFGuard()
		dispatcher, err := buildDispatcher(cfg, ssrfGuard)
		if err != nil {
			return err
		}
		mon := monitor.NewMonitor(
			rp.sessions, rp.patrons, rp.settings,
			lifecycleService, dispatcher, clk, slog.Default(), collector,
		)
		go mon.Start(ctx, cfg.MonitorInterval)
	}

	// 6. ルーターの構築
	rateLimiterCfg := middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(cfg.RateLimitGeneral) / 60.0),
		GeneralBurst:    cfg.RateLimitGeneral,
		CheckinRate:     rate.Limit(float64(cfg.RateLimitCheckin) / 60.0),
		CheckinBurst:    cfg.RateLimitCheckin,
		CleanupInterval: 5 * time.Minute,
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		Lifecycle:     lifecycleService,
		PatronFinder:  rp.patrons,
		PatronService: patronService,
		SettingsStore: rp.settings,
		Store:         st,
		Clock:         clk,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、滞在監視モニターと履歴クリーンアップジョブを起動する。
// オフラインモードはサーバープロセス内でモニターが動作するため、ワーカーは起動できない。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.Offline() {
		return fmt.Errorf("worker mode requires DATABASE_URL (offline mode runs the monitor in-process)")
	}

	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	clk := clock.System()

	// 2. リポジトリの初期化
	sessionRepo := repository.NewPostgresSessionRepo(db)
	patronRepo := repository.NewPostgresPatronRepo(db)
	settingsRepo := repository.NewPostgresSettingsRepo(db)

	// 3. 通知ディスパッチャーの初期化
	ssrfGuard := security.NewSSRFGuard()
	dispatcher, err := buildDispatcher(cfg, ssrfGuard)
	if err != nil {
		return err
	}

	// 4. ライフサイクルサービスとモニターの初期化
	lifecycleService := session.NewService(sessionRepo, patronRepo, clk, slog.Default(), nil)
	mon := monitor.NewMonitor(
		sessionRepo, patronRepo, settingsRepo,
		lifecycleService, dispatcher, clk, slog.Default(), nil,
	)

	// 5. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, clk, slog.Default())
	cleanupJob.RetentionDays = cfg.SessionRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("monitor_interval", cfg.MonitorInterval),
		slog.Int("retention_days", cfg.SessionRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go func() {
		// 起動直後に1回実行
		if err := cleanupJob.Run(ctx); err != nil {
			slog.Error("cleanup job failed", slog.String("error", err.Error()))
		}

		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := cleanupJob.Run(ctx); err != nil {
					slog.Error("cleanup job failed", slog.String("error", err.Error()))
				}
			}
		}
	}()

	// モニターをメインgoroutineで実行（ブロッキング）
	mon.Start(ctx, cfg.MonitorInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.Offline() {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

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
