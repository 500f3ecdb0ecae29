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

	"github.com/hitoshi/runherald/internal/config"
	"github.com/hitoshi/runherald/internal/database"
	"github.com/hitoshi/runherald/internal/discord"
	"github.com/hitoshi/runherald/internal/handler"
	"github.com/hitoshi/runherald/internal/logger"
	"github.com/hitoshi/runherald/internal/metrics"
	"github.com/hitoshi/runherald/internal/middleware"
	"github.com/hitoshi/runherald/internal/repository"
	runpkg "github.com/hitoshi/runherald/internal/run"
	"github.com/hitoshi/runherald/internal/security"
	"github.com/hitoshi/runherald/internal/speedrun"
	"github.com/hitoshi/runherald/internal/subscription"
	"github.com/hitoshi/runherald/internal/worker/announce"
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
		slog.Time("post_verified_after", cfg.PostVerifiedAfter),
	)

	switch cmd {
	case CommandAnnounce:
		return runAnnounce(cfg)
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runAnnounce(cfg)
	}
}

// runAnnounce はアナウンスサイクルを1回実行して終了する。
// いずれかの購読の処理が失敗した場合はエラーを返す（終了コード1）。
// 処理済みの購読の配信結果はロールバックされない。
func runAnnounce(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. セキュリティサービスの初期化
	// Webhook URLは起動時に一度だけ検証する
	ssrfGuard := security.NewSSRFGuard()
	if err := ssrfGuard.ValidateURL(cfg.WebhookURL); err != nil {
		return fmt.Errorf("webhook URL rejected: %w", err)
	}
	sanitizer := security.NewNameSanitizer()

	// 3. リポジトリの初期化
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	msgRepo := repository.NewPostgresMessageRepo(db)

	// 4. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. 外部クライアントの初期化
	apiClient := speedrun.NewClient(
		ssrfGuard.NewSafeClient(cfg.HTTPTimeout),
		cfg.SpeedrunAPIURL, cfg.UserAgent,
		cfg.APIRateLimit, cfg.APIRateBurst,
		slog.Default(),
	)
	resolver := runpkg.NewPositionResolver(apiClient, slog.Default())
	fetcher := runpkg.NewFetcher(apiClient, resolver, sanitizer, collector, slog.Default())

	sender := discord.NewWebhookClient(
		ssrfGuard.NewSafeClient(cfg.HTTPTimeout),
		cfg.WebhookURL, cfg.UserAgent,
		slog.Default(),
	)

	// 6. ワーカーの構築と実行
	worker := announce.NewWorker(
		subRepo, msgRepo, fetcher, sender,
		collector, slog.Default(), cfg.PostVerifiedAfter,
	)

	// SIGINT/SIGTERMで進行中のサイクルをキャンセルする
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := worker.RunCycle(ctx); err != nil {
		return fmt.Errorf("announce cycle failed: %w", err)
	}

	slog.Info("announce cycle completed successfully")
	return nil
}

// runServe は管理APIサーバーモードで起動する。
// DB接続を開き、購読管理APIと運用エンドポイント（/health, /metrics）を提供する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリとサービスの初期化
	subRepo := repository.NewPostgresSubscriptionRepo(db)
	msgRepo := repository.NewPostgresMessageRepo(db)
	subService := subscription.NewService(subRepo, msgRepo, slog.Default())

	// 3. メトリクスレジストリの初期化
	registry := prometheus.NewRegistry()
	metrics.NewCollector(registry)

	// 4. レート制限の構成（configのRateLimitGeneralはreq/min単位なのでreq/secに変換する）
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		RateLimiter:         rateLimiter,
		Logger:              slog.Default(),
		SubscriptionService: subService,
		HealthChecker:       db,
		Gatherer:            registry,
	})

	// 6. HTTPサーバーの起動
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
		slog.Info("admin API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down admin API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("admin API server stopped gracefully")
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
