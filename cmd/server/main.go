package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // часовой пояс журнала в контейнере без zoneinfo

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"tradejournal/internal/api"
	"tradejournal/internal/api/middleware"
	"tradejournal/internal/config"
	"tradejournal/internal/pnl"
	"tradejournal/internal/repository"
	"tradejournal/internal/service"
	"tradejournal/internal/websocket"
	"tradejournal/pkg/ratelimit"
	"tradejournal/pkg/retry"
	"tradejournal/pkg/utils"
)

func main() {
	// .env необязателен: в production переменные задает окружение
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to read .env: %v\n", err)
	}

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		Development: cfg.Logging.Development,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализация базы данных
	db, err := initDatabase(ctx, cfg)
	if err != nil {
		log.Fatal("failed to connect to database", utils.Err(err))
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		log.Fatal("failed to migrate database", utils.Err(err))
	}
	log.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	// Инициализация репозиториев
	tradeRepo := repository.NewTradeRepository(db)
	settingsRepo := repository.NewSettingsRepository(db, cfg.Journal.Defaults)

	var pnlOpts []pnl.Option
	if cfg.Journal.SettlementLegExemption {
		pnlOpts = append(pnlOpts, pnl.WithSettlementLegExemption())
	}

	// Инициализация сервисов
	loc := cfg.Journal.Location
	tradeService := service.NewTradeService(tradeRepo, loc)
	reportService := service.NewReportService(tradeRepo, settingsRepo, loc, pnlOpts...)
	settlementService := service.NewSettlementService(tradeRepo, settingsRepo, loc, cfg.Journal.EnforceSettlementWindow, pnlOpts...)
	settingsService := service.NewSettingsService(settingsRepo)

	// WebSocket hub - оповещения об изменениях журнала
	websocket.SetAllowedOrigins(cfg.Security.AllowedOrigins)
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	tradeService.SetNotifier(hub)
	settlementService.SetNotifier(hub)
	settingsService.SetNotifier(hub)

	var limiter *ratelimit.KeyedLimiter
	if cfg.Server.RateLimitRPS > 0 {
		limiter = ratelimit.NewKeyedLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateBurst)
		go limiter.RunCleanup(ctx, time.Minute, 10*time.Minute)
	}

	if !cfg.Security.AuthEnabled() {
		log.Warn("API_TOKEN_HASH is empty, authentication disabled")
	}

	// Настройка HTTP роутера
	router := api.SetupRoutes(&api.Dependencies{
		TradeService:      tradeService,
		ReportService:     reportService,
		SettlementService: settlementService,
		SettingsService:   settingsService,
		Hub:               hub,
		Location:          loc,
		Auth: middleware.AuthConfig{
			TokenHash:     cfg.Security.APITokenHash,
			DefaultUserID: cfg.Security.DefaultUserID,
		},
		RateLimiter:     limiter,
		AllowedOrigins:  cfg.Security.AllowedOrigins,
		MetricsUsername: cfg.Security.MetricsUsername,
		MetricsPassword: cfg.Security.MetricsPassword,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("starting server",
			utils.String("addr", server.Addr),
			utils.String("timezone", loc.String()),
			utils.Bool("settlement_window", cfg.Journal.EnforceSettlementWindow),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		log.Error("server failed", utils.Err(err))
	}

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", utils.Err(err))
	}

	log.Info("server exited")
}

// initDatabase создает подключение к базе данных.
// Ping повторяется: при старте в docker-compose база поднимается позже.
func initDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxOpenConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	retryCfg := retry.DatabaseConfig(cfg.Database.ConnectRetries)
	retryCfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		utils.Warn("database not ready",
			utils.Int("attempt", attempt),
			utils.Err(err),
			utils.String("retry_in", delay.String()),
		)
	}

	err = retry.Do(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// таймаут отдельной попытки повторяем
			return fmt.Errorf("ping: %v", err)
		}
		return nil
	}, retryCfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
