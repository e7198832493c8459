package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizspin-backend/internal/config"
	"github.com/stemsi/quizspin-backend/internal/database"
	"github.com/stemsi/quizspin-backend/internal/handler"
	"github.com/stemsi/quizspin-backend/internal/logger"
	"github.com/stemsi/quizspin-backend/internal/middleware"
	"github.com/stemsi/quizspin-backend/internal/repository"
	"github.com/stemsi/quizspin-backend/internal/router"
	"github.com/stemsi/quizspin-backend/internal/service"
	"github.com/stemsi/quizspin-backend/internal/validator"
	"github.com/stemsi/quizspin-backend/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("bank_source", cfg.BankSource).
		Msg("Starting QuizSpin Backend")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Derive Session Signing Key ────────────────────────────────────
	codec, err := service.NewSessionCodec(cfg.SessionSecret, cfg.SessionMaxAge)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid session configuration")
	}
	if cfg.SessionSecret == config.DefaultSessionSecret {
		log.Warn().Msg("SESSION_SECRET not set, using the development default")
	}

	// ─── Connect to Redis (optional) ───────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	var bankCache *repository.BankCache
	if rdb != nil {
		defer rdb.Close()
		bankCache = repository.NewBankCache(rdb)
	}

	// ─── Initialize Bank Sources ───────────────────────────────────────
	var upstream repository.BankSource
	switch cfg.BankSource {
	case config.BankSourcePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		upstream = repository.NewQuestionRepository(pool)
	default:
		if cfg.BankURL != "" {
			upstream = repository.NewHTTPBankSource(cfg.BankURL, cfg.BankFetchTimeout)
		} else {
			log.Warn().Msg("BANK_URL not set, serving the local bank file only")
		}
	}
	fallback := repository.NewFileBankSource(cfg.BankFile)

	// ─── Initialize Services ──────────────────────────────────────────
	bankService := service.NewBankService(upstream, fallback, bankCache, cfg.BankCacheTTL, log)
	store := service.NewSessionStore(codec)
	quizService := service.NewQuizService(store, bankService, service.NewQuestionSelector(nil), log)

	// ─── Prewarm Bank ─────────────────────────────────────────────────
	// Failure is not fatal; draws load on demand.
	if err := bankService.Refresh(ctx); err != nil {
		log.Warn().Err(err).Msg("Bank prewarm failed, will retry on demand")
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	refreshWorker := worker.NewBankRefreshWorker(bankService, cfg.BankRefreshEvery, cfg.BankFetchTimeout, log)
	go refreshWorker.Start(workerCtx)

	drawLimiter := middleware.NewRateLimiter(workerCtx, cfg.DrawRatePerMinute, time.Minute)

	// ─── Initialize Handlers ──────────────────────────────────────────
	cookie := middleware.CookieConfig{Name: middleware.SessionCookieName, Secure: cfg.CookieSecure}
	streamsDone := make(chan struct{})

	handlers := &router.Handlers{
		Session:  handler.NewSessionHandler(store, quizService, cookie, log),
		Question: handler.NewQuestionHandler(quizService, cookie, log),
		Bank:     handler.NewBankHandler(bankService, log),
		WS:       handler.NewWSHandler(bankService, log, cfg.AllowedOrigins, streamsDone),
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(store, drawLimiter, handlers, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. End open timer streams; Shutdown does not track hijacked connections.
	close(streamsDone)

	// 2. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 3. Stop background workers.
	workerCancel()

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
