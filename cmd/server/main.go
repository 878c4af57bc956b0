package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/marceau-events/table-reservation/internal/cache"
	"github.com/marceau-events/table-reservation/internal/clock"
	"github.com/marceau-events/table-reservation/internal/config"
	"github.com/marceau-events/table-reservation/internal/database"
	"github.com/marceau-events/table-reservation/internal/handler"
	"github.com/marceau-events/table-reservation/internal/mailer"
	"github.com/marceau-events/table-reservation/internal/middleware"
	"github.com/marceau-events/table-reservation/internal/queue"
	"github.com/marceau-events/table-reservation/internal/repository"
	"github.com/marceau-events/table-reservation/internal/router"
	"github.com/marceau-events/table-reservation/internal/service"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	db, err := database.Open(startCtx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()
	log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("database connected")

	if err := repository.MigrateUp(ctx, db, "migrations", log); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	store := repository.NewStore(db)
	clk := clock.System()

	// Redis is optional. Without it availability falls back to the
	// process-local cache and hold creation runs unthrottled.
	rdb := config.NewRedisClient()
	var availCache cache.AvailabilityCache
	if rdb != nil {
		defer rdb.Close()
		availCache = cache.NewRedis(rdb, cfg.AvailabilityTTL, log)
	} else {
		log.Warn().Msg("redis unavailable, degrading to in-memory availability cache")
		availCache = cache.NewMemory(cfg.AvailabilityTTL, clk)
	}

	// The broker is optional too. A failed dial here disables fan-out
	// until restart; the consumer keeps its own reconnect loop.
	var publisher service.EventPublisher
	if cfg.RabbitURL != "" {
		p, err := queue.NewPublisher(cfg.RabbitURL, log)
		if err != nil {
			log.Warn().Err(err).Msg("broker unreachable, running without event fan-out")
		} else {
			publisher = p
			defer p.Close()
		}
	}

	validator := service.NewBookingValidator(store, clk, log)
	availability := service.NewAvailabilityService(store, availCache, log)
	holds := service.NewHoldService(store, validator, clk, cfg.HoldTTL, log)
	admin := service.NewAdminService(store, validator, availability, log)
	reconciler := service.NewPaymentReconciler(store, validator, availability, publisher, log)

	if cfg.RabbitURL != "" {
		mail := mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, cfg.OpsEmail, log)
		go queue.NewConsumer(cfg.RabbitURL, mail, log).Run(ctx)
	}

	go sweepStaleHolds(ctx, holds, cfg.SweepInterval, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(requestLogger(log))

	router.RegisterCore(e)
	router.RegisterPublic(e, handler.NewEventHandler(store, store.Events, availability, log),
		middleware.ResponseCache(config.LoadCacheConfig(), rdb))
	router.RegisterHolds(e, handler.NewHoldHandler(holds, cfg.CutoffDays, log),
		middleware.HoldRateLimit(config.LoadRateLimitConfig(), rdb, log))
	router.RegisterWebhooks(e, handler.NewWebhookHandler(reconciler, cfg.WebhookSecret, cfg.WebhookTolerance, clk, log))
	router.RegisterAdmin(e, handler.NewAdminHandler(admin, log))

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

// sweepStaleHolds expires overdue holds on a fixed cadence so abandoned
// checkouts release their tables even when nothing reads them.
func sweepStaleHolds(ctx context.Context, holds *service.HoldService, every time.Duration, log zerolog.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := holds.ExpireStaleHolds(ctx); err != nil {
				log.Error().Err(err).Msg("stale hold sweep failed")
			}
		}
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})
}
