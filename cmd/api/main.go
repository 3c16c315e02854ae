// Package main is the entry point for the dive trip API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver for database/sql
	"golang.org/x/sync/errgroup"

	"github.com/reefline/divetrips/api"
	"github.com/reefline/divetrips/internal/config"
	"github.com/reefline/divetrips/internal/handler"
	"github.com/reefline/divetrips/internal/middleware"
	"github.com/reefline/divetrips/internal/notify"
	"github.com/reefline/divetrips/internal/repo"
	"github.com/reefline/divetrips/internal/repo/memory"
	"github.com/reefline/divetrips/internal/scheduler"
	"github.com/reefline/divetrips/internal/service"
	"github.com/reefline/divetrips/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// storage is the backend-independent set of repositories the services need.
type storage struct {
	tx     repo.Transactor
	repos  repo.Repos
	divers repo.DiverRepo
	sites  repo.SiteRepo
	db     handler.Pinger
	close  func()
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	// --- Storage ----------------------------------------------------------
	st, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// --- Notifications ----------------------------------------------------
	senders := notify.Multi{notify.LogSender{Logger: logger}}
	if cfg.TelegramBotToken != "" {
		tg, err := notify.NewTelegramSender(cfg.TelegramBotToken, st.divers, logger)
		if err != nil {
			return err
		}
		senders = append(senders, tg)
		logger.Info("telegram notifications enabled")
	}
	if cfg.SendGridAPIKey != "" {
		email, err := notify.NewEmailSender(cfg.SendGridAPIKey, cfg.EmailFrom, st.divers, logger)
		if err != nil {
			return err
		}
		senders = append(senders, email)
		logger.Info("email notifications enabled")
	}
	dispatcher := notify.NewDispatcher(senders, notify.DefaultSendTimeout, logger)
	defer dispatcher.Wait()

	// --- Services ---------------------------------------------------------
	authz := service.OwnershipPolicy{}
	opts := []service.Option{service.WithLogger(logger)}

	fees := service.NewSiteFeeCache(st.sites, cfg.SiteFeeCacheTTL, opts...)
	pricing := service.NewPricingEngine(fees, service.PricingPolicy{
		PlatformFeeRate:        cfg.PlatformFeeRate,
		VATRate:                cfg.VATRate,
		InsuranceFeePerDiver:   cfg.InsuranceFeePerDiver,
		DefaultConservationFee: cfg.DefaultConservationFee,
	}, opts...)
	waitlist := service.NewWaitlistManager(st.tx, st.repos, authz, dispatcher, cfg.PromotionWindow, opts...)
	bookings := service.NewBookingService(st.tx, st.repos, st.divers, pricing, waitlist, authz, dispatcher, opts...)
	trips := service.NewTripService(st.tx, st.repos.Trips, waitlist, authz, dispatcher, opts...)
	export := service.NewExportService(st.repos.Trips, st.repos.Bookings, st.divers, authz)

	// --- Router -----------------------------------------------------------
	// Middleware is applied in order: RequestID → RealIP → Logger → Recoverer → CORS → body cap.
	// Authentication is applied per route group by handler.Server.Routes so
	// /healthz and /openapi.yaml stay public.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))

	srv := handler.NewServer(handler.Deps{
		Trips:    trips,
		Bookings: bookings,
		Waitlist: waitlist,
		Export:   export,
		DB:       st.db,
		OpenAPI:  api.OpenAPI,
		Logger:   logger,
	})
	r.Mount("/", srv.Routes(middleware.NewAuthenticator([]byte(cfg.JWTSecret))))

	// --- HTTP Server ------------------------------------------------------
	// Explicit timeouts prevent slowloris and resource exhaustion attacks.
	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", httpSrv.Addr, "storage", cfg.Storage)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.WaitlistSweepInterval > 0 {
		g.Go(func() error {
			scheduler.New(waitlist, cfg.WaitlistSweepInterval, logger).Start(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		// Give in-flight requests up to 15 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		s := memory.New()
		return storage{
			tx:     s,
			repos:  s.Repos(),
			divers: s.Divers(),
			sites:  s.Sites(),
			close:  func() {},
		}, nil
	}

	if err := migrate(ctx, cfg.DatabaseURL, logger); err != nil {
		return storage{}, err
	}

	// pgxpool manages a pool of Postgres connections.
	// New() does not open connections immediately, the first query does.
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return storage{}, fmt.Errorf("create database pool: %w", err)
	}
	// Verify the DB is reachable before accepting traffic.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return storage{}, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info("database connection established")

	return storage{
		tx:     repo.NewTransactor(pool),
		repos:  repo.NewRepos(pool),
		divers: repo.NewDiverRepo(pool),
		sites:  repo.NewSiteRepo(pool),
		db:     pool,
		close:  pool.Close,
	}, nil
}

// migrate applies pending migrations. goose needs database/sql, so it gets
// its own short-lived connection through the pgx stdlib driver.
func migrate(ctx context.Context, dsn string, logger *slog.Logger) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	applied, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "count", applied)
	return nil
}
