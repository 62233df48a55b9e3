package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/rifas-mx/rifas/internal/app"
	"github.com/rifas-mx/rifas/internal/auth"
	"github.com/rifas-mx/rifas/internal/cache"
	"github.com/rifas-mx/rifas/internal/clock"
	"github.com/rifas-mx/rifas/internal/config"
	"github.com/rifas-mx/rifas/internal/domain"
	"github.com/rifas-mx/rifas/internal/events"
	"github.com/rifas-mx/rifas/internal/logging"
	"github.com/rifas-mx/rifas/internal/metrics"
	"github.com/rifas-mx/rifas/internal/payment"
	"github.com/rifas-mx/rifas/internal/storage/memory"
	"github.com/rifas-mx/rifas/internal/storage/postgres"
	"github.com/rifas-mx/rifas/internal/tracing"
	transporthttp "github.com/rifas-mx/rifas/internal/transport/http"
	"github.com/rifas-mx/rifas/migrations"
)

const startupTimeout = 10 * time.Second

func main() {
	fs := pflag.NewFlagSet("api", pflag.ExitOnError)
	configPath := fs.String("config", "", "path to the YAML config file (default $RIFAS_CONFIG)")
	_ = fs.Parse(os.Args[1:])

	dotenv := config.LoadDotEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(os.Stdout, cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)
	if dotenv {
		logger.Info("loaded env from .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

type repositories struct {
	raffles app.RaffleRepository
	tickets app.TicketRepository
	sales   app.SaleRepository
	draws   app.DrawRepository
	ledger  app.LedgerRepository
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTracing := tracing.Install(logger, cfg.Tracing)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer provider shutdown", "error", err)
		}
	}()

	startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	var (
		repos  repositories
		checks []transporthttp.HealthCheck
	)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		store := memory.NewStore()
		repos = repositories{raffles: store, tickets: store, sales: store, draws: store, ledger: store}
	default:
		pool, err := openPool(startupCtx, cfg.Storage)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := migrations.Apply(startupCtx, pool, logger)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("migrations applied", "count", len(applied))

		saleRepo := postgres.NewSaleRepository(pool)
		repos = repositories{
			raffles: postgres.NewRaffleRepository(pool),
			tickets: postgres.NewTicketRepository(pool),
			sales:   saleRepo,
			draws:   postgres.NewDrawRepository(pool),
			ledger:  saleRepo,
		}
		checks = append(checks, transporthttp.HealthCheck{Name: "postgres", Check: pool.Ping})
	}

	inventoryOpts := []app.InventoryServiceOption{
		app.WithMaxTickets(cfg.Inventory.MaxTickets),
		app.WithInventoryLogger(logger),
	}
	if cfg.Redis.URL != "" {
		client, err := cache.Connect(startupCtx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer client.Close()
		inventoryOpts = append(inventoryOpts, app.WithTicketCache(
			cache.NewAvailabilityCache(client, cache.WithTTL(cfg.Redis.AvailabilityTTL)),
		))
		checks = append(checks, transporthttp.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return client.Ping(ctx).Err() },
		})
		logger.Info("availability cache enabled", "ttl", cfg.Redis.AvailabilityTTL)
	}

	var publisher app.EventPublisher = events.NewLogPublisher(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.PublishTimeout)
		if err != nil {
			return err
		}
		defer kp.Close()
		if err := kp.EnsureTopic(startupCtx, 3, 1); err != nil {
			logger.Warn("could not ensure events topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		publisher = kp
		logger.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	}
	publisher = events.Bounded(publisher, cfg.Kafka.PublishTimeout)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	gatewayOpts := []payment.SimulatedOption{payment.WithLatency(cfg.Payment.Latency)}
	if cfg.Payment.DeclineAboveCents > 0 {
		gatewayOpts = append(gatewayOpts, payment.WithDeclineAbove(domain.Money(cfg.Payment.DeclineAboveCents)))
	}
	gateway := payment.NewSimulated(gatewayOpts...)

	clk := clock.NewSystem()
	inventory := app.NewInventoryService(repos.tickets, clk, inventoryOpts...)
	raffles := app.NewRaffleService(repos.raffles, inventory, clk,
		app.WithRaffleLogger(logger),
		app.WithRafflePublisher(publisher),
	)
	sales := app.NewSaleService(repos.sales, inventory, gateway, clk,
		app.WithSaleLogger(logger),
		app.WithSaleMetrics(m),
		app.WithSalePublisher(publisher),
	)
	draws := app.NewDrawService(repos.draws, clk,
		app.WithDrawLogger(logger),
		app.WithDrawMetrics(m),
		app.WithDrawPublisher(publisher),
	)

	handler := transporthttp.NewRouter(transporthttp.Services{
		Raffles:   raffles,
		Tickets:   inventory,
		Draws:     draws,
		Sales:     sales,
		Reports:   app.NewReportService(repos.ledger),
		Verifier:  auth.NewVerifier(cfg.Auth.SigningKey, cfg.Auth.Issuer, clk),
		Metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		Readiness: checks,
	}, cfg.HTTP.CORSOrigins, logger)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", "addr", cfg.HTTP.Addr, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received, stopping server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openPool(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}
