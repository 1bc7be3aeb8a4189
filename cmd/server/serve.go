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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/warp/procurement-engine/api"
	"github.com/warp/procurement-engine/config"
	"github.com/warp/procurement-engine/factory"
	"github.com/warp/procurement-engine/metrics"
	"github.com/warp/procurement-engine/notify"
	"github.com/warp/procurement-engine/procurement"
	"github.com/warp/procurement-engine/procurement/store"
	"github.com/warp/procurement-engine/purchasing"
	"github.com/warp/procurement-engine/store/sqlite"
)

var timeNow = time.Now

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port      string
	StaticDir string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.Port != "" {
				cfg.Port = opts.Port
			}
			return serve(cmd.Context(), cfg, opts.StaticDir)
		},
	}

	cmd.Flags().StringVar(&opts.Port, "port", "", "HTTP server port (overrides PROCUREMENT_PORT)")
	cmd.Flags().StringVar(&opts.StaticDir, "static", "./web/dist", "directory of the built dashboard")

	return cmd
}

func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := cfg.SlogLevel()
	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	return slog.New(handler).With("env", cfg.Env)
}

// backend is what either storage choice provides.
type backend struct {
	requests      procurement.RequestStore
	products      procurement.ProductLedger
	productWriter factory.ProductWriter
	notifications procurement.NotificationLog
	close         func() error
}

func openBackend(cfg *config.Config) (*backend, error) {
	if cfg.Storage == "memory" {
		products := store.NewProducts()
		return &backend{
			requests:      store.NewMemory(),
			products:      products,
			productWriter: products,
			notifications: store.NewNotifications(),
			close:         func() error { return nil },
		}, nil
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return &backend{
		requests:      db,
		products:      db,
		productWriter: db,
		notifications: db,
		close:         db.Close,
	}, nil
}

func connectRedis(ctx context.Context, url string, logger *slog.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn("invalid REDIS_URL, redis publishing disabled", "error", err)
		return nil
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, redis publishing disabled", "error", err)
		rdb.Close()
		return nil
	}
	logger.Info("redis connected", "addr", opts.Addr)
	return rdb
}

func serve(parent context.Context, cfg *config.Config, staticDir string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	// Storage
	be, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer be.close()
	logger.Info("storage ready", "storage", cfg.Storage, "path", cfg.DatabasePath)

	// Seed
	seed, err := factory.Load(cfg.SeedPath)
	if err != nil {
		return err
	}
	if err := seed.Apply(ctx, be.productWriter, be.requests, timeNow()); err != nil {
		return fmt.Errorf("failed to apply seed: %w", err)
	}
	primary := procurement.WarehouseID(cfg.PrimaryWarehouse)
	if seeded, ok := seed.PrimaryWarehouse(); ok && seeded != primary {
		logger.Warn("seed marks a different primary warehouse, using configuration",
			"configured", primary, "seed", seeded)
	}

	// Purchasing
	delays, err := cfg.StageDelayDurations()
	if err != nil {
		return err
	}
	sim := purchasing.NewSimulator(purchasing.RealScheduler{}, logger.With("component", "purchasing"))
	sim.StageDelays = delays
	sim.SubmitDelay = cfg.SubmitDelay
	defer sim.Stop()

	// Notifications
	hub := notify.NewHub(cfg.Origins(), logger.With("component", "hub"))
	go hub.Run(ctx)

	redisPub := notify.NewRedisPublisher(connectRedis(ctx, cfg.RedisURL, logger))
	defer redisPub.Close()

	m := metrics.New()
	m.WatchRequests(be.requests, logger)
	m.WatchGauge("procurement_ws_clients", "Connected WebSocket clients", func() float64 {
		return float64(hub.Clients())
	})

	engine := &procurement.Engine{
		Store:      be.requests,
		Products:   be.products,
		Purchasing: sim,
		Sink: metrics.CountingSink{
			Next:    procurement.Fanout{be.notifications, hub, redisPub},
			Metrics: m,
		},
		Resolver: procurement.StockResolver{
			PrimaryWarehouse: primary,
			AssumedStock:     cfg.AssumedStock,
		},
		Logger: logger,
	}

	handler := api.NewHandler(engine, be.notifications, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		AllowedOrigins: cfg.Origins(),
		WebSocket:      hub.ServeWS,
		Metrics:        m.Handler(),
		StaticDir:      staticDir,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", "http://localhost:"+cfg.Port, "primary_warehouse", primary)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	sim.Stop()
	engine.Wait()
	logger.Info("server stopped")
	return nil
}
