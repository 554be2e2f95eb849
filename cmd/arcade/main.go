package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/CaioWing/Arcade/internal/api"
	"github.com/CaioWing/Arcade/internal/api/storefront"
	"github.com/CaioWing/Arcade/internal/auth"
	"github.com/CaioWing/Arcade/internal/bus"
	"github.com/CaioWing/Arcade/internal/config"
	"github.com/CaioWing/Arcade/internal/domain"
	"github.com/CaioWing/Arcade/internal/logger"
	"github.com/CaioWing/Arcade/internal/metrics"
	"github.com/CaioWing/Arcade/internal/mqtt"
	"github.com/CaioWing/Arcade/internal/repository/memory"
	"github.com/CaioWing/Arcade/internal/repository/postgres"
	"github.com/CaioWing/Arcade/internal/seed"
	"github.com/CaioWing/Arcade/internal/service"
	"github.com/CaioWing/Arcade/internal/storage"
	"github.com/CaioWing/Arcade/internal/storage/local"
	"github.com/CaioWing/Arcade/internal/storage/sqlite"
)

type options struct {
	configPath string
	once       bool
	demo       bool
}

func main() {
	var opts options
	pflag.StringVarP(&opts.configPath, "config", "c", "", "path to a config file (yaml, json or toml)")
	pflag.BoolVar(&opts.once, "once", false, "run a single maintenance evaluation cycle and exit")
	pflag.BoolVar(&opts.demo, "demo", false, "serve an in-memory fleet seeded from the built-in dataset")
	pflag.Parse()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if opts.demo {
		cfg.Store.Driver = "memory"
	}

	log, err := logger.New(cfg.Log.Environment, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, opts, log); err != nil {
		log.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
}

// repositories is the set of stores behind the services. feed is nil when the
// driver has no push notifications.
type repositories struct {
	devices       domain.DeviceRepository
	workOrders    domain.WorkOrderRepository
	policies      domain.PolicyRepository
	audit         domain.AuditRepository
	notifications domain.NotificationSender
	feed          bus.Feed
}

func run(cfg *config.Config, opts options, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting Arcade",
		zap.String("listen", cfg.ListenAddr()),
		zap.String("store", cfg.Store.Driver),
		zap.String("cache", cfg.Cache.Driver),
	)

	dataset, err := seed.Load(time.Now())
	if err != nil {
		return fmt.Errorf("load seed dataset: %w", err)
	}

	repos, closeStore, err := openStore(ctx, cfg, dataset, log)
	if err != nil {
		return err
	}
	defer closeStore()

	cache := openCache(cfg.Cache, log)
	if cache != nil {
		defer cache.Close()
	}

	m := metrics.New()
	changes := bus.New(log)

	// Services
	store := service.NewDeviceStore(repos.devices, log)
	eligibilitySvc := service.NewEligibilityService(store, repos.workOrders, log)
	notificationSvc := service.NewNotificationService(repos.notifications, log)
	maintenanceSvc := service.NewMaintenanceService(store, repos.policies, notificationSvc, changes,
		service.MaintenanceOptions{
			DueSoonWindow: cfg.Evaluator.DueSoonWindow,
			Workers:       cfg.Evaluator.Workers,
		}, m, log)

	if opts.once {
		result, err := maintenanceSvc.RunEvaluationCycle(ctx)
		if err != nil {
			return fmt.Errorf("evaluation cycle: %w", err)
		}
		if result.Failed > 0 {
			return fmt.Errorf("evaluation cycle: %d of %d writes failed", result.Failed, result.Updated+result.Failed)
		}
		return nil
	}

	stockSvc := service.NewStockService(store, cache, changes, service.StockOptions{
		Catalog:      dataset.Catalog,
		Seed:         dataset.Stock,
		FetchTimeout: cfg.Stock.FetchTimeout,
	}, m, log)
	defer stockSvc.Close()

	deviceSvc := service.NewDeviceService(repos.devices, store, eligibilitySvc, changes, log)
	workOrderSvc := service.NewWorkOrderService(repos.workOrders, store, changes, log)
	policySvc := service.NewPolicyService(repos.policies, log)
	auditSvc := service.NewAuditService(repos.audit, log)

	// Change propagation
	if repos.feed != nil {
		go changes.RunFeed(ctx, "postgres", repos.feed, bus.DefaultBackoff, func() {
			m.ObserveFeedDisconnect("postgres")
		})
	}
	if cfg.MQTT.Enabled {
		client, err := connectMQTT(cfg.MQTT, log)
		if err != nil {
			log.Warn("mqtt unavailable, cross-process signals disabled", zap.Error(err))
		} else {
			defer client.Disconnect()
			sig := mqtt.NewSignal(client, cfg.MQTT.Topic, cfg.MQTT.QoS, log)
			changes.SetRelay(sig)
			go changes.RunFeed(ctx, "mqtt", sig, bus.DefaultBackoff, func() {
				m.ObserveFeedDisconnect("mqtt")
			})
		}
	}

	// Background workers
	go maintenanceSvc.StartScheduler(ctx, cfg.Evaluator.Interval)
	go stockSvc.StartRefresher(ctx, cfg.Stock.RefreshInterval)

	// Router
	hub := storefront.NewHub(stockSvc, cfg.CORS.AllowedOrigins, log)
	router, err := api.NewRouter(api.RouterDeps{
		DeviceSvc:      deviceSvc,
		WorkOrderSvc:   workOrderSvc,
		PolicySvc:      policySvc,
		MaintenanceSvc: maintenanceSvc,
		EligibilitySvc: eligibilitySvc,
		StockSvc:       stockSvc,
		AuditSvc:       auditSvc,
		StockHub:       hub,
		JWTManager:     auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry),
		AdminEmail:     cfg.Auth.AdminEmail,
		AdminPassword:  cfg.Auth.AdminPassword,
		Metrics:        m,
		CORSOrigins:    cfg.CORS.AllowedOrigins,
		Logger:         log,
		Done:           ctx.Done(),
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	// HTTP Server
	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.ListenAddr()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, dataset *seed.Dataset, log *zap.Logger) (repositories, func(), error) {
	if cfg.Store.Driver == "memory" {
		log.Info("using in-memory store seeded with demo fleet",
			zap.Int("devices", len(dataset.Devices)),
			zap.Int("policies", len(dataset.Policies)),
		)
		return repositories{
			devices:       memory.NewDeviceRepo(dataset.Devices...),
			workOrders:    memory.NewWorkOrderRepo(),
			policies:      memory.NewPolicyRepo(dataset.Policies...),
			audit:         memory.NewAuditRepo(),
			notifications: memory.NewNotificationLog(),
		}, func() {}, nil
	}

	// pgxpool connects lazily. An unreachable database is logged, and stock
	// reads degrade to the snapshot and seed until it returns.
	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		return repositories{}, nil, fmt.Errorf("connect db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		log.Warn("database unreachable, serving degraded until it recovers",
			zap.String("host", cfg.DB.Host), zap.Error(err))
	} else {
		log.Info("database connected", zap.String("host", cfg.DB.Host))
	}

	if err := postgres.RunMigrations(cfg.DB.DSN()); err != nil {
		log.Warn("migrations failed, retrying in background", zap.Error(err))
		go migrateInBackground(ctx, cfg.DB.DSN(), log)
	} else {
		log.Info("migrations completed")
	}

	return repositories{
		devices:       postgres.NewDeviceRepo(pool),
		workOrders:    postgres.NewWorkOrderRepo(pool),
		policies:      postgres.NewPolicyRepo(pool),
		audit:         postgres.NewAuditRepo(pool),
		notifications: postgres.NewNotificationRepo(pool),
		feed:          postgres.NewChangeFeed(pool, log),
	}, pool.Close, nil
}

func migrateInBackground(ctx context.Context, dsn string, log *zap.Logger) {
	err := bus.Retry(ctx, bus.DefaultBackoff,
		func(context.Context) error { return postgres.RunMigrations(dsn) },
		func(err error, retryIn time.Duration) {
			log.Warn("migrations still failing", zap.Error(err), zap.Duration("retry_in", retryIn))
		})
	if err == nil {
		log.Info("migrations completed")
	}
}

// openCache returns nil when the snapshot store cannot be opened. Stock reads
// then degrade straight from live to seed.
func openCache(cfg config.CacheConfig, log *zap.Logger) storage.SnapshotStore {
	var (
		cache storage.SnapshotStore
		err   error
	)
	switch cfg.Driver {
	case "file":
		cache, err = local.New(cfg.Path)
	default:
		cache, err = sqlite.Open(cfg.Path)
	}
	if err != nil {
		log.Warn("snapshot cache unavailable", zap.String("driver", cfg.Driver), zap.String("path", cfg.Path), zap.Error(err))
		return nil
	}
	log.Info("snapshot cache ready", zap.String("driver", cfg.Driver), zap.String("path", cfg.Path))
	return cache
}

func connectMQTT(cfg config.MQTTConfig, log *zap.Logger) (*mqtt.Client, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "arcade-" + uuid.NewString()[:8]
	}
	client := mqtt.NewClient(mqtt.Config{
		Broker:   cfg.Broker,
		ClientID: clientID,
		Username: cfg.Username,
		Password: cfg.Password,
	}, log)
	if err := client.Connect(); err != nil {
		return nil, err
	}
	return client, nil
}
