package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/datkrb/resfood-payments/internal/app"
	"github.com/datkrb/resfood-payments/internal/clock"
	"github.com/datkrb/resfood-payments/internal/config"
	"github.com/datkrb/resfood-payments/internal/logging"
	"github.com/datkrb/resfood-payments/internal/storage/memory"
	"github.com/datkrb/resfood-payments/internal/storage/postgres"
	"github.com/datkrb/resfood-payments/internal/storage/sqlite"
	"github.com/datkrb/resfood-payments/internal/vietqr"
	"github.com/datkrb/resfood-payments/internal/zalopay"
	"github.com/datkrb/resfood-payments/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
)

const startupTimeout = 5 * time.Second

// backend is everything the services need from one storage driver.
type backend interface {
	app.OrderStore
	app.NotificationLog
	app.AdminRepository
	Ping(ctx context.Context) error
}

type wiring struct {
	cfg     config.Config
	logger  *slog.Logger
	store   backend
	qr      *app.QRService
	gateway *app.GatewayService
	admin   *app.AdminService
	close   func()
}

func loadWiring(configFile string) (*wiring, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: configFile})
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging)
	slog.SetDefault(logger)
	if cfg.EnvFile != "" {
		logger.Info("loaded env file", "path", cfg.EnvFile)
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	store, closeStore, err := openBackend(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	clk := clock.NewSystem()
	reconciler := app.NewReconciler(store, clk,
		app.WithNotificationLog(store),
		app.WithReconcilerLogger(logger),
		app.WithStoreTimeout(cfg.Store.Timeout),
	)

	builder := vietqr.Builder{
		BankID:      cfg.QR.BankID,
		AccountNo:   cfg.QR.AccountNo,
		AccountName: cfg.QR.AccountName,
		Template:    cfg.QR.Template,
	}
	if !builder.Configured() {
		logger.Warn("QR_BANK_ID or QR_ACCOUNT_NO not set, QR links will not resolve to an account")
	}
	if cfg.QR.WebhookAPIKey == "" {
		logger.Warn("QR_WEBHOOK_API_KEY not set, bank webhooks are accepted unauthenticated")
	}

	rt := &wiring{
		cfg:    cfg,
		logger: logger,
		store:  store,
		qr: app.NewQRService(store, reconciler, clk, app.QRServiceConfig{
			Builder:           builder,
			WebhookAPIKey:     cfg.QR.WebhookAPIKey,
			DescriptionPrefix: cfg.QR.DescriptionPrefix,
			StoreTimeout:      cfg.Store.Timeout,
			Logger:            logger,
		}),
		admin: app.NewAdminService(store, clk),
		close: closeStore,
	}

	if cfg.ZaloPay.Configured() {
		client := zalopay.NewClient(zalopay.Config{
			AppID:       cfg.ZaloPay.AppID,
			Key1:        cfg.ZaloPay.Key1,
			Key2:        cfg.ZaloPay.Key2,
			Endpoint:    cfg.ZaloPay.Endpoint,
			CallbackURL: cfg.ZaloPay.CallbackURL,
			Timeout:     cfg.ZaloPay.Timeout,
		})
		rt.gateway = app.NewGatewayService(store, client, reconciler, clk, app.GatewayServiceConfig{
			DescriptionPrefix: cfg.QR.DescriptionPrefix,
			RedirectURL:       cfg.ZaloPay.RedirectURL,
			StoreTimeout:      cfg.Store.Timeout,
			Logger:            logger,
		})
	} else {
		logger.Warn("ZALOPAY_APP_ID, ZALOPAY_KEY1 or ZALOPAY_KEY2 not set, gateway routes disabled")
	}

	return rt, nil
}

func openBackend(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (backend, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("db ping: %w", err)
		}
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		logger.Info("order store ready", "driver", cfg.Driver, "migrations_applied", applied)
		return postgres.NewAdminRepository(pool), pool.Close, nil

	case config.DriverSQLite:
		db, err := sqlite.InitDB(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		logger.Info("order store ready", "driver", cfg.Driver, "path", cfg.SQLitePath)
		return sqlite.NewStore(db), func() { _ = db.Close() }, nil

	case config.DriverMemory:
		logger.Warn("using in-memory order store, state is lost on exit")
		return memory.NewStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
