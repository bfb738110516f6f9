package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"onboarding/internal/domain/documents"
	"onboarding/internal/domain/users"
	"onboarding/internal/platform/cache"
	"onboarding/internal/platform/config"
	cryptoutil "onboarding/internal/platform/crypto"
	"onboarding/internal/platform/db"
	"onboarding/internal/platform/metrics"
	"onboarding/internal/platform/storage"
)

type App struct {
	Config config.Config
	Logger *zap.Logger
	Router http.Handler

	closers []func(context.Context) error
}

// New connects every backend named by cfg and fails closed: nothing is
// served unless the metadata store, file storage and (when configured) redis
// are all reachable.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger}

	userStore, docStore, err := app.openStores(ctx)
	if err != nil {
		app.Close(context.Background())
		return nil, err
	}

	files, err := openStorage(ctx, cfg)
	if err != nil {
		app.Close(context.Background())
		return nil, err
	}

	var redisClient redis.Cmdable
	client, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		app.Close(context.Background())
		return nil, err
	}
	if client != nil {
		redisClient = client
		app.closers = append(app.closers, func(context.Context) error { return client.Close() })
	} else {
		logger.Info("redis not configured; using in-process rate limits and idempotency")
	}

	if cfg.RunSeed {
		if err := db.Seed(ctx, users.NewService(userStore, logger), cfg, logger); err != nil {
			app.Close(context.Background())
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	app.Router = NewRouter(Deps{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics.New(),
		Users:     userStore,
		Documents: docStore,
		Files:     files,
		Redis:     redisClient,
	})
	return app, nil
}

func (a *App) openStores(ctx context.Context) (users.StoreAPI, documents.StoreAPI, error) {
	switch a.Config.StoreDriver {
	case config.StorePostgres:
		pool, err := db.ConnectPostgres(ctx, a.Config)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		if a.Config.RunMigrations {
			if err := db.Migrate(ctx, pool); err != nil {
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		a.Logger.Info("metadata store connected", zap.String("driver", config.StorePostgres))
		return users.NewPostgresStore(pool), documents.NewPostgresStore(pool), nil
	default:
		client, database, err := db.ConnectMongo(ctx, a.Config)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		userStore := users.NewMongoStore(database)
		docStore := documents.NewMongoStore(database)
		if err := db.EnsureIndexes(ctx, userStore, docStore); err != nil {
			return nil, nil, err
		}
		a.Logger.Info("metadata store connected",
			zap.String("driver", config.StoreMongo),
			zap.String("database", a.Config.MongoDatabase))
		return userStore, docStore, nil
	}
}

func openStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	var (
		inner storage.Storage
		err   error
	)
	switch cfg.StorageType {
	case config.StorageMinio:
		inner, err = storage.NewMinio(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		inner, err = storage.NewLocal(cfg.UploadDir)
	}
	if err != nil {
		return nil, fmt.Errorf("open file storage: %w", err)
	}
	crypto, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("load encryption key: %w", err)
	}
	return storage.NewEncrypted(inner, crypto), nil
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
