package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"family-circle-go/internal/config"
	"family-circle-go/internal/db"
	familydomain "family-circle-go/internal/domain/family"
	"family-circle-go/internal/domain/storage"
	userdomain "family-circle-go/internal/domain/user"
	"family-circle-go/internal/metrics"
	"family-circle-go/internal/repository/inmemory"
	mongofamily "family-circle-go/internal/repository/mongo/family"
	mongouser "family-circle-go/internal/repository/mongo/user"
	pgfamily "family-circle-go/internal/repository/postgres/family"
	pguser "family-circle-go/internal/repository/postgres/user"
	rediscache "family-circle-go/internal/repository/redis"
	"family-circle-go/internal/storage/local"
	s3store "family-circle-go/internal/storage/s3"
	"family-circle-go/internal/transport/httpserver"
	"family-circle-go/internal/transport/httpserver/handler"
	authmw "family-circle-go/internal/transport/httpserver/middleware"
	"family-circle-go/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const startupTimeout = 30 * time.Second

type App struct {
	cfg        config.Config
	httpServer *http.Server
	closers    []func() error
}

type repositories struct {
	families familydomain.Repository
	users    userdomain.Repository
}

func New(log logger.Logger) (*App, error) {
	log.Info("app: loading config")
	cfg, err := config.Load(log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a := &App{cfg: cfg}

	log.Info("app: initializing store", "driver", cfg.StoreDriver)
	repos, err := a.openStore(ctx, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	log.Info("app: initializing blob storage", "driver", cfg.Storage.Driver)
	blobs, uploadsDir, err := openBlobStore(ctx, cfg.Storage)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	log.Info("app: initializing cache", "driver", cfg.Cache.Driver)
	cache, err := a.openCache(ctx, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	recorder := metrics.New()
	opts := []familydomain.Option{familydomain.WithRecorder(recorder)}
	if cache != nil {
		opts = append(opts, familydomain.WithCache(cache, cfg.Cache.TTL))
	}
	families := familydomain.NewService(repos.families, blobs, log, opts...)
	users := userdomain.NewService(repos.users)

	log.Info("app: initializing router")
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Config:     cfg,
		Handlers:   handler.New(families, log, cfg.Uploads.MaxImageBytes),
		Auth:       authmw.NewAuthenticator(cfg.Auth, newVerifier(cfg.Auth), users, log),
		Logger:     log,
		Metrics:    recorder.Handler(),
		UploadsDir: uploadsDir,
	})

	log.Info("app: initializing http server")
	a.httpServer = httpserver.New(cfg, router)

	return a, nil
}

func (a *App) openStore(ctx context.Context, log logger.Logger) (repositories, error) {
	switch a.cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := inmemory.NewStore()
		return repositories{families: store, users: store}, nil

	case config.StoreDriverMongo:
		client, database, err := db.NewMongo(ctx, a.cfg.Mongo)
		if err != nil {
			return repositories{}, err
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })

		familyRepo := mongofamily.NewMongo(database)
		if err := familyRepo.EnsureIndexes(ctx); err != nil {
			return repositories{}, fmt.Errorf("mongo indexes: %w", err)
		}
		return repositories{families: familyRepo, users: mongouser.NewMongo(database)}, nil

	default:
		dbConn, err := db.NewPostgres(ctx, a.cfg.DB, log)
		if err != nil {
			return repositories{}, err
		}
		a.closers = append(a.closers, func() error {
			sqlDB, err := dbConn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})

		if a.cfg.DB.AutoMigrate {
			if err := db.Migrate(dbConn, log); err != nil {
				return repositories{}, err
			}
		}
		return repositories{families: pgfamily.NewPostgres(dbConn), users: pguser.NewPostgres(dbConn)}, nil
	}
}

func (a *App) openCache(ctx context.Context, log logger.Logger) (familydomain.Cache, error) {
	switch a.cfg.Cache.Driver {
	case config.CacheDriverNone:
		return nil, nil
	case config.CacheDriverRedis:
		client, err := db.NewRedis(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return rediscache.NewFamilyCache(client, log), nil
	default:
		return inmemory.NewFamilyCache(), nil
	}
}

// openBlobStore returns the store and, for local disk, the directory to serve.
func openBlobStore(ctx context.Context, cfg config.StorageConfig) (storage.BlobStore, string, error) {
	if cfg.Driver == config.StorageDriverS3 {
		store, err := s3store.New(ctx, cfg.S3)
		if err != nil {
			return nil, "", err
		}
		return store, "", nil
	}

	store, err := local.New(cfg.Local.Dir, cfg.Local.BaseURL)
	if err != nil {
		return nil, "", err
	}
	return store, store.Dir(), nil
}

func newVerifier(cfg config.AuthConfig) authmw.Verifier {
	if cfg.Mode == config.AuthModeRemote {
		return authmw.NewRemoteVerifier(cfg.RemoteURL, cfg.RemoteAPIKey, cfg.Timeout)
	}
	return authmw.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)
}

func (a *App) HTTPServer() *http.Server {
	return a.httpServer
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// the server down within the configured grace period.
func (a *App) Run(ctx context.Context, log logger.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http: listening", "addr", a.httpServer.Addr,
			"store", a.cfg.StoreDriver, "storage", a.cfg.Storage.Driver, "cache", a.cfg.Cache.Driver)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("http: shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
