package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/abduss/filehub/internal/album"
	"github.com/abduss/filehub/internal/auth"
	"github.com/abduss/filehub/internal/config"
	"github.com/abduss/filehub/internal/events"
	"github.com/abduss/filehub/internal/logger"
	"github.com/abduss/filehub/internal/media"
	"github.com/abduss/filehub/internal/metrics"
	"github.com/abduss/filehub/internal/objectstore"
	"github.com/abduss/filehub/internal/quota"
	"github.com/abduss/filehub/internal/server"
	"github.com/abduss/filehub/internal/storage"
	"github.com/abduss/filehub/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type publisher interface {
	ObjectUploaded(ctx context.Context, key string, sizeBytes int64, contentType string) error
	ObjectDeleted(ctx context.Context, key string) error
	SendVerificationEmail(ctx context.Context, email, actionURL string) error
	Close() error
}

func main() {
	// .env is optional outside local development.
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.InitMetrics()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatal("setup tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("flush traces", zap.Error(err))
		}
	}()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	if cfg.Postgres.MigrateOnStart {
		if err := storage.Migrate(cfg.Postgres.DSN()); err != nil {
			log.Fatal("migrate postgres", zap.Error(err))
		}
		log.Info("database schema up to date")
	}

	store, err := openObjectStore(ctx, cfg.ObjectStore)
	if err != nil {
		log.Fatal("open object store", zap.Error(err), zap.String("driver", cfg.ObjectStore.Driver))
	}

	var producer publisher = events.Noop{}
	if cfg.RabbitMQ.URL != "" {
		p, err := events.Dial(cfg.RabbitMQ.URL)
		if err != nil {
			log.Fatal("connect rabbitmq", zap.Error(err))
		}
		producer = p
	} else {
		log.Info("rabbitmq url not set, events disabled")
	}
	defer func() {
		if err := producer.Close(); err != nil {
			log.Warn("close event producer", zap.Error(err))
		}
	}()

	guard := quota.NewGuard(store, cfg.Storage.QuotaMB)
	albumService := album.NewService(album.NewRepository(dbPool), store, log.Named("album"), album.Options{
		ShareTTL:        cfg.Album.ShareTTL,
		ShareCodeLength: cfg.Album.ShareCodeLength,
		PreviewTTL:      cfg.Storage.PresignTTL,
	})
	mediaService := media.NewService(store, guard, albumService, producer, log.Named("media"), media.Options{
		PresignTTL:          cfg.Storage.PresignTTL,
		AllowedContentTypes: cfg.Storage.AllowedContentTypes,
		MaxUploadBytes:      cfg.Storage.MaxUploadBytes,
	})
	authService := auth.NewService(auth.NewRepository(dbPool), producer, cfg.Auth, log.Named("auth"))

	router := server.NewRouter(server.Dependencies{
		Config:       cfg,
		DB:           dbPool,
		ObjectStore:  store,
		AuthService:  authService,
		MediaService: mediaService,
		AlbumService: albumService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("FileHub API listening", zap.String("addr", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

type readyGateway interface {
	objectstore.Gateway
	Ready(ctx context.Context) error
}

func openObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (readyGateway, error) {
	switch cfg.Driver {
	case config.DriverS3:
		client, err := storage.NewS3Client(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return objectstore.NewS3(client, cfg.Bucket), nil
	case config.DriverMemory:
		return objectstore.NewMemory(cfg.Bucket), nil
	default:
		client, err := storage.NewMinIOClient(cfg)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx, client, cfg.Bucket, cfg.Region); err != nil {
			return nil, err
		}
		return objectstore.NewMinIO(client, cfg.Bucket), nil
	}
}
