package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"streamhub/internal/config"
	"streamhub/internal/downloader"
	apphttp "streamhub/internal/http"
	"streamhub/internal/media"
	"streamhub/internal/pipeline"
	"streamhub/internal/repository/sqlite"
	"streamhub/internal/service"
	"streamhub/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		logger.Fatalf("auth jwt secret is required")
	}
	if strings.TrimSpace(cfg.Auth.RegisterPassword) == "" {
		logger.Fatalf("auth registration password is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	videoRepo := sqlite.NewVideoRepository(db)
	playlistRepo := sqlite.NewPlaylistRepository(db)
	jobRepo := sqlite.NewJobRepository(db)
	userRepo := sqlite.NewUserRepository(db)

	if err := videoRepo.Init(ctx); err != nil {
		logger.Fatalf("init video repository: %v", err)
	}
	if err := playlistRepo.Init(ctx); err != nil {
		logger.Fatalf("init playlist repository: %v", err)
	}
	if err := jobRepo.Init(ctx); err != nil {
		logger.Fatalf("init job repository: %v", err)
	}
	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	catalog := service.NewCatalogService(videoRepo, playlistRepo)
	users := service.NewUserService(userRepo, cfg.Auth.RegisterPassword)

	acquirer, err := downloader.NewClient(downloader.Config{
		DataDir:         cfg.Download.DataDir,
		StatusInterval:  time.Duration(cfg.Download.StatusIntervalSeconds) * time.Second,
		MetadataTimeout: time.Duration(cfg.Download.MetadataTimeoutMinutes) * time.Minute,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatalf("setup torrent client: %v", err)
	}
	defer acquirer.Close()

	transcoder := media.NewTranscoder(media.Config{
		FFmpegPath:     cfg.Media.FFmpegPath,
		FFprobePath:    cfg.Media.FFprobePath,
		SegmentSeconds: cfg.Media.SegmentSeconds,
		Logger:         logger,
	})

	var mirror storage.Service
	if cfg.Storage.Bucket != "" {
		mirror, err = buildStorage(ctx, cfg, logger)
		if err != nil {
			logger.Fatalf("setup storage: %v", err)
		}
	}

	worker := pipeline.NewWorker(pipeline.Config{
		DownloadRoot: cfg.Download.DataDir,
		StorageRoot:  cfg.Media.StorageDir,
		Mirror: storage.UploadOptions{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
		},
		Logger: logger,
	}, acquirer, transcoder, catalog, jobRepo, mirror)

	if err := worker.Start(ctx); err != nil {
		logger.Fatalf("start worker: %v", err)
	}
	if err := worker.Resume(ctx); err != nil {
		logger.Warnf("resume jobs: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		catalog,
		users,
		worker,
		jobRepo,
		mirror,
		cfg.Storage.Bucket,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute,
	)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	worker.Shutdown()

	logger.Info("bye")
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("mirroring to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, logger), nil
}
