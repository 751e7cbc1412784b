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

	"contacts-api/internal/cache"
	"contacts-api/internal/config"
	apphttp "contacts-api/internal/http"
	"contacts-api/internal/notifier"
	"contacts-api/internal/repository/sqlite"
	"contacts-api/internal/service"
	"contacts-api/internal/storage"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("open database: %v", err)
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	tokenRepo := sqlite.NewRefreshTokenRepository(db)
	contactRepo := sqlite.NewContactRepository(db)

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}
	if err := tokenRepo.Init(ctx); err != nil {
		logger.Fatalf("init refresh token repository: %v", err)
	}
	if err := contactRepo.Init(ctx); err != nil {
		logger.Fatalf("init contact repository: %v", err)
	}

	cacheClient, err := cache.NewClient(cfg.Redis.URL)
	if err != nil {
		logger.Fatalf("connect redis: %v", err)
	}
	defer cacheClient.Close()

	secret := []byte(cfg.Auth.JWTSecret)
	emailTokenTTL := time.Duration(cfg.Auth.EmailTokenTTLDays) * 24 * time.Hour

	authService := service.NewAuthService(userRepo, tokenRepo, cacheClient, service.AuthConfig{
		JWTSecret:       secret,
		AccessTokenTTL:  time.Duration(cfg.Auth.AccessTTLMinutes) * time.Minute,
		RefreshTokenTTL: time.Duration(cfg.Auth.RefreshTTLDays) * 24 * time.Hour,
		UserCacheTTL:    time.Duration(cfg.Auth.UserCacheSeconds) * time.Second,
		UsernameMinLen:  cfg.Auth.UsernameMin,
		UsernameMaxLen:  cfg.Auth.UsernameMax,
		PasswordMinLen:  cfg.Auth.PasswordMin,
		PasswordMaxLen:  cfg.Auth.PasswordMax,
	}, logger)

	userService := service.NewUserService(userRepo, cacheClient, service.UserConfig{
		JWTSecret:     secret,
		EmailTokenTTL: emailTokenTTL,
		PasswordMin:   cfg.Auth.PasswordMin,
		PasswordMax:   cfg.Auth.PasswordMax,
	}, logger)

	contactService := service.NewContactService(contactRepo)

	var mailer *notifier.Mailer
	if cfg.Mail.Addr != "" {
		mailer = notifier.NewMailer(notifier.Config{
			Addr:     cfg.Mail.Addr,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			FromName: cfg.Mail.FromName,
			BaseURL:  cfg.Server.BaseURL,
		}, logger)
	} else {
		logger.Warn("mail address not configured, account mail disabled")
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Warnf("setup storage: %v (avatar upload disabled)", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(
		authService,
		userService,
		contactService,
		mailer,
		storageSvc,
		cfg.Storage.Bucket,
		cfg.Storage.KeyPrefix,
		secret,
		emailTokenTTL,
		logger,
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

	logger.Info("bye")
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

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
	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, cfg.Storage.PublicURL), nil
}
