package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emmegi/catalog-api/internal/application/file"
	"github.com/emmegi/catalog-api/internal/application/invite"
	"github.com/emmegi/catalog-api/internal/application/notification"
	"github.com/emmegi/catalog-api/internal/application/product"
	"github.com/emmegi/catalog-api/internal/application/session"
	"github.com/emmegi/catalog-api/internal/application/verification"
	"github.com/emmegi/catalog-api/internal/config"
	"github.com/emmegi/catalog-api/internal/infrastructure/dynamo"
	"github.com/emmegi/catalog-api/internal/infrastructure/google"
	jwtinfra "github.com/emmegi/catalog-api/internal/infrastructure/jwt"
	"github.com/emmegi/catalog-api/internal/infrastructure/resend"
	s3infra "github.com/emmegi/catalog-api/internal/infrastructure/s3"
	"github.com/emmegi/catalog-api/internal/infrastructure/smtp"
	"github.com/emmegi/catalog-api/internal/infrastructure/sns"
	transport "github.com/emmegi/catalog-api/internal/transport/http"
	"github.com/emmegi/catalog-api/internal/transport/http/handler"
	"github.com/joho/godotenv"
)

const version = "1.0.0"

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	ctx := context.Background()

	dynamoClient := dynamo.NewClient(cfg)
	if cfg.AWSEndpointURL != "" {
		// LocalStack: create the tables on startup.
		dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	}

	verificationRepo := dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.VerificationSessions)
	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	sessionRepo := dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
	grantRepo := dynamo.NewRoleGrantRepo(dynamoClient, cfg.DynamoTables.RoleGrants)
	attemptRepo := dynamo.NewAttemptRepo(dynamoClient, cfg.DynamoTables.LoginAttempts)
	productRepo := dynamo.NewProductRepo(dynamoClient, cfg.DynamoTables.Products)
	fileRepo := dynamo.NewFileRepo(dynamoClient, cfg.DynamoTables.Files)
	notificationRepo := dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications)

	var mailer smtp.Mailer
	if cfg.ResendAPIKey != "" {
		mailer = resend.NewMailer(cfg)
		logger.Info("using resend mailer")
	} else {
		mailer = smtp.NewMailer(cfg)
		logger.Info("using smtp mailer")
	}

	var alerts verification.AlertPublisher
	if publisher, err := sns.NewPublisher(cfg); err != nil {
		logger.Warn("security alerts disabled", "reason", err)
	} else {
		alerts = publisher
	}

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		logger.Error("failed to load JWT keys", "error", err)
		os.Exit(1)
	}

	googleVerifier := google.NewVerifier(cfg.GoogleClientID)

	s3Client := s3infra.NewClient(cfg)
	objectStore := s3infra.NewStore(s3Client, cfg.S3BucketName)

	inviteService := invite.NewService(verificationRepo, userRepo, grantRepo, mailer, cfg, logger)
	verificationService := verification.NewService(verificationRepo, userRepo, attemptRepo, notificationRepo, mailer, alerts, cfg, logger)
	sessionService := session.NewService(sessionRepo, userRepo, attemptRepo, verificationRepo, grantRepo, jwtProvider, googleVerifier, logger)
	productService := product.NewService(productRepo, logger)
	fileService := file.NewService(fileRepo, objectStore, logger)
	notificationService := notification.NewService(notificationRepo, logger)

	router := transport.NewRouter(transport.Handlers{
		Health:        handler.NewHealthHandler(version),
		Invites:       handler.NewInviteHandler(inviteService),
		Verifications: handler.NewVerificationHandler(verificationService),
		Sessions:      handler.NewSessionHandler(sessionService),
		Products:      handler.NewProductHandler(productService),
		Notifications: handler.NewNotificationHandler(notificationService),
		Files:         handler.NewFileHandler(fileService),
	}, jwtProvider, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}
