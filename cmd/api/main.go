package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-auth-sessions/internal/application/auth"
	"github.com/go-auth-sessions/internal/application/guard"
	"github.com/go-auth-sessions/internal/application/oauth"
	"github.com/go-auth-sessions/internal/config"
	"github.com/go-auth-sessions/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-auth-sessions/internal/infrastructure/jwt"
	"github.com/go-auth-sessions/internal/infrastructure/redisstore"
	"github.com/go-auth-sessions/internal/infrastructure/smtp"
	"github.com/go-auth-sessions/internal/infrastructure/sns"
	"github.com/go-auth-sessions/internal/infrastructure/totp"
	"github.com/go-auth-sessions/internal/pkg/hash"
	transporthttp "github.com/go-auth-sessions/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)})))

	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		fatal("dynamodb client", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	accounts := dynamo.NewAccountRepo(dynamoClient, cfg.DynamoTables.Accounts)

	var sessions auth.SessionStore
	switch cfg.SessionStore {
	case "redis":
		rdb, err := redisstore.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			fatal("redis", err)
		}
		defer rdb.Close()
		sessions = redisstore.NewSessionStore(rdb)
	case "dynamo":
		sessions = dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions)
	default:
		fatal("config", fmt.Errorf("unknown SESSION_STORE %q", cfg.SessionStore))
	}
	slog.Info("session store selected", "backend", cfg.SessionStore)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		fatal("jwt provider", err)
	}

	// Security events are optional; without a topic they are only logged.
	var events guard.EventPublisher
	if cfg.SNSSecurityTopicARN != "" {
		awsCfg, err := dynamo.LoadAWSConfig(ctx, cfg, cfg.SNSRegion)
		if err != nil {
			fatal("sns config", err)
		}
		events = sns.NewPublisher(awsCfg, cfg.SNSSecurityTopicARN)
	} else {
		slog.Warn("SNS_SECURITY_TOPIC_ARN not set, security events will not be published")
	}

	now := time.Now
	lockout := guard.New(accounts, guard.Config{
		MaxAttempts:  cfg.Auth.MaxFailedLogins,
		LockDuration: cfg.Auth.LockoutDuration,
		Events:       events,
		Now:          now,
	})

	svc := auth.NewService(auth.ServiceDeps{
		Accounts: accounts,
		Sessions: sessions,
		Guard:    lockout,
		Tokens:   jwtProvider,
		Hasher:   hash.New(cfg.Auth.BcryptCost),
		TOTP:     totp.NewEngine(cfg.AppName, cfg.Auth.TOTPSkew),
		Mailer:   smtp.NewMailer(cfg),
		Events:   events,
		Policy: auth.Policy{
			RefreshTokenTTL:      cfg.Auth.RefreshTokenTTL,
			TempAuthTTL:          cfg.Auth.TempAuthTTL,
			PasswordResetTTL:     cfg.Auth.PasswordResetTTL,
			EmailVerificationTTL: cfg.Auth.EmailVerificationTTL,
			BackupCodeCount:      cfg.Auth.BackupCodeCount,
			BackupCodeCost:       cfg.Auth.BackupCodeCost,
			AppName:              cfg.AppName,
			FrontendURL:          cfg.FrontendURL,
		},
		Now: now,
	})

	router, stopRouter := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Auth:     svc,
		Verifier: jwtProvider,
		OAuth:    oauth.DefaultRegistry(),
	})
	defer stopRouter()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		return
	}
	slog.Info("server stopped")
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func fatal(what string, err error) {
	slog.Error("startup failed", "component", what, "error", err)
	os.Exit(1)
}
