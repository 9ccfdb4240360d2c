package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fardin04/pu-found-lost-hub/internal/config"
	"github.com/fardin04/pu-found-lost-hub/internal/domain"
	"github.com/fardin04/pu-found-lost-hub/internal/handler"
	"github.com/fardin04/pu-found-lost-hub/internal/imagehost"
	"github.com/fardin04/pu-found-lost-hub/internal/repository/postgres"
	"github.com/fardin04/pu-found-lost-hub/internal/repository/sqlite"
	"github.com/fardin04/pu-found-lost-hub/internal/service"
)

func main() {
	level := new(slog.LevelVar)
	logOpts := &slog.HandlerOptions{Level: level}
	logger := slog.New(slog.NewMultiHandler(
		slog.NewTextHandler(os.Stdout, logOpts),
		slog.NewJSONHandler(os.Stderr, logOpts),
	))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied", "driver", cfg.DatabaseDriver)

	authOpts := []service.AuthOption{service.WithBaseURL(cfg.PublicBaseURL)}
	if cfg.FederatedEnabled() {
		authOpts = append(authOpts, service.WithFederated(service.NewFederatedVerifier(cfg.FederatedSecret, cfg.FederatedIssuer)))
		slog.Info("federated sign-in enabled", "issuer", cfg.FederatedIssuer)
	}
	authService := service.NewAuthService(store.Accounts(), store.Sessions(), service.NewLogMailer(), cfg.JWTSecret, cfg.BcryptCost, authOpts...)
	gateway := service.NewSessionGateway(authService, store.Profiles(), cfg.AllowedDomains)

	blobs := imagehost.NewBlobHost(store.FileStore(), cfg.PublicBaseURL)
	var host domain.ImageHost = blobs
	if cfg.CloudinaryEnabled() {
		host = imagehost.NewCloudinary(cfg.CloudinaryName, cfg.CloudinaryUploadPreset)
		slog.Info("uploading images to cloudinary", "cloud", cfg.CloudinaryName)
	}
	postService := service.NewPostService(store.Posts(), store.Profiles(), service.NewMediaUploader(host))

	// Five auth attempts per client, refilling one every twelve seconds.
	limiter := service.NewTokenBucket(1.0/12, 5)
	defer limiter.Close()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, handler.Deps{
		Gateway:      gateway,
		Posts:        postService,
		Blobs:        blobs,
		Limiter:      limiter,
		Store:        store,
		CookieSecure: cfg.CookieSecure,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.SecurityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
		// Live streams end with the signal instead of holding up Shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (domain.Store, error) {
	if cfg.DatabaseDriver == config.DriverPostgres {
		return postgres.New(ctx, cfg.DatabaseURL)
	}
	return sqlite.New(cfg.DatabasePath)
}
