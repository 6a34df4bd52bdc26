package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/gvn-booking-api/api/swagger"
	"github.com/noah-isme/gvn-booking-api/internal/handler"
	"github.com/noah-isme/gvn-booking-api/internal/middleware"
	"github.com/noah-isme/gvn-booking-api/internal/repository"
	"github.com/noah-isme/gvn-booking-api/internal/service"
	"github.com/noah-isme/gvn-booking-api/pkg/cache"
	"github.com/noah-isme/gvn-booking-api/pkg/config"
	"github.com/noah-isme/gvn-booking-api/pkg/database"
	"github.com/noah-isme/gvn-booking-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gvn-booking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gvn-booking-api/pkg/middleware/requestid"
	"github.com/noah-isme/gvn-booking-api/pkg/security"
	"github.com/noah-isme/gvn-booking-api/pkg/storage"
)

// @title GVN Booking API
// @version 1.0.0
// @description Accounts, sessions and partner applications for the GVN booking platform.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Profile.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, profile cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
		}
	}

	files, err := newFileStore(ctx, cfg, logr)
	if err != nil {
		logr.Fatal("failed to init file storage", zap.Error(err))
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		AccessTTL:  cfg.JWT.Expiration,
		RefreshTTL: cfg.JWT.RefreshExpiration,
	})
	if err != nil {
		logr.Fatal("invalid token configuration", zap.Error(err))
	}

	signer := storage.NewDownloadSigner(cfg.Storage.SigningSecret, cfg.Storage.SignedURLTTL)
	metrics := service.NewMetricsService()
	validate := validator.New()
	hasher := security.NewBcryptHasher(cfg.Password.HashCost)

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	partnerRepo := repository.NewPartnerProfileRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	var cacheClient redis.Cmdable
	if redisClient != nil {
		cacheClient = redisClient
	}
	cacheRepo := repository.NewCacheRepository(cacheClient, "gvn:")
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Profile.CacheTTL, logr, redisClient != nil)

	cleanup := service.NewFileCleanupService(files, service.FileCleanupConfig{
		Workers:    cfg.Cleanup.Workers,
		MaxRetries: cfg.Cleanup.MaxRetries,
		RetryDelay: cfg.Cleanup.RetryDelay,
	}, metrics, logr)
	cleanup.Start(context.Background())

	users := service.NewUserService(userRepo, hasher, logr)
	authSvc := service.NewAuthService(service.AuthServiceDeps{
		Tx:       db,
		Accounts: users,
		Users:    userRepo,
		Sessions: sessionRepo,
		Partners: partnerRepo,
		Tokens:   tokens,
		Audit:    auditRepo,
		Cleanup:  cleanup,
		Cache:    cacheSvc,
		Metrics:  metrics,
	}, validate, logr, service.AuthConfig{PublicPrefix: cfg.Storage.PublicPrefix})
	profileSvc := service.NewProfileService(service.ProfileServiceDeps{
		Tx:       db,
		Users:    userRepo,
		Sessions: sessionRepo,
		Partners: partnerRepo,
		Files:    files,
		Hasher:   hasher,
		Cache:    cacheSvc,
		Cleanup:  cleanup,
		Audit:    auditRepo,
		Signer:   signer,
	}, validate, logr, service.ProfileConfig{
		PublicPrefix: cfg.Storage.PublicPrefix,
		MaxFileSize:  cfg.Storage.MaxFileSizeBytes,
		CacheTTL:     cfg.Profile.CacheTTL,
	})
	resolver := service.NewIdentityResolver(tokens, sessionRepo, userRepo, logr)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Storage.MaxFileSizeBytes
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))
	r.Use(middleware.Authenticate(resolver))

	metricsHandler := handler.NewMetricsHandler(metrics,
		handler.ReadinessCheck{Name: "database", Probe: databaseProbe(db)},
		handler.ReadinessCheck{Name: "cache", Probe: cacheRepo.Ping},
	)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), routeHandlers{
		auth:    handler.NewAuthHandler(authSvc, profileSvc),
		profile: handler.NewProfileHandler(profileSvc, authSvc, cfg.Storage.MaxFileSizeBytes),
		files:   handler.NewFileHandler(files, signer),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	cleanup.Stop()
}

type routeHandlers struct {
	auth    *handler.AuthHandler
	profile *handler.ProfileHandler
	files   *handler.FileHandler
}

func registerRoutes(api *gin.RouterGroup, h routeHandlers) {
	auth := api.Group("/auth")
	auth.POST("/login", h.auth.Login)
	auth.POST("/signup", h.auth.Signup)
	auth.POST("/refresh-token", h.auth.Refresh)

	authed := auth.Group("", middleware.RequireAuth())
	authed.POST("/logout", h.auth.Logout)
	authed.POST("/logout-all", h.auth.LogoutAll)
	authed.GET("/sessions", h.auth.Sessions)
	authed.GET("/me", h.auth.Me)

	user := api.Group("/user", middleware.RequireAuth())
	user.GET("/profile", h.profile.Get)
	user.PUT("/profile", h.profile.Update)
	user.DELETE("/profile", h.profile.Delete)
	user.PUT("/profile/avatar", h.profile.UpdateAvatar)
	user.DELETE("/profile/avatar", h.profile.DeleteAvatar)
	user.POST("/profile/change-password", h.profile.ChangePassword)
	user.POST("/applicant-register", h.profile.RegisterPartner)
	user.PUT("/partner-profile", h.profile.UpdatePartnerProfile)
	user.GET("/partner-profile/documents", h.profile.PartnerDocuments)

	api.GET("/files/*path", h.files.Download)
}

func newFileStore(ctx context.Context, cfg *config.Config, logr *zap.Logger) (storage.FileStore, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverS3:
		return storage.NewS3Storage(ctx, cfg.Storage.S3, logr)
	default:
		return storage.NewLocalStorage(cfg.Storage.UploadDir, logr)
	}
}

// databaseProbe pings postgres and confirms the schema has been migrated.
func databaseProbe(db *sqlx.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		version, err := database.Version(ctx, db)
		if err != nil {
			return err
		}
		if version <= 0 {
			return errors.New("schema not migrated")
		}
		return nil
	}
}
