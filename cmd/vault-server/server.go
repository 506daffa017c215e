package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/healthvault/vault/internal/config"
	"github.com/healthvault/vault/internal/domain/account"
	"github.com/healthvault/vault/internal/domain/emergency"
	"github.com/healthvault/vault/internal/domain/records"
	"github.com/healthvault/vault/internal/domain/reminder"
	"github.com/healthvault/vault/internal/domain/wellness"
	"github.com/healthvault/vault/internal/platform/auth"
	"github.com/healthvault/vault/internal/platform/blobstore"
	"github.com/healthvault/vault/internal/platform/lock"
	"github.com/healthvault/vault/internal/platform/middleware"
	"github.com/healthvault/vault/internal/platform/notification"
	"github.com/healthvault/vault/internal/platform/qrcode"
)

const serviceName = "Smart Health Vault API"

// dependencies are the stateful collaborators behind the HTTP surface. The
// serve command builds them from config; tests substitute in-memory ones.
type dependencies struct {
	users     account.UserRepository
	profiles  emergency.ProfileRepository
	reminders reminder.Repository
	records   records.Repository
	blobs     blobstore.Store
	sms       notification.SMSGateway
	locker    lock.Locker
}

type server struct {
	echo       *echo.Echo
	dispatcher *reminder.Dispatcher
}

func pgDependencies(pool *pgxpool.Pool) dependencies {
	return dependencies{
		users:     account.NewUserRepoPG(pool),
		profiles:  emergency.NewProfileRepoPG(pool),
		reminders: reminder.NewRepoPG(pool),
		records:   records.NewRepoPG(pool),
	}
}

func newServer(cfg *config.Config, logger zerolog.Logger, deps dependencies) *server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger, !cfg.IsProduction())

	// Global middleware. Recovery sits inside RequestTimeout because the
	// timeout runs the rest of the chain on its own goroutine.
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Sanitize(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(30*time.Second, "/api/records/upload"))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.BodyLimit("1M", strconv.FormatInt(cfg.UploadMaxBytes, 10), "/api/records/upload"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID", auth.DevUserHeader},
		AllowCredentials: true,
	}))

	// Auth middleware, then per-user rate limiting. Both only wrap routes
	// that need a signed-in user.
	var authMW echo.MiddlewareFunc
	if cfg.UseDevAuth() {
		authMW = auth.DevAuthMiddleware()
	} else {
		jwtCfg := auth.JWTConfig{
			Issuer:   cfg.FirebaseIssuer(),
			Audience: cfg.FirebaseProjectID,
			JWKSURL:  cfg.AuthJWKSURL,
			Logger:   logger,
		}
		if cfg.AuthSigningKey != "" {
			jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
		}
		authMW = auth.JWTMiddleware(jwtCfg)
	}
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	protected := []echo.MiddlewareFunc{authMW, middleware.RateLimit(rateLimitCfg)}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   serviceName,
		})
	})

	api := e.Group("/api")

	accountSvc := account.NewService(deps.users)
	account.NewHandler(accountSvc).RegisterRoutes(api, protected...)

	links := qrcode.NewLinkBuilder(cfg.FrontendURL, logger)
	emergencySvc := emergency.NewService(deps.profiles, accountSvc, qrcode.NewRenderer(), links, logger)
	emergencyHandler := emergency.NewHandler(emergencySvc, cfg.FrontendURL)
	emergencyHandler.RegisterRoutes(api, protected...)
	emergencyHandler.RegisterPublicRoutes(e)

	reminderSvc := reminder.NewService(deps.reminders, accountSvc, cfg.ReminderLocation())
	reminder.NewHandler(reminderSvc).RegisterRoutes(api, protected...)

	recordSvc := records.NewService(deps.records, accountSvc, deps.blobs, cfg.UploadMaxBytes, logger)
	records.NewHandler(recordSvc).RegisterRoutes(api, protected...)
	if mem, ok := deps.blobs.(*blobstore.InMemoryBlobStore); ok {
		blobstore.NewHandler(mem).RegisterRoutes(e)
	}

	wellness.NewHandler(wellness.NewResponder()).RegisterRoutes(api, protected...)

	return &server{
		echo:       e,
		dispatcher: newDispatcher(cfg, logger, deps),
	}
}

func newDispatcher(cfg *config.Config, logger zerolog.Logger, deps dependencies) *reminder.Dispatcher {
	d := reminder.NewDispatcher(deps.reminders, deps.sms, logger)
	d.Interval = cfg.ReminderInterval
	d.Grace = cfg.ReminderGrace
	d.Location = cfg.ReminderLocation()
	if deps.locker != nil {
		d.Locker = deps.locker
	}
	return d
}

// newBlobStore picks the records backend from STORAGE_PROVIDER.
func newBlobStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (blobstore.Store, error) {
	switch provider := cfg.ResolvedStorageProvider(); provider {
	case config.StorageCloudinary:
		return blobstore.NewCloudinaryStore(blobstore.CloudinaryConfig{
			CloudName: cfg.CloudinaryCloud,
			APIKey:    cfg.CloudinaryKey,
			APISecret: cfg.CloudinarySecret,
			Folder:    "medical-records",
		}, logger)
	case config.StorageFirebase:
		return blobstore.NewFirebaseStore(ctx, blobstore.FirebaseConfig{
			Bucket: cfg.FirebaseBucket,
			Folder: "medical-records",
		}, logger)
	case config.StorageMemory:
		logger.Warn().Msg("using in-memory blob storage; uploaded files are lost on restart")
		return blobstore.NewInMemoryBlobStore("http://localhost:" + cfg.Port), nil
	default:
		return nil, fmt.Errorf("unknown storage provider %q", provider)
	}
}

// newTwilioClient always returns a client. Without credentials it reports
// itself unavailable and reminders are skipped rather than failed.
func newTwilioClient(cfg *config.Config, logger zerolog.Logger) *notification.TwilioClient {
	if !cfg.TwilioConfigured() {
		logger.Warn().Msg("Twilio credentials missing; SMS reminders will not be sent")
	}
	return notification.NewTwilioClient(notification.TwilioConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
		BaseURL:    cfg.TwilioBaseURL,
	}, logger)
}

// newLocker returns a Redis-backed tick lock when REDIS_URL is set so that
// several replicas do not send the same reminder twice.
func newLocker(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.Noop{}, func() {}, nil
	}
	client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	host, _ := os.Hostname()
	owner := fmt.Sprintf("%s-%d", host, os.Getpid())
	logger.Info().Str("owner", owner).Msg("reminder tick lock uses redis")
	return lock.NewRedisLocker(client, "vault", owner), func() { client.Close() }, nil
}
