package main

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/config"
	"github.com/clinica/clinica/internal/domain/cartera"
	"github.com/clinica/clinica/internal/domain/consulta"
	"github.com/clinica/clinica/internal/domain/dashboard"
	"github.com/clinica/clinica/internal/domain/documento"
	"github.com/clinica/clinica/internal/domain/profile"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/blobstore"
	"github.com/clinica/clinica/internal/platform/db"
	"github.com/clinica/clinica/internal/platform/identity"
	"github.com/clinica/clinica/internal/platform/middleware"
	"github.com/clinica/clinica/internal/platform/notification"
	"github.com/clinica/clinica/internal/platform/telemetry"
	"github.com/clinica/clinica/web"
)

const (
	defaultBodyLimit = "64K"
	uploadBodyLimit  = "26M"
)

// newServer wires every component onto a fresh echo instance. The elevated
// profile handle over the service pool is built here and nowhere else.
func newServer(cfg *config.Config, logger zerolog.Logger, pools *db.Pools, blobs blobstore.Store) (*echo.Echo, error) {
	metrics := telemetry.New()
	if pools.App != nil {
		metrics.RegisterPool("app", pools.App)
	}
	if pools.Service != nil {
		metrics.RegisterPool("service", pools.Service)
	}

	// Identity service
	mailer := notification.NewVerificationMailer(notification.NewLogEmailSender(logger), cfg.SiteURL)
	idSvc, err := identity.NewService(
		identity.NewPGStore(pools.Service),
		identity.NewTokenIssuer([]byte(cfg.SessionSecret), cfg.AccessTokenTTL),
		mailer,
		identity.ServiceConfig{RefreshTTL: cfg.RefreshTokenTTL, CodeTTL: cfg.VerificationCodeTTL},
		logger.With().Str("component", "identity").Logger(),
	)
	if err != nil {
		return nil, fmt.Errorf("identity service: %w", err)
	}

	// Auth
	elevated := profile.NewElevated(pools.Service)
	verifier := auth.NewVerifier(elevated)
	resolver := auth.NewResolver(idSvc, auth.CookieConfig{Secure: cfg.CookieSecure}, logger)
	login := auth.NewLogin(idSvc, verifier, metrics, logger)
	callback := auth.NewCallbackHandler(auth.CallbackConfig{
		Provider:    idSvc,
		Resolver:    resolver,
		Activator:   elevated,
		Development: cfg.IsDev(),
		Recorder:    metrics,
		Logger:      logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(telemetry.Tracing())
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{echo.HeaderContentType, middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(defaultBodyLimit, uploadBodyLimit))
	e.Use(auth.Guard(auth.GuardConfig{
		Resolver: resolver,
		Verifier: verifier,
		Recorder: metrics,
		Logger:   logger,
	}))
	e.Use(db.ScopeMiddleware(auth.CallerFromContext))

	// Infrastructure
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(map[string]db.Pinger{
		"app":     pools.App,
		"service": pools.Service,
	}))
	e.GET("/metrics", metrics.Handler())
	e.StaticFS("/static", echo.MustSubFS(web.Static, "static"))

	// Auth pages and callback
	throttle := middleware.RateLimit(middleware.LoginRateLimitConfig())
	authHandler := auth.NewHandler(idSvc, resolver, login, logger)
	authHandler.RegisterRoutes(e, throttle)
	e.GET(auth.CallbackPath, callback.Handle)

	// Dashboard and admin
	timeout := middleware.RequestTimeout(cfg.WriteTimeout)
	dash := e.Group(auth.DashboardPrefix, timeout)
	admin := e.Group(auth.AdminPrefix, timeout)

	dashboard.NewHandler(dashboard.NewCounter(pools.App)).RegisterRoutes(dash)
	profile.NewHandler(profile.NewService(profile.NewRepo(pools.App))).RegisterRoutes(dash, admin)
	cartera.NewHandler(cartera.NewService(
		cartera.NewCarteraRepo(pools.App),
		cartera.NewPacienteRepo(pools.App),
	)).RegisterRoutes(dash)
	consulta.NewHandler(consulta.NewService(consulta.NewRepo(pools.App))).RegisterRoutes(dash)
	documento.NewHandler(documento.NewService(
		documento.NewRepo(pools.App),
		blobs,
		logger.With().Str("component", "documento").Logger(),
	)).RegisterRoutes(dash)

	return e, nil
}
