// Package web wires the fiber application: access logging, the health and metrics
// endpoints and the API handlers.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/auth"
	"github.com/bizdir/bizdir/internal/config"
	accesslog "github.com/bizdir/bizdir/internal/logger/adapter/fiber"
	"github.com/bizdir/bizdir/internal/token"
	"github.com/bizdir/bizdir/internal/web/handler"
	"github.com/bizdir/bizdir/internal/web/handler/admin/user"
	"github.com/bizdir/bizdir/internal/web/handler/business"
	"github.com/bizdir/bizdir/internal/web/handler/login"
)

const (
	// CheckAlivePath answers 200 while serving and 503 during a graceful shutdown.
	CheckAlivePath = "/checkalive"

	// MetricsPath exposes the prometheus metrics.
	MetricsPath = "/metrics"
)

// ErrNilDependency is returned by New when config or db is nil.
var ErrNilDependency = errors.New("web: config and db are required")

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	store        *auth.Store
	authService  *auth.Service
}

// Start starts the web service on the given address and blocks until it stops.
func (s *Service) Start(addr string) error {
	s.alive.Store(true)

	if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err //nolint:wrapcheck
	}

	return nil
}

// WaitShutdown waits for SIGINT or SIGTERM and shuts the server down gracefully.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	s.Shutdown()
}

// Shutdown lets load balancers drain the instance, then stops fiber.
func (s *Service) Shutdown() {
	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	s.alive.Store(false)

	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	log.Info().Msg("stopping http server ...")

	if err := s.App.Shutdown(); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}

	log.Info().Msg("http server was stopped ... good bye...")
}

// AuthService returns the authentication service the handlers use.
func (s *Service) AuthService() *auth.Service {
	return s.authService
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, db *gorm.DB) (*Service, error) {
	if cfg == nil || db == nil {
		return nil, ErrNilDependency
	}

	tokens, err := token.New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, token.WithIssuer(cfg.Auth.Issuer))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	store := auth.NewStore(db)
	authService := auth.NewService(store, tokens)
	mw := auth.NewMiddleware(authService)

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192, //nolint:mnd
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
			BodyLimit:      cfg.Webserver.BodyLimit,
			ErrorHandler:   handler.ErrorHandler,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	app.Use(accesslog.New(accesslog.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
		UserID: func(c *fiber.Ctx) (uint64, bool) {
			ac, ok := auth.FromFiber(c)
			if !ok {
				return 0, false
			}

			return ac.UserID, true
		},
	}))

	service := &Service{
		cfg:          cfg,
		App:          app,
		fastShutDown: cfg.Webserver.FastShutDown || cfg.DevMode,
		store:        store,
		authService:  authService,
	}

	app.Get(CheckAlivePath, service.checkAlive)
	app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

	handlers := []handler.Service{
		login.New(authService, mw, store),
		user.New(store, mw),
		business.New(db, mw),
	}

	for _, h := range handlers {
		if err := h.Init(app); err != nil {
			return nil, err //nolint:wrapcheck
		}
	}

	return service, nil
}

func (s *Service) checkAlive(c *fiber.Ctx) error {
	if !s.alive.Load() {
		return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
	}

	return c.SendString("OK")
}
