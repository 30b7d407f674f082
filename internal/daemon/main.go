// Package daemon assembles the directory service: database, migrations, the initial
// administrator and the web service.
package daemon

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/config"
	"github.com/bizdir/bizdir/internal/db/dsn"
	"github.com/bizdir/bizdir/internal/db/models"
	"github.com/bizdir/bizdir/internal/web"
)

// ErrConfigNil is returned by New without a config.
var ErrConfigNil = errors.New("config is nil")

// Daemon represents the main application daemon.
type Daemon struct {
	cfg        *config.Config
	db         *gorm.DB
	webService *web.Service
}

// Start starts the Daemon's web service and blocks until it is shut down.
func (d *Daemon) Start() error {
	go d.webService.WaitShutdown()

	addr := fmt.Sprintf(":%d", d.cfg.Webserver.Port)
	log.Info().Str("addr", addr).Msg("starting http server")

	return d.webService.Start(addr)
}

// Web returns the web service.
func (d *Daemon) Web() *web.Service {
	return d.webService
}

// New opens the database, migrates it, seeds the first administrator and
// creates the web service.
func New(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	db, err := dsn.Open(cfg.DB, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	return NewWithDB(cfg, db)
}

// NewWithDB is New on an already opened database.
func NewWithDB(cfg *config.Config, db *gorm.DB) (*Daemon, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	if err := models.Migrate(db); err != nil {
		return nil, err
	}

	if err := seed(cfg, db); err != nil {
		return nil, err
	}

	webService, err := web.New(cfg, db)
	if err != nil {
		return nil, fmt.Errorf("failed to create web service: %w", err)
	}

	return &Daemon{
		cfg:        cfg,
		db:         db,
		webService: webService,
	}, nil
}
