package config

import (
	"time"

	"github.com/bizdir/bizdir/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool       `mapstructure:"devMode"` // enable dev mode for development
	Title     string     `mapstructure:"title"`
	DB        DB         `mapstructure:"db"`
	Log       logger.Log `mapstructure:"log"`
	Webserver Webserver  `mapstructure:"webserver"`
	Auth      Auth       `mapstructure:"auth"`
	Client    Client     `mapstructure:"client"`
}

// Webserver implement webserver settings.
type Webserver struct {
	Port           int    `mapstructure:"port"`           // listening port for the webserver
	URL            string `mapstructure:"url"`            // base url for the webserver
	ShutDownTime   int    `mapstructure:"shutDownTime"`   // seconds checkalive reports 503 before shutdown
	FastShutDown   bool   `mapstructure:"fastShutDown"`   // skip the checkalive grace period
	BodyLimit      int    `mapstructure:"bodyLimit"`      // max request body in bytes
	DisableRecover bool   `mapstructure:"disableRecover"` // disable recover middleware
}

// Auth holds the token and account settings.
type Auth struct {
	// JWTSecret signs the access tokens. Required unless DevMode is set.
	JWTSecret string `mapstructure:"jwtSecret"`
	// TokenTTL is the lifetime of an issued token.
	TokenTTL time.Duration `mapstructure:"tokenTTL"`
	// Issuer is written to and checked against the iss claim when set.
	Issuer string `mapstructure:"issuer"`
	// SeedAdmin is created on the first start when no user exists.
	SeedAdmin SeedAdmin `mapstructure:"seedAdmin"`
}

// SeedAdmin describes the initial administrator account.
type SeedAdmin struct {
	Username string `mapstructure:"username"`
	// Password is generated and logged once when empty.
	Password string `mapstructure:"password"`
}

// Client holds the settings of the command line client.
type Client struct {
	// ServerURL is the base URL of the directory API.
	ServerURL string `mapstructure:"serverURL"`
	// SessionFile is the sqlite file keeping the persisted session.
	SessionFile string `mapstructure:"sessionFile"`
	// Timeout bounds every request to the server.
	Timeout time.Duration `mapstructure:"timeout"`
}
