// Package config reads the configuration from etc/main.toml and the environment.
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/bizdir/bizdir/internal/uniuri"
)

const (
	// EnvPrefix prefixes every environment override, e.g. BIZDIR_AUTH_JWTSECRET.
	EnvPrefix = "BIZDIR"

	// EnvConfigJSON holds a JSON document merged over the whole config.
	EnvConfigJSON = EnvPrefix + "_CONFIG_JSON"

	// DefaultTokenTTL is used when auth.tokenTTL is not set.
	DefaultTokenTTL = 12 * time.Hour

	defaultShutDownTime = 5
	defaultBodyLimit    = 1 << 20

	defaultClientTimeout = 10 * time.Second
)

func defaults(v *viper.Viper) {
	v.SetDefault("title", "bizdir")
	v.SetDefault("devMode", false)

	v.SetDefault("db.engine", EngineSQLite)
	v.SetDefault("db.host", "")
	v.SetDefault("db.port", 0)
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "")
	v.SetDefault("db.extras", "")
	v.SetDefault("db.path", "bizdir.db")

	v.SetDefault("log.logLevel", "info")
	v.SetDefault("log.appName", "bizdir")
	v.SetDefault("log.serviceName", "api")
	v.SetDefault("log.console.enabled", true)

	v.SetDefault("webserver.port", 8080) //nolint:mnd
	v.SetDefault("webserver.url", "http://localhost:8080")
	v.SetDefault("webserver.shutDownTime", defaultShutDownTime)
	v.SetDefault("webserver.bodyLimit", defaultBodyLimit)

	v.SetDefault("auth.jwtSecret", "")
	v.SetDefault("auth.tokenTTL", DefaultTokenTTL)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.seedAdmin.username", "admin")
	v.SetDefault("auth.seedAdmin.password", "")

	v.SetDefault("client.serverURL", "http://localhost:8080")
	v.SetDefault("client.sessionFile", defaultSessionFile())
	v.SetDefault("client.timeout", defaultClientTimeout)
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "bizdir-session.db"
	}

	return filepath.Join(dir, "bizdir", "session.db")
}

// ReadConfig reads main.toml from the directory path, applies BIZDIR_* environment
// overrides (an optional .env file next to main.toml included), the BIZDIR_CONFIG_JSON
// document and finally overrides, then validates the result. A missing main.toml is not
// an error; defaults and the environment still apply.
func ReadConfig(path string, overrides ...func(*Config)) (Config, error) {
	c, err := Load(path)
	if err != nil {
		return c, err
	}

	for _, override := range overrides {
		override(&c)
	}

	return c, validate(&c)
}

// ReadClientConfig reads the client section the same way ReadConfig does. Server side
// settings such as the jwt secret are not required.
func ReadClientConfig(path string) (Client, error) {
	c, err := Load(path)
	if err != nil {
		return Client{}, err
	}

	if c.Client.ServerURL == "" {
		return Client{}, errors.Wrap(ErrEmptyURL, "invalid client config")
	}

	if c.Client.Timeout <= 0 {
		c.Client.Timeout = defaultClientTimeout
	}

	return c.Client, nil
}

// Load reads the configuration like ReadConfig without validating it. Tools that need
// only one section use it.
func Load(path string) (Config, error) {
	var c Config

	if path == "" {
		path = "./etc/"
	}

	// variables already set in the environment win over the .env file
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, errors.Wrap(err, "failed to read .env file")
	}

	v := viper.New()
	defaults(v)

	v.SetConfigFile(filepath.Join(path, "main.toml"))
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Wrap(err, "failed to read main config file")
		}

		log.Warn().Str("path", path).Msg("main.toml not found, using defaults and environment")
	}

	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode config")
	}

	// override it from env
	if configJSON := os.Getenv(EnvConfigJSON); configJSON != "" {
		var err error
		if c, err = decodeAndMergeConfig(c, configJSON); err != nil {
			return c, err
		}
	}

	return c, nil
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	if err := json.Unmarshal([]byte(configAsJSON), &c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode "+EnvConfigJSON)
	}

	return c, nil
}

// DumpConfigJSON config as JSON String. Secrets are masked.
func DumpConfigJSON(c *Config) (string, error) {
	var buffer bytes.Buffer

	masked := *c
	mask(&masked.Auth.JWTSecret)
	mask(&masked.Auth.SeedAdmin.Password)
	mask(&masked.DB.Password)

	j := json.NewEncoder(&buffer)
	j.SetIndent("", "  ")

	if err := j.Encode(masked); err != nil {
		return "", err //nolint:wrapcheck
	}

	return buffer.String(), nil
}

func mask(s *string) {
	if *s != "" {
		*s = "***"
	}
}

// validate checks the settings the service cannot start without and fills defaults.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = defaultShutDownTime
	}

	if c.Webserver.BodyLimit <= 0 {
		c.Webserver.BodyLimit = defaultBodyLimit
	}

	switch c.DB.Engine {
	case EngineMySQL, EnginePostgres, EngineSQLite:
	default:
		return errors.Wrapf(ErrUnknownDBEngine, "%s: %q", invalidErrMessage, c.DB.Engine)
	}

	if c.Auth.TokenTTL < 0 {
		return errors.Wrap(ErrNegativeTokenTTL, invalidErrMessage)
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}

	if c.Auth.JWTSecret == "" {
		if !c.DevMode {
			return errors.Wrap(ErrJWTSecretMissing, invalidErrMessage)
		}

		secret, err := uniuri.NewLen(uniuri.SecretLen)
		if err != nil {
			return errors.Wrap(err, "failed to generate jwt secret")
		}

		c.Auth.JWTSecret = secret

		log.Warn().Msg("dev mode: using an ephemeral jwt secret, tokens will not survive a restart")
	}

	return nil
}
