package config

import (
	"errors"
)

var (
	// ErrEmptyURL error if config webserver.URL is empty.
	ErrEmptyURL = errors.New("config webserver.url can not be empty")

	// ErrWebServerPortCanNotBeZero error if config webserver listening port is 0.
	ErrWebServerPortCanNotBeZero = errors.New("config webserver.port listening port can not be 0")

	// ErrUnknownDBEngine error if db.engine is not mysql, postgres or sqlite.
	ErrUnknownDBEngine = errors.New("config db.engine must be mysql, postgres or sqlite")

	// ErrJWTSecretMissing error if auth.jwtSecret is empty outside dev mode.
	ErrJWTSecretMissing = errors.New("config auth.jwtSecret can not be empty")

	// ErrNegativeTokenTTL error if auth.tokenTTL is negative.
	ErrNegativeTokenTTL = errors.New("config auth.tokenTTL can not be negative")
)
