// Package login provides the HTTP handlers of the authentication endpoints under /auth.
package login

import "errors"

// ErrNilDependency is returned by Init when a dependency is missing.
var ErrNilDependency = errors.New("login handler: service, middleware or store is nil")
