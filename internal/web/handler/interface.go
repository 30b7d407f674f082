// Package handler holds what the HTTP handlers share: the route registration contract,
// the uniform response envelope and request validation.
package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Service is the interface for a web handler service.
type Service interface {
	Init(app fiber.Router) error
}
