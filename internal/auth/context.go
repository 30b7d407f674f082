package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/bizdir/bizdir/internal/db/models"
)

// Context is the authorization context of one request. It is built by the access
// middleware and discarded with the request.
type Context struct {
	UserID       uint64
	Username     string
	Role         models.Role
	Capabilities Capabilities
	Active       bool
}

// Can reports whether the caller holds capability.
func (c *Context) Can(capability string) bool {
	return c != nil && c.Capabilities.Has(capability)
}

type contextKey struct{}

// localsKey is the fiber.Locals key the middleware stores the context under.
const localsKey = "authz"

// WithContext returns a copy of ctx carrying ac.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext returns the authorization context attached to ctx.
func FromContext(ctx context.Context) (*Context, bool) {
	ac, ok := ctx.Value(contextKey{}).(*Context)
	return ac, ok && ac != nil
}

// FromFiber returns the authorization context attached to the current request.
func FromFiber(c *fiber.Ctx) (*Context, bool) {
	ac, ok := c.Locals(localsKey).(*Context)
	return ac, ok && ac != nil
}

func attach(c *fiber.Ctx, ac *Context) {
	c.Locals(localsKey, ac)
	c.SetUserContext(WithContext(c.UserContext(), ac))
}
