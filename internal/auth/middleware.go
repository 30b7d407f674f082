package auth

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/bizdir/bizdir/internal/web/handler"
)

// Authorizer turns a bearer token into an authorization context.
type Authorizer interface {
	Authorize(ctx context.Context, bearer string) (*Context, error)
}

// Middleware builds the fiber handlers guarding privileged routes. It holds no per-request
// state and is safe for concurrent use.
type Middleware struct {
	authorizer Authorizer
}

// NewMiddleware creates the access middleware.
func NewMiddleware(authorizer Authorizer) *Middleware {
	return &Middleware{authorizer: authorizer}
}

// RequireAuth rejects the request unless it carries a valid token of an active user.
func (m *Middleware) RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := m.authorize(c); err != nil {
			return m.reject(c, err)
		}

		return c.Next()
	}
}

// RequireCapability creates Fiber middleware that requires every given capability.
func (m *Middleware) RequireCapability(capabilities ...string) fiber.Handler {
	return m.requireCapabilities(capabilities, Capabilities.HasAll)
}

// RequireAnyCapability creates Fiber middleware that requires at least one of the given capabilities.
func (m *Middleware) RequireAnyCapability(capabilities ...string) fiber.Handler {
	return m.requireCapabilities(capabilities, Capabilities.HasAny)
}

func (m *Middleware) requireCapabilities(
	capabilities []string,
	check func(Capabilities, ...string) bool,
) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac, err := m.authorize(c)
		if err != nil {
			return m.reject(c, err)
		}

		if len(capabilities) > 0 && !check(ac.Capabilities, capabilities...) {
			log.Warn().Uint64("user_id", ac.UserID).Strs("capabilities", capabilities).
				Msg("user lacks required capabilities")

			return m.reject(c, newFailure(CodeInsufficientPermissions, nil))
		}

		return c.Next()
	}
}

// OptionalAuth attaches an authorization context when the request carries a usable
// token and otherwise continues anonymously. Internal faults are still rejected.
func (m *Middleware) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := m.authorize(c); err != nil {
			if f := AsFailure(err); f.Code == CodeInternalError {
				return m.reject(c, f)
			}

			countDecision(outcomeAnonymous)
		}

		return c.Next()
	}
}

// authorize reuses a context attached earlier in the chain, otherwise runs the full check.
func (m *Middleware) authorize(c *fiber.Ctx) (ac *Context, err error) {
	if existing, ok := FromFiber(c); ok {
		return existing, nil
	}

	defer func() {
		if r := recover(); r != nil {
			ac, err = nil, newFailure(CodeInternalError, fmt.Errorf("panic during authorization: %v", r))
		}
	}()

	bearer, _ := BearerToken(c.Get(fiber.HeaderAuthorization))

	ac, err = m.authorizer.Authorize(c.UserContext(), bearer)
	if err != nil {
		return nil, err
	}

	attach(c, ac)
	countDecision(outcomeAccepted)

	return ac, nil
}

func (m *Middleware) reject(c *fiber.Ctx, err error) error {
	f := AsFailure(err)
	countDecision(string(f.Code))

	if f.Code == CodeInternalError {
		log.Error().Err(f.Err).Str("path", c.Path()).Msg("authorization failed")
	} else {
		log.Debug().Str("code", string(f.Code)).Str("path", c.Path()).Msg("request rejected")
	}

	return handler.Fail(c, f.Status, string(f.Code), f.Message)
}
