package login

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/bizdir/bizdir/internal/auth"
	"github.com/bizdir/bizdir/internal/web/handler"
)

const (
	// Path is the route group of the authentication endpoints.
	Path = "/auth"
)

// PasswordChanger changes the password of the calling user.
type PasswordChanger interface {
	ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error
}

// Service is the login handler service.
type Service struct {
	handler.Service
	auth       *auth.Service
	middleware *auth.Middleware
	passwords  PasswordChanger
	validator  *handler.Validator
}

// New creates the login handler.
func New(authService *auth.Service, mw *auth.Middleware, passwords PasswordChanger) *Service {
	return &Service{
		auth:       authService,
		middleware: mw,
		passwords:  passwords,
		validator:  handler.NewValidator(),
	}
}

// Init registers the routes.
func (s *Service) Init(app fiber.Router) error {
	if app == nil || s.auth == nil || s.middleware == nil || s.passwords == nil {
		return ErrNilDependency
	}

	router := app.Group(Path)
	router.Post("/login", s.Login)
	router.Get("/verify", s.middleware.RequireAuth(), s.Verify)
	router.Get("/me", s.middleware.RequireAuth(), s.Me)
	router.Post("/logout", s.middleware.OptionalAuth(), s.Logout)
	router.Post("/password", s.middleware.RequireAuth(), s.ChangePassword)

	return nil
}

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Result is the login response payload.
type Result struct {
	Token string        `json:"token"`
	User  auth.UserView `json:"user"`
}

// Login checks the credentials and issues a token.
func (s *Service) Login(c *fiber.Ctx) error {
	var in Credentials
	if err := c.BodyParser(&in); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeInvalidRequest, "Invalid request body")
	}

	res, err := s.auth.Login(c.UserContext(), in.Username, in.Password)

	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return handler.Fail(c, fiber.StatusUnauthorized, handler.CodeInvalidCredentials,
			"Username and password are required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return handler.Fail(c, fiber.StatusUnauthorized, handler.CodeInvalidCredentials,
			"Invalid username or password")
	case errors.Is(err, auth.ErrUserAccountDisabled):
		return handler.Fail(c, fiber.StatusUnauthorized, string(auth.CodeUserInactive),
			"User account is inactive")
	case err != nil:
		log.Error().Err(err).Msg("login failed")

		return handler.Fail(c, fiber.StatusInternalServerError, handler.CodeInternalError, "Internal server error")
	}

	log.Info().Uint64("user_id", res.User.ID).Str("username", res.User.Username).Msg("user logged in")

	return handler.OK(c, Result{Token: res.Token, User: auth.NewUserView(res.User)})
}

// Verify answers whether the presented token is still good; the middleware did the work.
func (s *Service) Verify(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(handler.Response{Success: true})
}

// Me returns the calling user with resolved capabilities.
func (s *Service) Me(c *fiber.Ctx) error {
	ac, ok := auth.FromFiber(c)
	if !ok {
		return handler.Fail(c, fiber.StatusUnauthorized, string(auth.CodeNoToken), "Access token is required")
	}

	return handler.OK(c, fiber.Map{
		"id":           ac.UserID,
		"username":     ac.Username,
		"role":         ac.Role,
		"isActive":     ac.Active,
		"capabilities": ac.Capabilities,
	})
}

// Logout acknowledges a logout. Tokens are stateless, so the client discards its copy.
func (s *Service) Logout(c *fiber.Ctx) error {
	if ac, ok := auth.FromFiber(c); ok {
		log.Info().Uint64("user_id", ac.UserID).Msg("user logged out")
	}

	return c.Status(fiber.StatusOK).JSON(handler.Response{Success: true, Message: "Logged out"})
}

// PasswordChange is the body of a password change.
type PasswordChange struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=128"`
}

// ChangePassword changes the caller's password.
func (s *Service) ChangePassword(c *fiber.Ctx) error {
	ac, ok := auth.FromFiber(c)
	if !ok {
		return handler.Fail(c, fiber.StatusUnauthorized, string(auth.CodeNoToken), "Access token is required")
	}

	var in PasswordChange
	if err := c.BodyParser(&in); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeInvalidRequest, "Invalid request body")
	}

	if errs := s.validator.Validate(in); errs != nil {
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeValidation, handler.Message(errs))
	}

	err := s.passwords.ChangePassword(c.UserContext(), ac.UserID, in.OldPassword, in.NewPassword)

	switch {
	case errors.Is(err, auth.ErrInvalidOldPassword):
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeValidation, "Old password is incorrect")
	case err != nil:
		log.Error().Err(err).Uint64("user_id", ac.UserID).Msg("password change failed")

		return handler.Fail(c, fiber.StatusInternalServerError, handler.CodeInternalError, "Internal server error")
	}

	return c.Status(fiber.StatusOK).JSON(handler.Response{Success: true, Message: "Password changed"})
}
