// Package user provides the user administration API under /api/admin/users.
package user

import (
	"context"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/bizdir/bizdir/internal/auth"
	"github.com/bizdir/bizdir/internal/db/models"
	"github.com/bizdir/bizdir/internal/web/handler"
)

const (
	// Path is the route group of the user administration API.
	Path = handler.APIPath + "/admin/users"
)

// ErrNilDependency is returned by Init when a dependency is missing.
var ErrNilDependency = errors.New("user admin handler: store or middleware is nil")

// Users is the part of the credential store the administration API needs.
type Users interface {
	ListUsers(ctx context.Context, active *bool, limit, offset int) ([]models.User, int64, error)
	GetUserByID(ctx context.Context, userID uint64) (*models.User, error)
	CreateUser(ctx context.Context, in auth.NewUser) (*models.User, error)
	SetPermissions(ctx context.Context, userID uint64, grants []string) error
	SetRole(ctx context.Context, userID uint64, role models.Role) error
	SetActive(ctx context.Context, userID uint64, active bool) error
	ResetPassword(ctx context.Context, userID uint64, newPassword string) error
}

// Service is the user administration handler.
type Service struct {
	handler.Service
	users      Users
	middleware *auth.Middleware
	validator  *handler.Validator
}

// New creates the user administration handler.
func New(users Users, mw *auth.Middleware) *Service {
	return &Service{
		users:      users,
		middleware: mw,
		validator:  handler.NewValidator(),
	}
}

// Init registers the routes. Every route requires the users.manage capability.
func (s *Service) Init(app fiber.Router) error {
	if app == nil || s.users == nil || s.middleware == nil {
		return ErrNilDependency
	}

	router := app.Group(Path, s.middleware.RequireCapability(auth.CapUsersManage))
	router.Get(handler.RootPath, s.List)
	router.Post(handler.RootPath, s.Create)
	router.Get("/:id", s.Get)
	router.Put("/:id/permissions", s.SetPermissions)
	router.Put("/:id/role", s.SetRole)
	router.Put("/:id/active", s.SetActive)
	router.Post("/:id/password", s.ResetPassword)

	return nil
}

// CreateRequest is the body of a user creation.
type CreateRequest struct {
	Username    string   `json:"username"    validate:"required,min=3,max=100"`
	Password    string   `json:"password"    validate:"required,min=8,max=128"`
	Role        string   `json:"role"        validate:"omitempty,oneof=admin user"`
	Permissions []string `json:"permissions" validate:"max=64,dive,capability"`
	Active      *bool    `json:"isActive"`
}

// PermissionsRequest replaces the explicit grants of a user.
type PermissionsRequest struct {
	Permissions []string `json:"permissions" validate:"max=64,dive,capability"`
}

// RoleRequest changes the role of a user.
type RoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin user"`
}

// ActiveRequest activates or deactivates a user.
type ActiveRequest struct {
	Active *bool `json:"isActive" validate:"required"`
}

// PasswordRequest resets the password of a user.
type PasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// List returns a page of users. ?active=true|false filters by activity.
func (s *Service) List(c *fiber.Ctx) error {
	limit, offset := handler.Paging(c)

	var active *bool

	if raw := c.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return handler.Fail(c, fiber.StatusBadRequest, handler.CodeInvalidRequest, "active must be true or false")
		}

		active = &v
	}

	users, total, err := s.users.ListUsers(c.UserContext(), active, limit, offset)
	if err != nil {
		return s.internal(c, err, "failed to list users")
	}

	views := make([]auth.UserView, 0, len(users))
	for i := range users {
		views = append(views, auth.NewUserView(&users[i]))
	}

	return handler.OK(c, handler.Page{Items: views, Total: total, Limit: limit, Offset: offset})
}

// Get returns one user.
func (s *Service) Get(c *fiber.Ctx) error {
	id, ok, err := userID(c)
	if !ok {
		return err
	}

	return s.respondUser(c, id)
}

// Create creates an account.
func (s *Service) Create(c *fiber.Ctx) error {
	var in CreateRequest
	if parsed, err := s.parse(c, &in); !parsed {
		return err
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	u, err := s.users.CreateUser(c.UserContext(), auth.NewUser{
		Username:    in.Username,
		Password:    in.Password,
		Role:        models.Role(in.Role),
		Permissions: in.Permissions,
		Active:      active,
	})

	switch {
	case errors.Is(err, auth.ErrUserNameExists):
		return handler.Fail(c, fiber.StatusConflict, handler.CodeConflict, "Username already exists")
	case errors.Is(err, auth.ErrMissingCredentials), errors.Is(err, auth.ErrInvalidRole):
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeValidation, err.Error())
	case err != nil:
		return s.internal(c, err, "failed to create user")
	}

	s.audit(c, u.ID, "user created")

	return handler.Created(c, auth.NewUserView(u))
}

// SetPermissions replaces the explicit grants. The change applies from the next request on.
func (s *Service) SetPermissions(c *fiber.Ctx) error {
	id, ok, err := userID(c)
	if !ok {
		return err
	}

	var in PermissionsRequest
	if parsed, err := s.parse(c, &in); !parsed {
		return err
	}

	if err := s.users.SetPermissions(c.UserContext(), id, in.Permissions); err != nil {
		return s.updateFailed(c, err)
	}

	s.audit(c, id, "user permissions changed")

	return s.respondUser(c, id)
}

// SetRole changes the role.
func (s *Service) SetRole(c *fiber.Ctx) error {
	id, ok, err := userID(c)
	if !ok {
		return err
	}

	var in RoleRequest
	if parsed, err := s.parse(c, &in); !parsed {
		return err
	}

	if s.isCaller(c, id) && models.Role(in.Role) != models.RoleAdmin {
		return handler.Fail(c, fiber.StatusConflict, handler.CodeConflict, "You cannot demote your own account")
	}

	if err := s.users.SetRole(c.UserContext(), id, models.Role(in.Role)); err != nil {
		return s.updateFailed(c, err)
	}

	s.audit(c, id, "user role changed")

	return s.respondUser(c, id)
}

// SetActive activates or deactivates an account. Callers cannot deactivate themselves.
func (s *Service) SetActive(c *fiber.Ctx) error {
	id, ok, err := userID(c)
	if !ok {
		return err
	}

	var in ActiveRequest
	if parsed, err := s.parse(c, &in); !parsed {
		return err
	}

	if s.isCaller(c, id) && !*in.Active {
		return handler.Fail(c, fiber.StatusConflict, handler.CodeConflict, "You cannot deactivate your own account")
	}

	if err := s.users.SetActive(c.UserContext(), id, *in.Active); err != nil {
		return s.updateFailed(c, err)
	}

	s.audit(c, id, "user activity changed")

	return s.respondUser(c, id)
}

// ResetPassword sets a new password without knowing the old one.
func (s *Service) ResetPassword(c *fiber.Ctx) error {
	id, ok, err := userID(c)
	if !ok {
		return err
	}

	var in PasswordRequest
	if parsed, err := s.parse(c, &in); !parsed {
		return err
	}

	if err := s.users.ResetPassword(c.UserContext(), id, in.Password); err != nil {
		return s.updateFailed(c, err)
	}

	s.audit(c, id, "user password reset")

	return c.Status(fiber.StatusOK).JSON(handler.Response{Success: true, Message: "Password reset"})
}

// parse decodes and validates the body. When it reports false the error response is
// already written and err is the result of writing it.
func (s *Service) parse(c *fiber.Ctx, out any) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, handler.Fail(c, fiber.StatusBadRequest, handler.CodeInvalidRequest, "Invalid request body")
	}

	if errs := s.validator.Validate(out); errs != nil {
		return false, handler.Fail(c, fiber.StatusBadRequest, handler.CodeValidation, handler.Message(errs))
	}

	return true, nil
}

func (s *Service) respondUser(c *fiber.Ctx, id uint64) error {
	u, err := s.users.GetUserByID(c.UserContext(), id)
	if errors.Is(err, auth.ErrUserNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, handler.CodeNotFound, "User not found")
	}

	if err != nil {
		return s.internal(c, err, "failed to load user")
	}

	return handler.OK(c, auth.NewUserView(u))
}

func (s *Service) updateFailed(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrUserNotFound):
		return handler.Fail(c, fiber.StatusNotFound, handler.CodeNotFound, "User not found")
	case errors.Is(err, auth.ErrInvalidRole), errors.Is(err, auth.ErrMissingCredentials):
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeValidation, err.Error())
	default:
		return s.internal(c, err, "failed to update user")
	}
}

func (s *Service) internal(c *fiber.Ctx, err error, msg string) error {
	log.Error().Err(err).Str("path", c.Path()).Msg(msg)

	return handler.Fail(c, fiber.StatusInternalServerError, handler.CodeInternalError, "Internal server error")
}

func (s *Service) isCaller(c *fiber.Ctx, id uint64) bool {
	ac, ok := auth.FromFiber(c)
	return ok && ac.UserID == id
}

func (s *Service) audit(c *fiber.Ctx, target uint64, msg string) {
	event := log.Info().Uint64("target_user_id", target)

	if ac, ok := auth.FromFiber(c); ok {
		event = event.Uint64("user_id", ac.UserID)
	}

	event.Msg(msg)
}

// userID reads the id route parameter. When ok is false the failure response is already written.
// Keys are signed 64-bit in every supported database, so larger ids are well-formed but cannot exist.
func userID(c *fiber.Ctx) (uint64, bool, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 63) //nolint:mnd
	switch {
	case errors.Is(err, strconv.ErrRange):
		return 0, false, handler.Fail(c, fiber.StatusNotFound, handler.CodeNotFound, "User not found")
	case err != nil || id == 0:
		return 0, false, handler.Fail(c, fiber.StatusBadRequest, handler.CodeInvalidRequest, "Invalid user id")
	}

	return id, true, nil
}
