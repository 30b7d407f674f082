// Package business provides the directory record API under /api/businesses.
package business

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/auth"
	controller "github.com/bizdir/bizdir/internal/db/controller/business"
	"github.com/bizdir/bizdir/internal/db/models"
	"github.com/bizdir/bizdir/internal/web/handler"
)

const (
	// Path is the route group of the business API.
	Path = handler.APIPath + "/businesses"
)

// ErrNilDependency is returned by Init when a dependency is missing.
var ErrNilDependency = errors.New("business handler: db or middleware is nil")

// Service is the business record handler.
type Service struct {
	handler.Service
	db         *gorm.DB
	middleware *auth.Middleware
	validator  *handler.Validator
}

// New creates the business handler.
func New(db *gorm.DB, mw *auth.Middleware) *Service {
	return &Service{
		db:         db,
		middleware: mw,
		validator:  handler.NewValidator(),
	}
}

// Init registers the routes. Reading is open to anonymous callers, who only see
// published records.
func (s *Service) Init(app fiber.Router) error {
	if app == nil || s.db == nil || s.middleware == nil {
		return ErrNilDependency
	}

	router := app.Group(Path)
	router.Get(handler.RootPath, s.middleware.OptionalAuth(), s.List)
	router.Get("/:id", s.middleware.OptionalAuth(), s.Get)
	router.Post(handler.RootPath, s.middleware.RequireCapability(auth.CapBusinessCreate), s.Create)
	router.Put("/:id/published", s.middleware.RequireCapability(auth.CapBusinessUpdate), s.SetPublished)
	router.Delete("/:id", s.middleware.RequireCapability(auth.CapBusinessDelete), s.Delete)

	return nil
}

// View is the client facing shape of a business.
type View struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
}

func newView(b *models.Business) View {
	return View{
		ID:        b.ID,
		Name:      b.Name,
		Category:  b.Category,
		Address:   b.Address,
		Phone:     b.Phone,
		Email:     b.Email,
		Latitude:  b.Latitude,
		Longitude: b.Longitude,
		Published: b.Published,
		CreatedAt: b.CreatedAt,
	}
}

// CreateRequest is the body of a business creation.
type CreateRequest struct {
	Name      string  `json:"name"      validate:"required,max=200"`
	Category  string  `json:"category"  validate:"max=100"`
	Address   string  `json:"address"   validate:"max=255"`
	Phone     string  `json:"phone"     validate:"max=50"`
	Email     string  `json:"email"     validate:"omitempty,email,max=255"`
	Latitude  float64 `json:"latitude"  validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Published bool    `json:"published"`
}

// PublishedRequest changes the visibility of a business.
type PublishedRequest struct {
	Published *bool `json:"published" validate:"required"`
}

// canSeeUnpublished reports whether the caller may see records that are not published.
func canSeeUnpublished(c *fiber.Ctx) bool {
	ac, ok := auth.FromFiber(c)
	return ok && ac.Can(auth.CapBusinessRead)
}

// List returns a page of businesses. ?category and ?q narrow the listing.
func (s *Service) List(c *fiber.Ctx) error {
	limit, offset := handler.Paging(c)

	items, total, err := controller.List(s.db.WithContext(c.UserContext()), controller.Filter{
		Category:           c.Query("category"),
		Query:              c.Query("q"),
		IncludeUnpublished: canSeeUnpublished(c),
		Limit:              limit,
		Offset:             offset,
	})
	if err != nil {
		return s.internal(c, err, "failed to list businesses")
	}

	views := make([]View, 0, len(items))
	for i := range items {
		views = append(views, newView(&items[i]))
	}

	return handler.OK(c, handler.Page{Items: views, Total: total, Limit: limit, Offset: offset})
}

// Get returns one business. Unpublished records look missing to callers without business.read.
func (s *Service) Get(c *fiber.Ctx) error {
	id, ok, err := businessID(c)
	if !ok {
		return err
	}

	b, err := controller.Get(s.db.WithContext(c.UserContext()), id)
	if errors.Is(err, controller.ErrBusinessNotFound) || (err == nil && !b.Published && !canSeeUnpublished(c)) {
		return handler.Fail(c, fiber.StatusNotFound, handler.CodeNotFound, "Business not found")
	}

	if err != nil {
		return s.internal(c, err, "failed to load business")
	}

	return handler.OK(c, newView(b))
}

// Create stores a new business owned by the caller.
func (s *Service) Create(c *fiber.Ctx) error {
	ac, ok := auth.FromFiber(c)
	if !ok {
		return handler.Fail(c, fiber.StatusUnauthorized, string(auth.CodeNoToken), "Access token is required")
	}

	var in CreateRequest
	if err := c.BodyParser(&in); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeInvalidRequest, "Invalid request body")
	}

	if errs := s.validator.Validate(in); errs != nil {
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeValidation, handler.Message(errs))
	}

	b := models.Business{
		Name:      in.Name,
		Category:  in.Category,
		Address:   in.Address,
		Phone:     in.Phone,
		Email:     in.Email,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Published: in.Published,
		CreatedBy: ac.UserID,
	}

	err := controller.Create(s.db.WithContext(c.UserContext()), &b)
	if errors.Is(err, controller.ErrBusinessNameEmpty) {
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeValidation, "Name is required")
	}

	if err != nil {
		return s.internal(c, err, "failed to create business")
	}

	log.Info().Uint64("user_id", ac.UserID).Uint64("business_id", b.ID).Msg("business created")

	return handler.Created(c, newView(&b))
}

// SetPublished changes the visibility of a business.
func (s *Service) SetPublished(c *fiber.Ctx) error {
	id, ok, err := businessID(c)
	if !ok {
		return err
	}

	var in PublishedRequest
	if err := c.BodyParser(&in); err != nil {
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeInvalidRequest, "Invalid request body")
	}

	if errs := s.validator.Validate(in); errs != nil {
		return handler.Fail(c, fiber.StatusBadRequest, handler.CodeValidation, handler.Message(errs))
	}

	b, err := controller.SetPublished(s.db.WithContext(c.UserContext()), id, *in.Published)
	if errors.Is(err, controller.ErrBusinessNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, handler.CodeNotFound, "Business not found")
	}

	if err != nil {
		return s.internal(c, err, "failed to update business")
	}

	return handler.OK(c, newView(b))
}

// Delete removes a business.
func (s *Service) Delete(c *fiber.Ctx) error {
	id, ok, err := businessID(c)
	if !ok {
		return err
	}

	err = controller.Delete(s.db.WithContext(c.UserContext()), id)
	if errors.Is(err, controller.ErrBusinessNotFound) {
		return handler.Fail(c, fiber.StatusNotFound, handler.CodeNotFound, "Business not found")
	}

	if err != nil {
		return s.internal(c, err, "failed to delete business")
	}

	if ac, ok := auth.FromFiber(c); ok {
		log.Info().Uint64("user_id", ac.UserID).Uint64("business_id", id).Msg("business deleted")
	}

	return c.Status(fiber.StatusOK).JSON(handler.Response{Success: true, Message: "Business deleted"})
}

func (s *Service) internal(c *fiber.Ctx, err error, msg string) error {
	log.Error().Err(err).Str("path", c.Path()).Msg(msg)

	return handler.Fail(c, fiber.StatusInternalServerError, handler.CodeInternalError, "Internal server error")
}

// businessID reads the id route parameter. When ok is false the failure response is already written.
// Keys are signed 64-bit in every supported database, so larger ids are well-formed but cannot exist.
func businessID(c *fiber.Ctx) (uint64, bool, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 63) //nolint:mnd
	switch {
	case errors.Is(err, strconv.ErrRange):
		return 0, false, handler.Fail(c, fiber.StatusNotFound, handler.CodeNotFound, "Business not found")
	case err != nil || id == 0:
		return 0, false, handler.Fail(c, fiber.StatusBadRequest, handler.CodeInvalidRequest, "Invalid business id")
	}

	return id, true, nil
}
