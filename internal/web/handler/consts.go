package handler

const (
	// RootPath is the root path of a route group.
	RootPath = "/"

	// APIPath prefixes the directory API routes.
	APIPath = "/api"

	// DefaultPageSize for pagination.
	DefaultPageSize = 25

	// MaxPageSize caps the page size a caller may request.
	MaxPageSize = 100
)

// Error codes used by the handlers in addition to the access middleware codes.
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeInternalError      = "INTERNAL_ERROR"
)
