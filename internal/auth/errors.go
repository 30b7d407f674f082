package auth

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidOldPassword is returned when the provided old password does not match.
	ErrInvalidOldPassword = errors.New("invalid old password")

	// ErrUserNameExists is returned when creating a user with a taken username.
	ErrUserNameExists = errors.New("user with username already exists")

	// ErrUserAccountDisabled is returned when an inactive account tries to authenticate.
	ErrUserAccountDisabled = errors.New("user account is disabled")

	// ErrInvalidCredentials is returned for an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrMissingCredentials is returned when username or password is empty.
	ErrMissingCredentials = errors.New("username and password are required")

	// ErrUserNotFound is returned when a user cannot be found in the database.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidRole is returned for a role other than admin or user.
	ErrInvalidRole = errors.New("invalid role")
)

// Code is the machine readable error code sent to callers.
type Code string

// Access middleware outcomes.
const (
	CodeNoToken                 Code = "NO_TOKEN"
	CodeInvalidToken            Code = "INVALID_TOKEN"
	CodeExpiredToken            Code = "EXPIRED_TOKEN"
	CodeUserNotFound            Code = "USER_NOT_FOUND"
	CodeUserInactive            Code = "USER_INACTIVE"
	CodeInsufficientPermissions Code = "INSUFFICIENT_PERMISSIONS"
	CodeInternalError           Code = "INTERNAL_ERROR"
)

// Failure is a rejected authorization decision. Err keeps the cause for logging and is
// never sent to the caller.
type Failure struct {
	Status  int
	Code    Code
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return string(f.Code) + ": " + f.Err.Error()
	}

	return string(f.Code)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Definitive reports whether the failure is a verdict about the credential rather than a
// server fault.
func (f *Failure) Definitive() bool {
	return f.Status == http.StatusUnauthorized
}

func newFailure(code Code, err error) *Failure {
	f := &Failure{Code: code, Err: err, Status: http.StatusUnauthorized}

	switch code {
	case CodeNoToken:
		f.Message = "Access token is required"
	case CodeInvalidToken:
		f.Message = "Invalid access token"
	case CodeExpiredToken:
		f.Message = "Access token has expired"
	case CodeUserNotFound:
		f.Message = "User not found"
	case CodeUserInactive:
		f.Message = "User account is inactive"
	case CodeInsufficientPermissions:
		f.Status = http.StatusForbidden
		f.Message = "Insufficient permissions"
	default:
		f.Code = CodeInternalError
		f.Status = http.StatusInternalServerError
		f.Message = "Internal server error"
	}

	return f
}

// AsFailure returns the Failure in err's chain, or an INTERNAL_ERROR failure wrapping err.
func AsFailure(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}

	return newFailure(CodeInternalError, err)
}
