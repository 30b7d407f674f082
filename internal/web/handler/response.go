package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Response is the envelope of every JSON response.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK sends a 200 success envelope. data may be nil.
func OK(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(Response{Success: true, Data: data})
}

// Created sends a 201 success envelope.
func Created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(Response{Success: true, Data: data})
}

// Fail sends an error envelope. message is shown to users and must not carry internals.
func Fail(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(Response{Success: false, Message: message, Error: code})
}

// ErrorHandler is the fiber error handler; errors escaping a handler become a uniform
// envelope and never expose their text unless they are fiber errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok { //nolint:errorlint // fiber returns the concrete type
		code := CodeInvalidRequest

		switch e.Code {
		case fiber.StatusNotFound:
			code = CodeNotFound
		case fiber.StatusInternalServerError:
			code = CodeInternalError
		}

		return Fail(c, e.Code, code, e.Message)
	}

	return Fail(c, fiber.StatusInternalServerError, CodeInternalError, "Internal server error")
}
