package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Page is a page of a listing.
type Page struct {
	Items  any   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// Paging reads ?limit and ?offset. Missing or invalid values fall back to the defaults and
// the limit is capped at MaxPageSize.
func Paging(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", DefaultPageSize)
	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
