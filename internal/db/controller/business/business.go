// Package business provides CRUD operations for directory business records.
package business

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/db/models"
)

var (
	// ErrBusinessNotFound is returned when a business is not found.
	ErrBusinessNotFound = errors.New("business not found")
	// ErrBusinessNameEmpty is returned when creating a business without a name.
	ErrBusinessNameEmpty = errors.New("business name cannot be empty")
	// ErrDBNil is returned when the database connection is nil.
	ErrDBNil = errors.New("database connection is nil")
)

// likeEscaper makes wildcards in a search term match literally. '!' is used as the
// escape character since MySQL treats a backslash in a literal as an escape itself.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// Filter narrows a listing.
type Filter struct {
	// Category matches exactly when set.
	Category string
	// Query matches a substring of the name when set.
	Query string
	// IncludeUnpublished also returns records that are not published.
	IncludeUnpublished bool
	// Limit caps the page size; zero means no limit.
	Limit  int
	Offset int
}

// List returns the records matching f ordered by name, plus the total match count.
func List(db *gorm.DB, f Filter) ([]models.Business, int64, error) {
	if db == nil {
		return nil, 0, ErrDBNil
	}

	query := db.Model(&models.Business{})

	if !f.IncludeUnpublished {
		query = query.Where("published = ?", true)
	}

	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		query = query.Where("LOWER(name) LIKE ? ESCAPE '!'", "%"+likeEscaper.Replace(strings.ToLower(q))+"%")
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := query.Order("name").Order("id").Offset(f.Offset)
	if f.Limit > 0 {
		page = page.Limit(f.Limit)
	}

	var businesses []models.Business

	result := page.Find(&businesses)
	if result.Error != nil {
		return nil, 0, result.Error
	}

	return businesses, total, nil
}

// Get retrieves a business by its ID.
func Get(db *gorm.DB, id uint64) (*models.Business, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	var b models.Business

	result := db.First(&b, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrBusinessNotFound
		}

		return nil, result.Error
	}

	return &b, nil
}

// Create stores a new business. The ID of b is set on success.
func Create(db *gorm.DB, b *models.Business) error {
	if db == nil {
		return ErrDBNil
	}

	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return ErrBusinessNameEmpty
	}

	return db.Create(b).Error
}

// SetPublished changes the visibility of a business and returns the updated record.
func SetPublished(db *gorm.DB, id uint64, published bool) (*models.Business, error) {
	if db == nil {
		return nil, ErrDBNil
	}

	b, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	if err = db.Model(b).Update("published", published).Error; err != nil {
		return nil, err
	}

	b.Published = published

	return b, nil
}

// Delete deletes a business by ID.
func Delete(db *gorm.DB, id uint64) error {
	if db == nil {
		return ErrDBNil
	}

	result := db.Delete(&models.Business{}, id)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrBusinessNotFound
	}

	return nil
}
