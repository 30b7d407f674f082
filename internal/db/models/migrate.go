package models

import (
	"fmt"

	"gorm.io/gorm"
)

// All returns every model the application persists, in migration order.
func All() []any {
	return []any{
		&User{},
		&Business{},
	}
}

// Migrate creates or updates the tables of all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}
