// Package dsn builds the Data Source Name and the gorm dialector for the configured engine.
package dsn

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/config"
)

// Create builds the Data Source Name from the database configuration.
func Create(db config.DB) (string, error) {
	switch db.Engine {
	case config.EngineMySQL:
		out := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s",
			db.User,
			db.Password,
			db.Host,
			db.Port,
			db.Name,
		)
		if db.Extras != "" {
			out += "?" + db.Extras
		}

		return out, nil
	case config.EnginePostgres:
		out := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s",
			db.Host,
			db.Port,
			db.User,
			db.Password,
			db.Name,
		)
		if db.Extras != "" {
			out += " " + db.Extras
		}

		return out, nil
	case config.EngineSQLite:
		out := db.Path
		if db.Extras != "" {
			out += "?" + db.Extras
		}

		return out, nil
	default:
		return "", fmt.Errorf("%w: %q", config.ErrUnknownDBEngine, db.Engine)
	}
}

// Dialector returns the gorm dialector for the configured engine.
func Dialector(db config.DB) (gorm.Dialector, error) {
	source, err := Create(db)
	if err != nil {
		return nil, err
	}

	switch db.Engine {
	case config.EngineMySQL:
		return gormmysql.Open(source), nil
	case config.EnginePostgres:
		return postgres.Open(source), nil
	default:
		if dir := filepath.Dir(db.Path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		return sqlite.Open(source), nil
	}
}

// Open connects to the configured database.
func Open(db config.DB, cfg *gorm.Config) (*gorm.DB, error) {
	dialector, err := Dialector(db)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect %s database: %w", db.Engine, err)
	}

	return conn, nil
}
