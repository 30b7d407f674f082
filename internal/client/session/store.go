package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Keys of the persisted session. Nothing else is stored.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// Store persists the session between runs.
type Store interface {
	// Load returns the persisted session. An empty token or nil user means there is none.
	Load(ctx context.Context) (token string, user *UserSnapshot, err error)
	// Save replaces the persisted session.
	Save(ctx context.Context, token string, user UserSnapshot) error
	// Clear removes the persisted session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

func sessionKeys() map[string]any {
	return map[string]any{"key": []string{KeyToken, KeyUser}}
}

// Entry is one persisted key.
type Entry struct {
	Key   string `gorm:"primaryKey;size:32"`
	Value string `gorm:"type:text;not null"`
}

// TableName returns the table name for the Entry model.
func (Entry) TableName() string {
	return "metadata"
}

// DBStore keeps the session in a gorm database, normally a sqlite file.
type DBStore struct {
	db *gorm.DB
}

// OpenFile opens or creates the sqlite session file at path.
func OpenFile(path string) (*DBStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil { //nolint:mnd
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}

	return NewDBStore(db)
}

// NewDBStore migrates the metadata table on db.
func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session store: %w", err)
	}

	return &DBStore{db: db}, nil
}

// Load implements Store. A user entry that does not decode is an error.
func (s *DBStore) Load(ctx context.Context) (string, *UserSnapshot, error) {
	var entries []Entry
	if err := s.db.WithContext(ctx).Where(sessionKeys()).Find(&entries).Error; err != nil {
		return "", nil, fmt.Errorf("failed to read session: %w", err)
	}

	var token, rawUser string

	for _, e := range entries {
		switch e.Key {
		case KeyToken:
			token = e.Value
		case KeyUser:
			rawUser = e.Value
		}
	}

	if token == "" || rawUser == "" {
		return "", nil, nil
	}

	var user UserSnapshot
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return "", nil, fmt.Errorf("failed to decode persisted user: %w", err)
	}

	return token, &user, nil
}

// Save implements Store.
func (s *DBStore) Save(ctx context.Context, token string, user UserSnapshot) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	entries := []Entry{
		{Key: KeyToken, Value: token},
		{Key: KeyUser, Value: string(raw)},
	}

	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&entries).Error
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Clear implements Store.
func (s *DBStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Where(sessionKeys()).Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *DBStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err //nolint:wrapcheck
	}

	return sqlDB.Close() //nolint:wrapcheck
}
