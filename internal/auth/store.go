package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/bizdir/bizdir/internal/db/models"
)

// Store is the gorm backed credential store.
type Store struct {
	db *gorm.DB
}

const whereID = "id = ?"

// NewStore creates a credential store on db.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db: db,
	}
}

// GetUserByID retrieves a user by ID. A missing user yields ErrUserNotFound.
func (s *Store) GetUserByID(ctx context.Context, userID uint64) (*models.User, error) {
	var user models.User

	err := s.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user %d: %w", userID, err)
	}

	return &user, nil
}

// GetUserByUsername retrieves a user by username. A missing user yields ErrUserNotFound.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &user, nil
}

// TouchLastLogin records a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, userID uint64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).
		Where(whereID, userID).
		Update("last_login_at", at).Error
}

// NewUser describes an account to create.
type NewUser struct {
	Username    string
	Password    string
	Role        models.Role
	Permissions []string
	Active      bool
}

// CreateUser creates a new account with a hashed password.
func (s *Store) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}

	if in.Role == "" {
		in.Role = models.RoleUser
	}

	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}

	_, err := s.GetUserByUsername(ctx, in.Username)
	if err == nil {
		return nil, ErrUserNameExists
	}

	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hashed, err := models.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:    in.Username,
		Password:    hashed,
		Role:        in.Role,
		Permissions: EncodePermissions(in.Permissions),
		Active:      in.Active,
	}

	// Active has a database default of true, so an explicit false must be written separately.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(&user).Error; errCreate != nil {
			return errCreate
		}

		if !in.Active {
			return tx.Model(&user).Update("active", false).Error
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// SetPermissions replaces the explicit grants of a user.
func (s *Store) SetPermissions(ctx context.Context, userID uint64, grants []string) error {
	return s.update(ctx, userID, "permissions", EncodePermissions(grants))
}

// SetRole changes the role of a user.
func (s *Store) SetRole(ctx context.Context, userID uint64, role models.Role) error {
	if !role.Valid() {
		return ErrInvalidRole
	}

	return s.update(ctx, userID, "role", role)
}

// SetActive activates or deactivates a user account.
func (s *Store) SetActive(ctx context.Context, userID uint64, active bool) error {
	return s.update(ctx, userID, "active", active)
}

// ResetPassword sets a new password without checking the old one (admin function).
func (s *Store) ResetPassword(ctx context.Context, userID uint64, newPassword string) error {
	if newPassword == "" {
		return ErrMissingCredentials
	}

	hashed, err := models.HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.update(ctx, userID, "password", hashed)
}

// ChangePassword changes a user's password after checking the old one.
func (s *Store) ChangePassword(ctx context.Context, userID uint64, oldPassword, newPassword string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !user.VerifyPassword(oldPassword) {
		return ErrInvalidOldPassword
	}

	return s.ResetPassword(ctx, userID, newPassword)
}

// ListUsers lists users ordered by ID with an optional active filter. A zero limit
// returns every user.
func (s *Store) ListUsers(ctx context.Context, active *bool, limit, offset int) ([]models.User, int64, error) {
	var (
		users []models.User
		total int64
	)

	query := s.db.WithContext(ctx).Model(&models.User{})

	if active != nil {
		query = query.Where("active = ?", *active)
	}

	query = query.Session(&gorm.Session{})

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	page := query.Order("id")
	if limit > 0 {
		page = page.Limit(limit)
	}

	if offset > 0 {
		page = page.Offset(offset)
	}

	if err := page.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

// CountUsers returns the number of accounts.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error

	return count, err
}

func (s *Store) update(ctx context.Context, userID uint64, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where(whereID, userID).
		Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("failed to update %s of user %d: %w", column, userID, res.Error)
	}

	if res.RowsAffected > 0 {
		return nil
	}

	// some engines report zero affected rows when the value did not change
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where(whereID, userID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to query user %d: %w", userID, err)
	}

	if count == 0 {
		return ErrUserNotFound
	}

	return nil
}
