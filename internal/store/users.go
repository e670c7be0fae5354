package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bernarddwumfour/estore-backend/internal/models"
)

// CreateUser inserts a new user row
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, phone, role, email_verified, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return s.db.QueryRowxContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.FirstName, user.LastName,
		user.Phone, user.Role, user.EmailVerified, user.IsActive,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

// GetUserByID retrieves a user by ID
func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, "SELECT * FROM users WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailExists checks if a user with this email is already registered
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)", email)
	return exists, err
}

// UpdateUserProfile updates the user's editable profile fields
func (s *Store) UpdateUserProfile(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET first_name = $1, last_name = $2, phone = $3, updated_at = NOW() WHERE id = $4`,
		user.FirstName, user.LastName, user.Phone, user.ID)
	return err
}

// UpdateUserPassword replaces the stored password hash
func (s *Store) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2",
		passwordHash, userID)
	return err
}

// MarkEmailVerified stamps the user's email as verified
func (s *Store) MarkEmailVerified(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET email_verified = TRUE, updated_at = NOW() WHERE id = $1",
		userID)
	return err
}

// UpdateLastLogin stamps the last successful login time
func (s *Store) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login_at = $1 WHERE id = $2", at, userID)
	return err
}

// SetUserActive activates or deactivates an account (admin)
func (s *Store) SetUserActive(ctx context.Context, userID string, active bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET is_active = $1, updated_at = NOW() WHERE id = $2",
		active, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers retrieves users ordered by creation time (admin)
func (s *Store) ListUsers(ctx context.Context, limit, offset int) ([]models.User, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM users"); err != nil {
		return nil, 0, err
	}

	var users []models.User
	err := s.db.SelectContext(ctx, &users,
		"SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	return users, total, err
}
