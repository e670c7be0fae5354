package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/bernarddwumfour/estore-backend/internal/models"
)

const addressInsert = `
	INSERT INTO addresses (
		id, user_id, address_type, first_name, last_name, company, phone, email,
		address_line1, address_line2, city, state, postal_code, country,
		instructions, is_default, is_active)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	RETURNING created_at, updated_at`

// InsertAddressTx inserts an address inside an open transaction. When the
// address is flagged default, prior defaults for the same (user, type) pair
// are cleared first so at most one default survives.
func (s *Store) InsertAddressTx(ctx context.Context, tx *sqlx.Tx, addr *models.Address) error {
	if addr.IsDefault && addr.UserID != nil {
		if err := clearDefaultAddresses(ctx, tx, *addr.UserID, addr.AddressType, addr.ID); err != nil {
			return err
		}
	}
	return tx.QueryRowxContext(ctx, addressInsert,
		addr.ID, addr.UserID, addr.AddressType, addr.FirstName, addr.LastName,
		addr.Company, addr.Phone, addr.Email, addr.AddressLine1, addr.AddressLine2,
		addr.City, addr.State, addr.PostalCode, addr.Country,
		addr.Instructions, addr.IsDefault, addr.IsActive,
	).Scan(&addr.CreatedAt, &addr.UpdatedAt)
}

// InsertAddress inserts an address outside a transaction (address-book CRUD).
func (s *Store) InsertAddress(ctx context.Context, addr *models.Address) error {
	if addr.IsDefault && addr.UserID != nil {
		if err := clearDefaultAddresses(ctx, s.db, *addr.UserID, addr.AddressType, addr.ID); err != nil {
			return err
		}
	}
	return s.db.QueryRowxContext(ctx, addressInsert,
		addr.ID, addr.UserID, addr.AddressType, addr.FirstName, addr.LastName,
		addr.Company, addr.Phone, addr.Email, addr.AddressLine1, addr.AddressLine2,
		addr.City, addr.State, addr.PostalCode, addr.Country,
		addr.Instructions, addr.IsDefault, addr.IsActive,
	).Scan(&addr.CreatedAt, &addr.UpdatedAt)
}

func clearDefaultAddresses(ctx context.Context, ext sqlx.ExtContext, userID, addressType, exceptID string) error {
	_, err := ext.ExecContext(ctx,
		`UPDATE addresses SET is_default = FALSE, updated_at = NOW()
		 WHERE user_id = $1 AND address_type = $2 AND is_default = TRUE AND id <> $3`,
		userID, addressType, exceptID)
	return err
}

// FindMatchingAddressTx looks for an existing address of the same shape for
// an authenticated user so checkout can reuse it instead of duplicating rows.
func (s *Store) FindMatchingAddressTx(ctx context.Context, tx *sqlx.Tx, userID, addressType string, addr *models.Address) (*models.Address, error) {
	var existing models.Address
	err := sqlx.GetContext(ctx, tx, &existing,
		`SELECT * FROM addresses
		 WHERE user_id = $1 AND address_type = $2
		   AND first_name = $3 AND last_name = $4 AND address_line1 = $5
		   AND city = $6 AND country = $7 AND postal_code = $8
		 LIMIT 1`,
		userID, addressType, addr.FirstName, addr.LastName, addr.AddressLine1,
		addr.City, addr.Country, addr.PostalCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// GetAddressByID retrieves an address by ID
func (s *Store) GetAddressByID(ctx context.Context, id string) (*models.Address, error) {
	var addr models.Address
	err := s.db.GetContext(ctx, &addr, "SELECT * FROM addresses WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// GetUserAddress retrieves an address owned by the given user
func (s *Store) GetUserAddress(ctx context.Context, id, userID string) (*models.Address, error) {
	var addr models.Address
	err := s.db.GetContext(ctx, &addr,
		"SELECT * FROM addresses WHERE id = $1 AND user_id = $2", id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAddressNotFound
	}
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

// ListUserAddresses retrieves addresses for a user, defaults first
func (s *Store) ListUserAddresses(ctx context.Context, userID, addressType string, activeOnly bool) ([]models.Address, error) {
	query := "SELECT * FROM addresses WHERE user_id = $1"
	args := []interface{}{userID}

	if addressType != "" {
		args = append(args, addressType)
		query += " AND address_type = $2"
	}
	if activeOnly {
		query += " AND is_active = TRUE"
	}
	query += " ORDER BY is_default DESC, created_at DESC"

	var addrs []models.Address
	err := s.db.SelectContext(ctx, &addrs, query, args...)
	return addrs, err
}

// UpdateAddress writes back an address's editable fields
func (s *Store) UpdateAddress(ctx context.Context, addr *models.Address) error {
	if addr.IsDefault && addr.UserID != nil {
		if err := clearDefaultAddresses(ctx, s.db, *addr.UserID, addr.AddressType, addr.ID); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE addresses SET
			first_name = $1, last_name = $2, company = $3, phone = $4, email = $5,
			address_line1 = $6, address_line2 = $7, city = $8, state = $9,
			postal_code = $10, country = $11, instructions = $12, is_default = $13,
			updated_at = NOW()
		 WHERE id = $14`,
		addr.FirstName, addr.LastName, addr.Company, addr.Phone, addr.Email,
		addr.AddressLine1, addr.AddressLine2, addr.City, addr.State,
		addr.PostalCode, addr.Country, addr.Instructions, addr.IsDefault, addr.ID)
	return err
}

// DeactivateAddress soft-deletes an address
func (s *Store) DeactivateAddress(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE addresses SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND user_id = $2",
		id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAddressNotFound
	}
	return nil
}
