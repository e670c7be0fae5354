package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/bernarddwumfour/estore-backend/internal/models"
	"github.com/bernarddwumfour/estore-backend/internal/store"
	"github.com/bernarddwumfour/estore-backend/internal/util"
)

// AddressService resolves and manages shipping/billing addresses
type AddressService struct {
	store  *store.Store
	logger *zap.Logger
}

// NewAddressService creates a new address service
func NewAddressService(st *store.Store) *AddressService {
	return &AddressService{
		store:  st,
		logger: util.GetLogger(),
	}
}

// AddressData is the JSON payload shape for an address.
type AddressData struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Instructions string `json:"instructions"`
	IsDefault    bool   `json:"is_default"`
}

// Validate checks the required contact and location fields.
func (d *AddressData) Validate() error {
	fields := map[string]string{
		"first_name":    d.FirstName,
		"last_name":     d.LastName,
		"address_line1": d.AddressLine1,
		"city":          d.City,
		"state":         d.State,
		"postal_code":   d.PostalCode,
		"country":       d.Country,
		"phone":         d.Phone,
		"email":         d.Email,
	}
	missing := map[string]string{}
	for name, value := range fields {
		if value == "" {
			missing[name] = "This field is required"
		}
	}
	if len(missing) > 0 {
		return NewFieldErrors(missing)
	}
	return nil
}

func (d *AddressData) toModel(user *models.User, addressType string) *models.Address {
	addr := &models.Address{
		ID:           uuid.New().String(),
		AddressType:  addressType,
		FirstName:    d.FirstName,
		LastName:     d.LastName,
		Company:      d.Company,
		Phone:        d.Phone,
		Email:        d.Email,
		AddressLine1: d.AddressLine1,
		AddressLine2: d.AddressLine2,
		City:         d.City,
		State:        d.State,
		PostalCode:   d.PostalCode,
		Country:      d.Country,
		Instructions: d.Instructions,
		IsDefault:    d.IsDefault,
		IsActive:     true,
	}
	if user != nil {
		addr.UserID = &user.ID
	}
	return addr
}

// ResolveTx validates address data and returns a persisted address inside
// the checkout transaction. Authenticated users get a matching existing
// address reused; guests always get a fresh row with no user association.
func (s *AddressService) ResolveTx(ctx context.Context, tx *sqlx.Tx, data *AddressData, user *models.User, addressType string) (*models.Address, error) {
	if data == nil {
		return nil, NewValidationError("Missing %s address", addressType)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	addr := data.toModel(user, addressType)

	if user != nil {
		existing, err := s.store.FindMatchingAddressTx(ctx, tx, user.ID, addressType, addr)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	if err := s.store.InsertAddressTx(ctx, tx, addr); err != nil {
		return nil, err
	}
	return addr, nil
}

// ListAddresses retrieves the user's address book
func (s *AddressService) ListAddresses(ctx context.Context, user *models.User, addressType string, activeOnly bool) ([]models.Address, error) {
	return s.store.ListUserAddresses(ctx, user.ID, addressType, activeOnly)
}

// CreateAddress adds an address-book entry for the user
func (s *AddressService) CreateAddress(ctx context.Context, user *models.User, data *AddressData, addressType string) (*models.Address, error) {
	if addressType != models.AddressTypeShipping && addressType != models.AddressTypeBilling {
		return nil, NewValidationError("Invalid address type: %s", addressType)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	addr := data.toModel(user, addressType)
	if err := s.store.InsertAddress(ctx, addr); err != nil {
		return nil, err
	}

	s.logger.Info("Address created",
		zap.String("address_id", addr.ID),
		zap.String("user_id", user.ID))
	return addr, nil
}

// UpdateAddress updates an address the user owns
func (s *AddressService) UpdateAddress(ctx context.Context, user *models.User, addressID string, data *AddressData) (*models.Address, error) {
	addr, err := s.store.GetUserAddress(ctx, addressID, user.ID)
	if err != nil {
		if err == store.ErrAddressNotFound {
			return nil, NewNotFoundError("Address")
		}
		return nil, err
	}

	if err := data.Validate(); err != nil {
		return nil, err
	}

	addr.FirstName = data.FirstName
	addr.LastName = data.LastName
	addr.Company = data.Company
	addr.Phone = data.Phone
	addr.Email = data.Email
	addr.AddressLine1 = data.AddressLine1
	addr.AddressLine2 = data.AddressLine2
	addr.City = data.City
	addr.State = data.State
	addr.PostalCode = data.PostalCode
	addr.Country = data.Country
	addr.Instructions = data.Instructions
	addr.IsDefault = data.IsDefault

	if err := s.store.UpdateAddress(ctx, addr); err != nil {
		return nil, err
	}
	return addr, nil
}

// DeleteAddress soft-deletes an address the user owns
func (s *AddressService) DeleteAddress(ctx context.Context, user *models.User, addressID string) error {
	err := s.store.DeactivateAddress(ctx, addressID, user.ID)
	if err == store.ErrAddressNotFound {
		return NewNotFoundError("Address")
	}
	return err
}
