package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bernarddwumfour/estore-backend/internal/models"
)

func TestAddressDataValidate(t *testing.T) {
	assert.NoError(t, validAddressData().Validate())

	data := validAddressData()
	data.City = ""
	data.Phone = ""

	err := data.Validate()
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "city")
	assert.Contains(t, verr.Fields, "phone")
	assert.NotContains(t, verr.Fields, "first_name")
}

func TestAddressDataToModel(t *testing.T) {
	user := &models.User{ID: "u-1"}

	addr := validAddressData().toModel(user, models.AddressTypeShipping)
	assert.NotEmpty(t, addr.ID)
	assert.Equal(t, models.AddressTypeShipping, addr.AddressType)
	assert.Equal(t, "u-1", *addr.UserID)
	assert.True(t, addr.IsActive)

	guest := validAddressData().toModel(nil, models.AddressTypeBilling)
	assert.Nil(t, guest.UserID)
	assert.Equal(t, models.AddressTypeBilling, guest.AddressType)
}
