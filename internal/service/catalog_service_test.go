package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bernarddwumfour/estore-backend/internal/models"
)

func TestSlugify(t *testing.T) {
	assert.Equal(t, "classic-cotton-t-shirt", slugify("Classic Cotton T-Shirt"))
	assert.Equal(t, "100-wool-scarf", slugify("100% Wool Scarf!"))
	assert.Equal(t, "cafe", slugify("Café"))
}

func TestVariantRequestValidateAttributes(t *testing.T) {
	product := &models.Product{
		Options: models.OptionMap{
			"color": {"Black", "White"},
			"size":  {"S", "M", "L"},
		},
	}

	req := &VariantRequest{
		SKU:        "TS-BLK-M",
		Price:      dec("45.00"),
		Attributes: models.Attributes{"color": "Black", "size": "M"},
	}
	assert.NoError(t, req.validate(product))

	req.Attributes = models.Attributes{"color": "Red"}
	err := req.validate(product)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "attributes.color")

	req.Attributes = models.Attributes{"material": "Cotton"}
	err = req.validate(product)
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "attributes.material")
}

func TestVariantRequestValidatePricing(t *testing.T) {
	product := &models.Product{Options: models.OptionMap{}}

	req := &VariantRequest{
		SKU:            "TS-1",
		Price:          dec("10.00"),
		DiscountAmount: dec("15.00"),
	}
	err := req.validate(product)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "discount_amount")

	req = &VariantRequest{Price: dec("10.00"), Stock: -1}
	err = req.validate(product)
	assert.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "sku")
	assert.Contains(t, verr.Fields, "stock")
}
