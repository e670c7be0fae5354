package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/bernarddwumfour/estore-backend/internal/service"
)

func runRespondError(t *testing.T, err error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, err)

	var body Response
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.NewValidationError("bad input"), http.StatusBadRequest},
		{service.NewFieldErrors(map[string]string{"email": "required"}), http.StatusUnprocessableEntity},
		{service.NewNotFoundError("Order"), http.StatusNotFound},
		{service.NewPermissionDenied("nope"), http.StatusForbidden},
		{&service.InsufficientStockError{SKU: "X", Available: 0, Requested: 1}, http.StatusBadRequest},
		{service.NewInvalidState("already shipped"), http.StatusBadRequest},
		{service.NewConflict("duplicate"), http.StatusConflict},
		{errors.New("database on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec, body := runRespondError(t, tc.err)
		assert.Equal(t, tc.status, rec.Code, "error %v", tc.err)
		assert.False(t, body.Success)
	}
}

// Stock and lifecycle-state failures are client errors, not conflicts; the
// storefront retries them with a corrected cart, never as-is.
func TestRespondErrorStockAndStateAreBadRequest(t *testing.T) {
	rec, body := runRespondError(t, &service.InsufficientStockError{SKU: "TSHIRT-BLK-M", Available: 2, Requested: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Insufficient stock for TSHIRT-BLK-M. Available: 2, Requested: 5", body.Message)

	rec, body = runRespondError(t, service.NewInvalidState("Order cannot be cancelled in status shipped"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Order cannot be cancelled in status shipped", body.Message)
}

func TestRespondErrorHidesInternals(t *testing.T) {
	_, body := runRespondError(t, errors.New("pq: connection refused"))
	assert.Equal(t, "Internal server error", body.Message)
}

func TestRespondErrorFieldErrors(t *testing.T) {
	_, body := runRespondError(t, service.NewFieldErrors(map[string]string{
		"guest_email": "This field is required for guest checkout",
	}))
	assert.Equal(t, "Validation failed", body.Message)
	assert.Equal(t, "This field is required for guest checkout", body.Errors["guest_email"])
}
