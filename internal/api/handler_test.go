package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func postVerifyPayment(t *testing.T, payload string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := NewHandler(nil, nil, nil, nil)
	router := gin.New()
	router.POST("/api/verify-payment", h.verifyPayment)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/verify-payment", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(rec, req)

	var body Response
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestVerifyPaymentRequiresIntentAndOrder(t *testing.T) {
	cases := []string{
		`{}`,
		`{"payment_intent_id": "pi_3abc"}`,
		`{"order_id": "ORD202608301234"}`,
	}
	for _, payload := range cases {
		rec, body := postVerifyPayment(t, payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "payload %s", payload)
		assert.False(t, body.Success)
		assert.Equal(t, "Missing payment_intent_id or order_id", body.Message)
	}
}

func TestVerifyPaymentRejectsMalformedBody(t *testing.T) {
	rec, body := postVerifyPayment(t, `{"payment_intent_id": 42`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", body.Message)
}
