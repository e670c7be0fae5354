package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bernarddwumfour/estore-backend/internal/service"
	"github.com/bernarddwumfour/estore-backend/internal/util"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Meta carries pagination info for list endpoints.
type Meta struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Message: message, Data: data})
}

func respondCreated(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Message: message, Data: data})
}

func respondList(c *gin.Context, items interface{}, meta Meta) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"items": items,
			"meta":  meta,
		},
	})
}

// respondError maps the service error taxonomy onto HTTP status codes.
// Unrecognized errors become an opaque 500 so internals never leak.
func respondError(c *gin.Context, err error) {
	var (
		validation *service.ValidationError
		notFound   *service.NotFoundError
		permission *service.PermissionDeniedError
		stock      *service.InsufficientStockError
		state      *service.InvalidStateError
		conflict   *service.ConflictError
	)

	switch {
	case errors.As(err, &validation):
		status := http.StatusBadRequest
		if len(validation.Fields) > 0 {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, Response{
			Success: false,
			Message: validation.Message,
			Errors:  validation.Fields,
		})

	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Message: err.Error()})

	case errors.As(err, &permission):
		c.JSON(http.StatusForbidden, Response{Success: false, Message: err.Error()})

	case errors.As(err, &stock):
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: err.Error()})

	case errors.As(err, &state):
		c.JSON(http.StatusBadRequest, Response{Success: false, Message: err.Error()})

	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, Response{Success: false, Message: err.Error()})

	default:
		util.GetLogger().Error("Unhandled request error",
			zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Message: "Internal server error",
		})
	}
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Message: message})
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Message: message})
}

func respondForbidden(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{Success: false, Message: message})
}
