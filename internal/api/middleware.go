package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bernarddwumfour/estore-backend/internal/models"
	"github.com/bernarddwumfour/estore-backend/internal/service"
	"github.com/bernarddwumfour/estore-backend/internal/util"
)

const userContextKey = "auth_user"

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// requireAuth rejects requests without a valid access token.
func requireAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			respondUnauthorized(c, "Authentication required")
			return
		}
		user, err := auth.UserFromToken(c.Request.Context(), token)
		if err != nil {
			respondUnauthorized(c, "Invalid or expired token")
			return
		}
		c.Set(userContextKey, user)
		c.Next()
	}
}

// optionalAuth resolves the user when a token is present but lets anonymous
// requests through (guest checkout and guest order lookup).
func optionalAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c); token != "" {
			user, err := auth.UserFromToken(c.Request.Context(), token)
			if err != nil {
				respondUnauthorized(c, "Invalid or expired token")
				return
			}
			c.Set(userContextKey, user)
		}
		c.Next()
	}
}

// requireRole runs after requireAuth and checks the user's role.
func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			respondUnauthorized(c, "Authentication required")
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		respondForbidden(c, "You don't have permission to access this resource")
	}
}

// currentUser returns the authenticated user, or nil for anonymous requests.
func currentUser(c *gin.Context) *models.User {
	val, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	user, _ := val.(*models.User)
	return user
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
