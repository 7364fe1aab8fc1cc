package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/saed-edu/saed-api/internal/models"
	"github.com/saed-edu/saed-api/internal/service"
)

// LastAccess stamps the authenticated user's last_access after each request.
func LastAccess(users *service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if users == nil {
			return
		}
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok {
			return
		}
		users.TouchLastAccess(c.Request.Context(), claims.UserID)
	}
}
