package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"driveshare/internal/models"
)

// RequireRoles must run after Auth. Booking-level ownership checks stay in
// the booking core; this only gates whole route groups.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := slices.Clone(roles)

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		switch {
		case !ok:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		case !slices.Contains(allowed, user.Role):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "role " + string(user.Role) + " may not use this endpoint"})
		default:
			c.Next()
		}
	}
}
