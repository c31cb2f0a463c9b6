package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"driveshare/internal/booking"
	"driveshare/internal/models"
	"driveshare/internal/security"
)

const (
	ContextUser      = "current_user"
	ContextClaims    = "access_claims"
	ContextPrincipal = "principal"
)

type UserLookup interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type SessionLookup interface {
	GetByID(ctx context.Context, id string) (models.Session, error)
	Touch(ctx context.Context, sessionID string, ip string, userAgent string) error
}

// Auth validates the bearer token against its device session and loads the
// user fresh from storage, so role and verification changes apply at once.
func Auth(secret string, users UserLookup, sessions SessionLookup, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		ctx := c.Request.Context()
		session, err := sessions.GetByID(ctx, claims.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_not_found"})
			return
		}
		if session.UserID != claims.UserID || session.DeviceID != claims.DeviceID {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_mismatch"})
			return
		}

		user, err := users.GetByID(ctx, claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			return
		}

		if err := sessions.Touch(ctx, session.ID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("touch session failed")
		}

		SetUser(c, user)
		c.Set(ContextClaims, *claims)
		c.Next()
	}
}

// SetUser stores user and the booking principal derived from it.
func SetUser(c *gin.Context, user models.User) {
	c.Set(ContextUser, user)
	c.Set(ContextPrincipal, booking.Principal{
		UserID:   user.ID,
		Role:     user.Role,
		Verified: user.Verified(),
	})
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(ContextUser)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

func CurrentPrincipal(c *gin.Context) (booking.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return booking.Principal{}, false
	}
	p, ok := v.(booking.Principal)
	return p, ok
}

func CurrentClaims(c *gin.Context) (security.AccessClaims, bool) {
	v, ok := c.Get(ContextClaims)
	if !ok {
		return security.AccessClaims{}, false
	}
	claims, ok := v.(security.AccessClaims)
	return claims, ok
}
