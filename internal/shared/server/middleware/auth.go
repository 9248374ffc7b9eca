package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"factcheck-backend/internal/shared/auth"
	"factcheck-backend/internal/shared/server/respond"
)

const (
	userIDKey     = "userId"
	userEmailKey  = "userEmail"
	guestHeader   = "X-Guest-Id"
	maxGuestIDLen = 64
)

// Auth resolves the caller from a bearer JWT or an X-Guest-Id header. Guests
// are namespaced as "guest:<id>" so they never collide with account ids.
// Outside dev and local, guest ids must be UUIDs.
func Auth(env string) gin.HandlerFunc {
	strictGuests := env != "dev" && env != "local"
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		if header := strings.TrimSpace(c.GetHeader("Authorization")); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			token = strings.TrimSpace(token)
			if !ok || token == "" {
				unauthorized(c, "missing or invalid token")
				return
			}
			claims, err := auth.VerifyJWT(token)
			if err != nil {
				unauthorized(c, "missing or invalid token")
				return
			}
			c.Set(userIDKey, claims.Subject)
			if claims.Email != "" {
				c.Set(userEmailKey, claims.Email)
			}
			c.Set("isGuest", false)
			c.Next()
			return
		}

		guestID := strings.TrimSpace(c.GetHeader(guestHeader))
		if guestID == "" {
			unauthorized(c, "send a bearer token or an X-Guest-Id header")
			return
		}
		if !validGuestID(guestID, strictGuests) {
			unauthorized(c, "invalid X-Guest-Id")
			return
		}
		c.Set(userIDKey, "guest:"+guestID)
		c.Set("isGuest", true)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	respond.Error(c, http.StatusUnauthorized, "unauthorized", message, nil)
}

func validGuestID(id string, strict bool) bool {
	if strict {
		_, err := uuid.Parse(id)
		return err == nil
	}
	return len(id) <= maxGuestIDLen && validRequestID(id)
}

// UserIDFromContext fetches the user ID set by the auth middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}

// UserEmailFromContext fetches the user email set by the auth middleware.
func UserEmailFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userEmailKey)
}
