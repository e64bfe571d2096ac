package middleware

import (
	"net/http"
	"strings"

	"attendly/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	organizerKey = "organizerID"
	tokenCookie  = "attendly_org"
)

// AuthMiddleware verifies the organizer's bearer token and stores the organizer id in the
// context. Tokens are issued by the account system; only verification happens here.
func AuthMiddleware(jwtSecret, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenStr string

		// 1) Authorization: Bearer xxx
		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
				tokenStr = strings.TrimSpace(parts[1])
			}
		}

		// 2) dashboard cookie
		if tokenStr == "" {
			if cookie, err := c.Cookie(tokenCookie); err == nil {
				tokenStr = cookie
			}
		}

		if tokenStr == "" {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "not signed in")
			c.Abort()
			return
		}

		claims, err := util.ParseToken(jwtSecret, issuer, tokenStr)
		if err != nil {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "session expired, sign in again")
			c.Abort()
			return
		}

		c.Set(organizerKey, claims.Subject)
		c.Next()
	}
}

// CurrentOrganizer returns the organizer id set by AuthMiddleware.
func CurrentOrganizer(c *gin.Context) (string, bool) {
	v, ok := c.Get(organizerKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
