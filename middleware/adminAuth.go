package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenVerifier verifies Firebase ID tokens; *auth.Client satisfies it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	return token, token != ""
}

func tokenMatches(token, secret string) bool {
	return secret != "" && subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}

// AdminAuthMiddleware accepts the static ADMIN_TOKEN or a Firebase ID token
// carrying the admin custom claim. verifier may be nil.
func AdminAuthMiddleware(staticToken string, verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing or invalid Authorization header"})
			return
		}

		if tokenMatches(token, staticToken) {
			c.Set("adminID", "static")
			c.Set("isAdmin", true)
			c.Next()
			return
		}

		if verifier != nil {
			idToken, err := verifier.VerifyIDToken(c.Request.Context(), token)
			if err == nil {
				if isAdmin, _ := idToken.Claims["admin"].(bool); isAdmin {
					c.Set("adminID", idToken.UID)
					c.Set("isAdmin", true)
					c.Next()
					return
				}
				zap.L().Warn("ID token without admin claim", zap.String("uid", idToken.UID))
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Admin access required"})
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized admin access"})
	}
}

// CronSecretMiddleware guards scheduler-triggered endpoints with CRON_SECRET.
// With no secret configured every request is rejected.
func CronSecretMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok || !tokenMatches(token, secret) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Next()
	}
}
