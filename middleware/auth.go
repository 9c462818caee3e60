package middleware

import (
	"github.com/gin-gonic/gin"

	"document-rag-platform/internal/config"
	"document-rag-platform/utils"
)

const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextClaims = "claims"
)

// RequireAuth validates the bearer token and stores the authenticated
// identity on the request context. The user id doubles as the tenant key
// for document and vector isolation.
func RequireAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}

		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := utils.ValidateJWT(tokenString, cfg.JWTSecret)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// GetUserID returns the authenticated user id, or "" when unauthenticated.
func GetUserID(c *gin.Context) string {
	if v, ok := c.Get(ContextUserID); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
