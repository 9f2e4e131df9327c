package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lokbazaar-backend/pkg/helpers"
	"lokbazaar-backend/pkg/response"
)

const bearerPrefix = "Bearer "

// Auth validates the access token from the Authorization header and
// sets userID and userEmail in the Gin context on success. Tokens are
// stateless: there is no server-side session or revocation list, so a
// token stays valid until it expires.
func Auth(jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			response.Error(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing bearer token", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", nil)
			c.Abort()
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("userEmail", claims.Email)
		c.Next()
	}
}
