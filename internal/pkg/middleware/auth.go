package middleware

import (
	"net/http"
	"strings"

	"starpay/pkg/response"
	"starpay/pkg/utils"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware gates the internal surface behind a bearer service token.
// Provider webhooks are exempt; they authenticate by payload signature.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Authorization header is required")
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid authorization header format")
			c.Abort()
			return
		}

		claims, err := utils.ParseServiceToken(parts[1])
		if err != nil {
			response.Error(c, http.StatusUnauthorized, response.ErrTokenInvalid, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("service", claims.Service)
		c.Next()
	}
}
