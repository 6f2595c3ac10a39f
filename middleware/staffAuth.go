package middleware

import (
	"net/http"
	"strings"

	"tablebook/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StaffAuthMiddleware admits requests bearing a valid staff JWT and stores
// its subject under "staffSubject".
func StaffAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			utils.JSONError(c, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header", "")
			return
		}

		subject, err := utils.ValidateStaffToken(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			zap.L().Warn("Rejected staff token", zap.String("ip", c.ClientIP()), zap.Error(err))
			utils.JSONError(c, http.StatusUnauthorized, "unauthorized", "Unauthorized staff access", "")
			return
		}

		c.Set("staffSubject", subject)
		c.Next()
	}
}
