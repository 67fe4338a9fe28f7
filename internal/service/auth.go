package service

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
)

// AuthService guards the admin surface with TOTP codes. User-facing session
// auth is handled by the external identity provider in front of this service.
type AuthService struct {
	logger     *zap.Logger
	totpSecret string
}

func NewAuthService(logger *zap.Logger, totpSecret string) *AuthService {
	return &AuthService{
		logger:     logger,
		totpSecret: totpSecret,
	}
}

func (a *AuthService) ValidateToken(token string) bool {
	valid := totp.Validate(token, a.totpSecret)
	if !valid {
		a.logger.Warn("TOTP token validation failed")
	}
	return valid
}

// AdminMiddleware requires a valid TOTP code in the X-Admin-Token header.
func (a *AuthService) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.totpSecret == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "admin access not configured"})
			c.Abort()
			return
		}

		token := c.GetHeader("X-Admin-Token")
		if token == "" || !a.ValidateToken(token) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
