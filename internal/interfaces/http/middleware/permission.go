package middleware

import (
	"net/http"

	"github.com/delivery/backend/internal/infrastructure/auth"
	"github.com/delivery/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RoleConfig holds configuration for role middleware
type RoleConfig struct {
	Logger *zap.Logger
}

// RequireRole creates middleware that lets through callers holding one of
// the given roles. Anonymous callers get a 401, other roles a 403.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return RequireRoleWithConfig(RoleConfig{}, roles...)
}

// RequireRoleWithConfig is RequireRole with a logger for denied requests
func RequireRoleWithConfig(cfg RoleConfig, roles ...auth.Role) gin.HandlerFunc {
	allowed := make(map[auth.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims := GetJWTClaims(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized, "Authentication required", getRequestIDFromContext(c)))
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			if cfg.Logger != nil {
				cfg.Logger.Warn("Role denied",
					zap.String("user_id", claims.UserID),
					zap.String("role", string(claims.Role)),
					zap.Any("required", roles),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeForbidden, "Access denied", getRequestIDFromContext(c)))
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequireRole(auth.RoleAdmin)
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin)
}
