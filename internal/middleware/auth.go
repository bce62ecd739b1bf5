package middleware

import (
	"strings"

	"skillmint/config"
	"skillmint/internal/auth"
	"skillmint/internal/domain"

	"github.com/gin-gonic/gin"
)

// abort writes the same {code, error} body the handlers use.
func abort(c *gin.Context, e *domain.Error) {
	c.AbortWithStatusJSON(e.Status, gin.H{"code": e.Code, "error": e.Message})
}

// AuthRequired validates the bearer JWT and sets user_id, email and role in the context.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, domain.Errorf(domain.ErrUnauthenticated, "missing authorization header"))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, domain.Errorf(domain.ErrUnauthenticated, "invalid authorization format"))
			return
		}
		claims, err := auth.ParseAccessToken(cfg, parts[1])
		if err != nil {
			abort(c, domain.Errorf(domain.ErrUnauthenticated, "invalid or expired token"))
			return
		}
		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("role", claims.Role)
		c.Set("claims", claims)
		c.Next()
	}
}

// RequireRole checks that the authenticated user has one of the allowed roles.
func RequireRole(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			abort(c, domain.ErrUnauthenticated)
			return
		}
		for _, a := range allowed {
			if role == a {
				c.Next()
				return
			}
		}
		abort(c, domain.ErrForbidden)
	}
}

// GetUserID returns the authenticated user ID from context (must be used after AuthRequired).
func GetUserID(c *gin.Context) uint {
	return c.GetUint("user_id")
}

func GetRole(c *gin.Context) string {
	return c.GetString("role")
}
