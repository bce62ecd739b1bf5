package middleware

import (
	"skillmint/internal/domain"

	"github.com/gin-gonic/gin"
)

// AdminRequired checks that the authenticated user has the admin role.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != domain.RoleAdmin {
			abort(c, domain.Errorf(domain.ErrForbidden, "admin access required"))
			return
		}
		c.Next()
	}
}
