package handler

import (
	"net/http"
	"strconv"

	"skillmint/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// respondError maps err to its domain code and status. Anything without a
// code is logged and reported as STORE_UNAVAILABLE.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	e := domain.AsError(err)
	if e == nil {
		log.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		}).Error("unhandled error")
		e = domain.ErrStoreUnavailable
	}
	c.JSON(e.Status, gin.H{"code": e.Code, "error": e.Message})
}

// bindJSON decodes the body into dst and answers INVALID_INPUT on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": domain.ErrInvalidInput.Code, "error": err.Error()})
		return false
	}
	return true
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

func offset(page, limit int) int { return (page - 1) * limit }
