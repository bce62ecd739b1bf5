package handler

import (
	"net/http"

	"skillmint/internal/domain"
	"skillmint/internal/middleware"
	"skillmint/internal/repository"
	"skillmint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ReferralHandler struct {
	users       *repository.UserRepository
	commissions *service.CommissionService
	log         logrus.FieldLogger
}

func NewReferralHandler(users *repository.UserRepository, commissions *service.CommissionService, log logrus.FieldLogger) *ReferralHandler {
	return &ReferralHandler{users: users, commissions: commissions, log: log}
}

// GetMyReferralCode returns the code buyers enter to credit the current user.
// GET /me/referral-code
func (h *ReferralHandler) GetMyReferralCode(c *gin.Context) {
	u, err := h.users.GetByID(middleware.GetUserID(c))
	if repository.IsNotFound(err) {
		err = domain.Errorf(domain.ErrNotFound, "user not found")
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":     u.ReferralCode,
		"eligible": u.CanReferOthers(),
	})
}

// GetMyCommissions lists commissions earned by the current user, optionally by status.
// GET /me/commissions
func (h *ReferralHandler) GetMyCommissions(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.commissions.List(c.Request.Context(), middleware.GetUserID(c), c.Query("status"), limit, offset(page, limit))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}
