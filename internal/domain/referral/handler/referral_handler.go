package handler

import (
	"errors"
	"net/http"

	"starpay/internal/domain/referral/service"
	"starpay/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReferralHandler struct {
	service service.ReferralService
}

func NewReferralHandler(s service.ReferralService) *ReferralHandler {
	return &ReferralHandler{service: s}
}

type LinkInput struct {
	ReferrerTgID int64 `json:"referrerTgId" binding:"required"`
	RefereeTgID  int64 `json:"refereeTgId" binding:"required"`
}

// Link binds a referee to a referrer. Called by the front-end when a user
// arrives through a referral deep link.
func (h *ReferralHandler) Link(c *gin.Context) {
	var input LinkInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	err := h.service.Link(c.Request.Context(), input.ReferrerTgID, input.RefereeTgID)
	if err != nil {
		if errors.Is(err, service.ErrSelfReferral) {
			response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, nil)
}
