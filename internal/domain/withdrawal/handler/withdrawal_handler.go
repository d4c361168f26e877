package handler

import (
	"errors"
	"net/http"

	"starpay/internal/domain/withdrawal/service"
	"starpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WithdrawalHandler struct {
	service service.WithdrawalService
}

func NewWithdrawalHandler(s service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{service: s}
}

type RequestInput struct {
	TgUserID  int64  `json:"tgUserId" binding:"required"`
	Amount    string `json:"amount" binding:"required"`
	ToAddress string `json:"toAddress" binding:"required"`
}

// Request opens a withdrawal of referral balance to an external address.
func (h *WithdrawalHandler) Request(c *gin.Context) {
	var input RequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	amount, err := decimal.NewFromString(input.Amount)
	if err != nil || amount.Sign() <= 0 {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "amount must be a positive decimal")
		return
	}

	w, err := h.service.Request(c.Request.Context(), input.TgUserID, amount, input.ToAddress)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAmountOutOfRange):
			response.Error(c, http.StatusBadRequest, response.ErrAmountOutOfRange, err.Error())
		case errors.Is(err, service.ErrInsufficientBalance):
			response.Fail(c, response.ErrInsufficientBalance, err.Error())
		case errors.Is(err, gorm.ErrRecordNotFound):
			response.Error(c, http.StatusNotFound, response.ErrInvalidParam, "user not found")
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}

	response.Success(c, w)
}

// GetWithdrawal returns one withdrawal; the front-end polls it for status.
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	w, err := h.service.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrWithdrawalNotFound, "withdrawal not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, w)
}
