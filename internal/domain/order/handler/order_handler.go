package handler

import (
	"errors"
	"io"
	"net/http"

	"starpay/internal/clients/cryptopay"
	"starpay/internal/domain/order/service"
	"starpay/internal/pkg/config"
	"starpay/pkg/logger"
	"starpay/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OrderHandler struct {
	service service.OrderService
}

func NewOrderHandler(s service.OrderService) *OrderHandler {
	return &OrderHandler{service: s}
}

type CreateOrderInput struct {
	TgUserID  int64   `json:"tgUserId" binding:"required"`
	Username  *string `json:"username"`
	BotID     string  `json:"botId" binding:"required"`
	ItemKind  string  `json:"itemKind" binding:"required,oneof=stars premium ton"`
	Quantity  int64   `json:"quantity" binding:"required,gt=0"`
	Currency  string  `json:"currency" binding:"required"`
	Rail      string  `json:"rail" binding:"required,oneof=ton sbp crypto"`
	Recipient *string `json:"recipient"`
}

// CreateOrder opens a purchase and returns the payment instructions.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var input CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, err.Error())
		return
	}

	order, instr, err := h.service.Create(c.Request.Context(), service.CreateOrderInput{
		TgUserID:  input.TgUserID,
		Username:  input.Username,
		BotID:     input.BotID,
		ItemKind:  input.ItemKind,
		Quantity:  input.Quantity,
		Currency:  input.Currency,
		Rail:      input.Rail,
		Recipient: input.Recipient,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedRail):
			response.Error(c, http.StatusBadRequest, response.ErrUnsupportedRail, err.Error())
		case errors.Is(err, service.ErrInvalidQuantity),
			errors.Is(err, service.ErrUnknownItemKind),
			errors.Is(err, service.ErrMissingRecipient):
			response.Error(c, http.StatusBadRequest, response.ErrInvalidQuantity, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		}
		return
	}

	response.Success(c, gin.H{
		"order":        order,
		"instructions": instr,
	})
}

// GetOrder returns one order; the front-end polls it for status.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.service.GetByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "order not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, order)
}

// CryptoPayWebhook settles orders from the crypto-invoice provider's
// callback. The signature is checked before anything else; a bad digest is
// a 401 with no further processing.
func (h *OrderHandler) CryptoPayWebhook(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "unreadable body")
		return
	}

	data, ok := cryptopay.VerifyWebhook(raw, config.GlobalConfig.CryptoPay.PaymentKey)
	if !ok {
		logger.Log.Warn("webhook: signature rejected", zap.String("ip", c.ClientIP()))
		response.Error(c, http.StatusUnauthorized, response.ErrSignatureInvalid, "bad signature")
		return
	}

	orderID, _ := data["order_id"].(string)
	status, _ := data["status"].(string)
	if orderID == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "missing order_id")
		return
	}

	if !cryptopay.IsPaidStatus(status) {
		// Terminal failures and intermediate states are acknowledged so the
		// provider stops retrying; the sweeper handles expiry.
		response.Success(c, nil)
		return
	}

	if err := h.service.HandlePaid(c.Request.Context(), orderID, data); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.Error(c, http.StatusNotFound, response.ErrOrderNotFound, "order not found")
			return
		}
		// Non-2xx makes the provider retry; settlement is idempotent.
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}
	response.Success(c, nil)
}
