package handler

import (
	"errors"
	"net/http"

	"starpay/internal/domain/pricing/service"
	"starpay/pkg/response"

	"github.com/gin-gonic/gin"
)

type PricingHandler struct {
	service service.PricingService
}

func NewPricingHandler(s service.PricingService) *PricingHandler {
	return &PricingHandler{service: s}
}

// Quote returns the current unit price for a tuple; the front-end shows it
// before the user commits to an order.
func (h *PricingHandler) Quote(c *gin.Context) {
	kind := c.Query("itemKind")
	currency := c.Query("currency")
	botID := c.Query("botId")
	if kind == "" || currency == "" || botID == "" {
		response.Error(c, http.StatusBadRequest, response.ErrInvalidParam, "itemKind, currency and botId are required")
		return
	}

	price, err := h.service.Quote(c.Request.Context(), kind, currency, botID)
	if err != nil {
		if errors.Is(err, service.ErrRuleNotConfigured) {
			response.Error(c, http.StatusNotFound, response.ErrPriceUnavailable, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, err.Error())
		return
	}

	response.Success(c, gin.H{
		"itemKind": kind,
		"currency": currency,
		"price":    price,
	})
}
