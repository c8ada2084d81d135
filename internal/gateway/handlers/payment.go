package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"PaymentGateway/internal/payment"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	adapter payment.Adapter
}

func NewPaymentHandler(adapter payment.Adapter) *PaymentHandler {
	return &PaymentHandler{adapter: adapter}
}

type payRequest struct {
	Amount    *float64 `json:"amount"`
	Reference *string  `json:"reference"`
}

func (h *PaymentHandler) Pay(c *gin.Context) {
	var req payRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount == nil || req.Reference == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "amount (number) and reference (string) are required"})
		return
	}

	intent, err := h.adapter.CreatePayment(c.Request.Context(), *req.Amount, *req.Reference)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidAmount) || errors.Is(err, payment.ErrInvalidReference) {
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
			return
		}
		slog.ErrorContext(c.Request.Context(), "Failed to create payment", "reference", *req.Reference, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, intent)
}
