package handlers

import (
	"errors"
	"net/http"

	"PaymentGateway/internal/domain/partner"
	"PaymentGateway/internal/inbound"

	"github.com/gin-gonic/gin"
)

type InboundHandler struct {
	verifier *inbound.Verifier
}

func NewInboundHandler(v *inbound.Verifier) *InboundHandler {
	return &InboundHandler{verifier: v}
}

func (h *InboundHandler) Receive(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Unable to read body"})
		return
	}

	evt, err := h.verifier.Handle(c.Request.Context(), c.Request.Header, payload)
	if err != nil {
		var sigErr *inbound.SignatureError
		switch {
		case errors.As(err, &sigErr):
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Signature verification failed", "reason": sigErr.Reason})
		case errors.Is(err, inbound.ErrMalformed), errors.Is(err, inbound.ErrMissingPartnerID):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		case errors.Is(err, partner.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "Partner not found"})
		case errors.Is(err, inbound.ErrInactive), errors.Is(err, inbound.ErrNotSubscribed):
			c.JSON(http.StatusForbidden, gin.H{"message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "partnerId": evt.PartnerID, "type": evt.Type})
}
