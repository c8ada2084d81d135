package handlers

import (
	"encoding/json"
	"net/http"

	"PaymentGateway/internal/signature"

	"github.com/gin-gonic/gin"
)

// HMACHandler exposes signing helpers for partner integration debugging.
// Its answers are never used for trust decisions.
type HMACHandler struct{}

func NewHMACHandler() *HMACHandler {
	return &HMACHandler{}
}

type signRequest struct {
	Payload json.RawMessage `json:"payload" binding:"required"`
	Secret  string          `json:"secret" binding:"required"`
}

func (h *HMACHandler) Sign(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "payload and secret are required"})
		return
	}

	canonical, err := signature.Canonicalize(req.Payload)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	sig, err := signature.Sign(req.Payload, req.Secret)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"signature": sig, "canonical": string(canonical), "header": signature.HeaderName})
}

type verifyRequest struct {
	Payload   json.RawMessage `json:"payload" binding:"required"`
	Signature string          `json:"signature" binding:"required"`
	Secret    string          `json:"secret" binding:"required"`
}

func (h *HMACHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "payload, signature and secret are required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": signature.Verify(req.Payload, req.Signature, req.Secret)})
}
