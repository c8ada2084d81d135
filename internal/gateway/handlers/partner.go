package handlers

import (
	"errors"
	"net/http"

	"PaymentGateway/internal/domain/partner"

	"github.com/gin-gonic/gin"
)

type PartnerHandler struct {
	registry *partner.Registry
}

func NewPartnerHandler(r *partner.Registry) *PartnerHandler {
	return &PartnerHandler{registry: r}
}

type registerRequest struct {
	Name       string   `json:"name"`
	WebhookURL string   `json:"webhookUrl"`
	Events     []string `json:"eventosSuscritos"`
}

func (h *PartnerHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	p, err := h.registry.Register(c.Request.Context(), partner.NewPartner{
		Name:       req.Name,
		WebhookURL: req.WebhookURL,
		Events:     req.Events,
	})
	if err != nil {
		switch {
		case errors.Is(err, partner.ErrNoSubscriptions), errors.Is(err, partner.ErrInvalidPartner):
			c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		case errors.Is(err, partner.ErrAlreadyExists):
			c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, p)
}

func (h *PartnerHandler) List(c *gin.Context) {
	var query partner.ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	partners, err := h.registry.Find(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"partners": partners, "count": len(partners)})
}

func (h *PartnerHandler) Get(c *gin.Context) {
	p, err := h.registry.GetByID(c.Request.Context(), c.Param("partner_id"))
	if err != nil {
		if errors.Is(err, partner.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Partner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, p.Summary())
}

func (h *PartnerHandler) Delete(c *gin.Context) {
	id := c.Param("partner_id")

	removed, err := h.registry.Delete(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"message": "Partner not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Partner deleted", "id": id})
}

type statusRequest struct {
	IsActive *bool `json:"isActive"`
}

func (h *PartnerHandler) SetStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "isActive (boolean) is required"})
		return
	}

	s, err := h.registry.SetActive(c.Request.Context(), c.Param("partner_id"), *req.IsActive)
	if err != nil {
		if errors.Is(err, partner.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Partner not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, s)
}
