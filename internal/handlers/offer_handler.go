package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spendlens/internal/services"
)

// OfferHandler serves partner offers to users and to admins.
type OfferHandler struct {
	offerService services.OfferServicer
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(offerService services.OfferServicer) *OfferHandler {
	return &OfferHandler{offerService: offerService}
}

// OfferRequest is the admin payload for creating or updating an offer.
// Omitted fields are left unchanged on update.
type OfferRequest struct {
	PlatformName       *string    `json:"platform_name" binding:"omitempty,min=1,max=100"`
	CategoryID         *string    `json:"category_id" binding:"omitempty,uuid"`
	Title              *string    `json:"title" binding:"omitempty,min=1,max=200"`
	DiscountPercentage *float64   `json:"discount_percentage" binding:"omitempty,gte=0,lte=100"`
	ImageURL           *string    `json:"image_url" binding:"omitempty,url"`
	RedirectURL        *string    `json:"redirect_url" binding:"omitempty,url"`
	ValidUntil         *time.Time `json:"valid_until"`
	IsActive           *bool      `json:"is_active"`
}

func (r OfferRequest) input() services.OfferInput {
	return services.OfferInput{
		PlatformName:       r.PlatformName,
		CategoryID:         r.CategoryID,
		Title:              r.Title,
		DiscountPercentage: r.DiscountPercentage,
		ImageURL:           r.ImageURL,
		RedirectURL:        r.RedirectURL,
		ValidUntil:         r.ValidUntil,
		IsActive:           r.IsActive,
	}
}

// Personalized returns offers for the caller's top spending category
// @Summary     Personalized offers
// @Description Live offers of the caller's top expense category. top_category is null and offers empty when there is none.
// @Tags        offers
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} services.PersonalizedOffers
// @Failure     500 {object} ErrorResponse "Aggregation failed"
// @Router      /offers/personalized [get]
func (h *OfferHandler) Personalized(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	offers, err := h.offerService.PersonalizedOffers(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, offers)
}

// ListOffers returns all offers
// @Summary     List offers (admin)
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Param       page   query int    false "Page number" default(1)
// @Param       limit  query int    false "Page size" default(10)
// @Param       search query string false "Search title and platform"
// @Success     200 {object} map[string]interface{} "data and meta"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /admin/offers [get]
func (h *OfferHandler) ListOffers(c *gin.Context) {
	page, err := h.offerService.ListOffers(c.Request.URL.Query())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// CreateOffer creates an offer
// @Summary     Create offer (admin)
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    AdminKey
// @Param       request body OfferRequest true "Offer"
// @Success     201 {object} models.Offer
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Category not found"
// @Router      /admin/offers [post]
func (h *OfferHandler) CreateOffer(c *gin.Context) {
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	offer, err := h.offerService.CreateOffer(req.input())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"offer": offer})
}

// UpdateOffer changes an offer
// @Summary     Update offer (admin)
// @Tags        admin
// @Accept      json
// @Produce     json
// @Security    AdminKey
// @Param       id      path string       true "Offer ID"
// @Param       request body OfferRequest true "Fields to change"
// @Success     200 {object} models.Offer
// @Failure     404 {object} ErrorResponse "Offer not found"
// @Router      /admin/offers/{id} [put]
func (h *OfferHandler) UpdateOffer(c *gin.Context) {
	offerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	offer, err := h.offerService.UpdateOffer(offerID, req.input())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"offer": offer})
}

// DeleteOffer removes an offer
// @Summary     Delete offer (admin)
// @Tags        admin
// @Produce     json
// @Security    AdminKey
// @Param       id path string true "Offer ID"
// @Success     200 {object} MessageResponse
// @Failure     404 {object} ErrorResponse "Offer not found"
// @Router      /admin/offers/{id} [delete]
func (h *OfferHandler) DeleteOffer(c *gin.Context) {
	offerID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.offerService.DeleteOffer(offerID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Offer deleted successfully"})
}
