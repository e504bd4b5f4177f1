package handler

import (
	"net/http"

	bidding "bidout-auction/internal/biddingService"
	"bidout-auction/services/bidding/helpers"
	"bidout-auction/utils"

	"github.com/gin-gonic/gin"
)

// CreateListingHandler handles POST /listings
func (h *BiddingHandler) CreateListingHandler(c *gin.Context) {
	user, _ := helpers.CurrentUser(c)

	var req helpers.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateListingHandler", err)
		return
	}

	view, err := h.service.CreateListing(c.Request.Context(), user, bidding.NewListing{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		ClosingDate: req.ClosingDate,
	})
	if err != nil {
		respondError(c, "CreateListingHandler", err, map[string]any{"user_id": user.UserID, "name": req.Name})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewListingResponse(view), "Listing created successfully")
	helpers.LogSuccess("CreateListingHandler", "listing created", map[string]any{
		"listing_id": view.ListingID,
		"slug":       view.Slug,
		"owner_id":   user.UserID,
	})
}

// GetListingHandler handles GET /listings/:slug
func (h *BiddingHandler) GetListingHandler(c *gin.Context) {
	slug := c.Param("slug")
	view, err := h.service.GetListing(c.Request.Context(), slug)
	if err != nil {
		respondError(c, "GetListingHandler", err, map[string]any{"slug": slug})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewListingResponse(view), "Listing details fetched")
}

// SetActiveHandler handles PATCH /listings/:slug/active
func (h *BiddingHandler) SetActiveHandler(c *gin.Context) {
	user, _ := helpers.CurrentUser(c)
	slug := c.Param("slug")

	var req helpers.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "SetActiveHandler", err)
		return
	}

	view, err := h.service.SetListingActive(c.Request.Context(), slug, user, *req.Active)
	if err != nil {
		respondError(c, "SetActiveHandler", err, map[string]any{"slug": slug, "user_id": user.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewListingResponse(view), "Listing updated")
	helpers.LogSuccess("SetActiveHandler", "listing updated", map[string]any{
		"listing_id": view.ListingID,
		"active":     view.Active,
	})
}
