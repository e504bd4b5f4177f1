package handler

import (
	"context"
	"fmt"
	"net/http"

	bidding "bidout-auction/internal/biddingService"
	"bidout-auction/internal/biddingerrors"
	model "bidout-auction/internal/models"
	"bidout-auction/services/bidding/helpers"
	"bidout-auction/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mock_bidding_handler.go -package=handler bidout-auction/services/bidding/handler BiddingServiceInterface

type BiddingServiceInterface interface {
	CreateListing(ctx context.Context, owner model.User, in bidding.NewListing) (model.ListingView, error)
	GetListing(ctx context.Context, slug string) (model.ListingView, error)
	SetListingActive(ctx context.Context, slug string, owner model.User, active bool) (model.ListingView, error)
	PlaceBid(ctx context.Context, slug string, bidder model.User, amount decimal.Decimal) (model.CommittedBid, error)
	GetListingBids(ctx context.Context, slug string) (model.ListingView, []model.Bid, error)
	GetOwnerBids(ctx context.Context, slug string, owner model.User) (model.ListingView, []model.Bid, error)
	GetWinningBid(ctx context.Context, slug string) (model.Bid, error)
	GetListingsByUser(ctx context.Context, userID string) ([]model.ListingView, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// respondError maps err onto the response envelope. Bid rejections are
// expected outcomes and only logged at info.
func respondError(c *gin.Context, handlerName string, err error, fields map[string]any) {
	status, message := helpers.MapErrorToHTTP(err)
	utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)

	if fields == nil {
		fields = map[string]any{}
	}
	fields["handler"] = handlerName
	fields["error"] = err.Error()
	switch {
	case biddingerrors.IsRejection(err):
		utils.Info(handlerName+": bid rejected", fields)
	case status >= http.StatusInternalServerError:
		utils.Error(handlerName+": request failed", fields)
	default:
		utils.Warn(handlerName+": request failed", fields)
	}
}

// PlaceBidHandler handles POST /listings/:slug/bids
func (h *BiddingHandler) PlaceBidHandler(c *gin.Context) {
	user, _ := helpers.CurrentUser(c)
	slug := c.Param("slug")

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	committed, err := h.service.PlaceBid(c.Request.Context(), slug, user, req.Amount)
	if err != nil {
		respondError(c, "PlaceBidHandler", err, map[string]any{
			"slug":    slug,
			"user_id": user.UserID,
			"amount":  req.Amount.String(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewPlaceBidResponse(committed), "Bid added to listing")
	helpers.LogSuccess("PlaceBidHandler", "bid admitted", map[string]any{
		"bid_id":     committed.Bid.BidID,
		"listing_id": committed.Listing.ListingID,
		"user_id":    user.UserID,
		"amount":     committed.Bid.Amount.StringFixed(model.MoneyPlaces),
		"bids_count": committed.Listing.BidsCount,
	})
}

// GetBidsByListingHandler handles GET /listings/:slug/bids
func (h *BiddingHandler) GetBidsByListingHandler(c *gin.Context) {
	slug := c.Param("slug")
	listing, bids, err := h.service.GetListingBids(c.Request.Context(), slug)
	if err != nil {
		respondError(c, "GetBidsByListingHandler", err, map[string]any{"slug": slug})
		return
	}

	resp := helpers.ListingBidsResponse{
		Listing: helpers.NewListingResponse(listing),
		Bids:    helpers.NewBidResponses(bids),
	}
	utils.JSONResponse(c, http.StatusOK, resp, "Listing Bids fetched")
	helpers.LogSuccess("GetBidsByListingHandler", "bids retrieved successfully", map[string]any{
		"slug":  slug,
		"count": len(bids),
	})
}

// GetOwnerBidsHandler handles GET /auctioneer/listings/:slug/bids
func (h *BiddingHandler) GetOwnerBidsHandler(c *gin.Context) {
	user, _ := helpers.CurrentUser(c)
	slug := c.Param("slug")

	listing, bids, err := h.service.GetOwnerBids(c.Request.Context(), slug, user)
	if err != nil {
		respondError(c, "GetOwnerBidsHandler", err, map[string]any{"slug": slug, "user_id": user.UserID})
		return
	}

	resp := helpers.ListingBidsResponse{
		Listing: helpers.NewListingResponse(listing),
		Bids:    helpers.NewBidResponses(bids),
	}
	utils.JSONResponse(c, http.StatusOK, resp, "Listing Bids fetched")
	helpers.LogSuccess("GetOwnerBidsHandler", "bids retrieved successfully", map[string]any{
		"slug":  slug,
		"count": len(bids),
	})
}

// GetWinningBidHandler handles GET /listings/:slug/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	slug := c.Param("slug")
	bid, err := h.service.GetWinningBid(c.Request.Context(), slug)
	if err != nil {
		respondError(c, "GetWinningBidHandler", err, map[string]any{"slug": slug})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "winning bid retrieved successfully")
	helpers.LogSuccess("GetWinningBidHandler", "winning bid retrieved successfully", map[string]any{
		"bid_id":  bid.BidID,
		"slug":    slug,
		"user_id": bid.UserID,
		"amount":  bid.Amount.StringFixed(model.MoneyPlaces),
	})
}

// GetListingsByUserHandler handles GET /users/:user_id/listings
func (h *BiddingHandler) GetListingsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	views, err := h.service.GetListingsByUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "GetListingsByUserHandler", err, map[string]any{"user_id": userID})
		return
	}

	resp := make([]helpers.ListingResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, helpers.NewListingResponse(v))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "Listings fetched")
	helpers.LogSuccess("GetListingsByUserHandler", "listings retrieved successfully", map[string]any{
		"user_id":        userID,
		"listings_count": len(views),
	})
}
