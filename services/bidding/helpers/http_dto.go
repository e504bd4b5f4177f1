package helpers

import (
	"time"

	model "bidout-auction/internal/models"

	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"money"`
}

type CreateListingRequest struct {
	Name        string          `json:"name" binding:"required,max=70"`
	Description string          `json:"desc" binding:"max=1000"`
	Price       decimal.Decimal `json:"price" binding:"money"`
	ClosingDate time.Time       `json:"closing_date" binding:"required"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

type BidResponse struct {
	BidID     string `json:"bid_id"`
	ListingID string `json:"listing_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ListingResponse struct {
	ListingID       string `json:"listing_id"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	Description     string `json:"desc"`
	OwnerID         string `json:"owner_id"`
	Price           string `json:"price"`
	HighestBid      string `json:"highest_bid"`
	BidsCount       int    `json:"bids_count"`
	ClosingDate     string `json:"closing_date,omitempty"`
	Active          bool   `json:"active"`
	Open            bool   `json:"open"`
	TimeLeftSeconds int64  `json:"time_left_seconds"`
	CreatedAt       string `json:"created_at"`
}

type PlaceBidResponse struct {
	Bid        BidResponse `json:"bid"`
	HighestBid string      `json:"highest_bid"`
	BidsCount  int         `json:"bids_count"`
}

type ListingBidsResponse struct {
	Listing ListingResponse `json:"listing"`
	Bids    []BidResponse   `json:"bids"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// NewBidResponse renders a bid for the API
func NewBidResponse(b model.Bid) BidResponse {
	return BidResponse{
		BidID:     b.BidID,
		ListingID: b.ListingID,
		UserID:    b.UserID,
		Username:  b.Username,
		Amount:    b.Amount.StringFixed(model.MoneyPlaces),
		CreatedAt: formatTime(b.CreatedAt),
		UpdatedAt: formatTime(b.UpdatedAt),
	}
}

// NewBidResponses renders bids in order; never nil
func NewBidResponses(bids []model.Bid) []BidResponse {
	resp := make([]BidResponse, 0, len(bids))
	for _, b := range bids {
		resp = append(resp, NewBidResponse(b))
	}
	return resp
}

// NewPlaceBidResponse renders an admitted bid with the listing totals it produced
func NewPlaceBidResponse(c model.CommittedBid) PlaceBidResponse {
	return PlaceBidResponse{
		Bid:        NewBidResponse(c.Bid),
		HighestBid: c.Listing.HighestBid.StringFixed(model.MoneyPlaces),
		BidsCount:  c.Listing.BidsCount,
	}
}

// NewListingResponse renders a listing with its auction window
func NewListingResponse(v model.ListingView) ListingResponse {
	resp := ListingResponse{
		ListingID:       v.ListingID,
		Slug:            v.Slug,
		Name:            v.Name,
		Description:     v.Description,
		OwnerID:         v.OwnerID,
		Price:           v.StartingPrice.StringFixed(model.MoneyPlaces),
		HighestBid:      v.HighestBid.StringFixed(model.MoneyPlaces),
		BidsCount:       v.BidsCount,
		Active:          v.Active,
		Open:            v.Open,
		TimeLeftSeconds: v.TimeLeftSeconds,
		CreatedAt:       formatTime(v.CreatedAt),
	}
	if v.ClosingDate != nil {
		resp.ClosingDate = formatTime(*v.ClosingDate)
	}
	return resp
}
