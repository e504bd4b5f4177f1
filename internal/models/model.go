package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits every monetary value carries.
const MoneyPlaces int32 = 2

var (
	// MinAmount is the smallest accepted price or bid amount.
	MinAmount = decimal.New(1, -MoneyPlaces)
	// MaxAmount is the largest amount that fits ten digits.
	MaxAmount = decimal.New(9999999999, -MoneyPlaces)
)

// IsValidAmount reports whether d lies within [MinAmount, MaxAmount] and has
// no more than MoneyPlaces fractional digits.
func IsValidAmount(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(MinAmount) && d.LessThanOrEqual(MaxAmount) && d.Round(MoneyPlaces).Equal(d)
}

// User represents a participant in the auction
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Listing represents an item open for auction bidding.
//
// HighestBid is zero until the first accepted bid and afterwards equals the
// amount of the most recently accepted bid. BidsCount is the number of
// distinct bidders, not the number of bid events.
type Listing struct {
	ListingID     string          `json:"listing_id"`
	OwnerID       string          `json:"owner_id"`
	Name          string          `json:"name"`
	Slug          string          `json:"slug"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"price"`
	HighestBid    decimal.Decimal `json:"highest_bid"`
	BidsCount     int             `json:"bids_count"`
	ClosingDate   *time.Time      `json:"closing_date"`
	Active        bool            `json:"active"`
	Version       uint64          `json:"version"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Bid is a user's single live offer on a listing. A repeat bid from the same
// user overwrites Amount instead of creating a second row.
type Bid struct {
	BidID     string          `json:"bid_id"`
	ListingID string          `json:"listing_id"`
	UserID    string          `json:"user_id"`
	Username  string          `json:"username"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BidCommit is the combined Bid upsert and Listing update applied as one unit.
type BidCommit struct {
	Listing         Listing // state to store; the store assigns Version
	Bid             Bid
	ExpectedVersion uint64
	NewBidder       bool // true when no row existed for (user, listing) at read time
}

// CommittedBid is returned to the caller after an accepted bid.
type CommittedBid struct {
	Bid     Bid     `json:"bid"`
	Listing Listing `json:"listing"`
}

// ListingView is a listing together with its derived auction window.
type ListingView struct {
	Listing
	TimeLeftSeconds int64 `json:"time_left_seconds"`
	Open            bool  `json:"open"`
}
