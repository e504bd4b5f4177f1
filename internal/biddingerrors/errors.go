package biddingerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrListingNotFound = errors.New("listing not found")
	ErrSlugTaken       = errors.New("listing slug already taken")
	ErrStorageConflict = errors.New("listing changed concurrently")
	ErrNoBids          = errors.New("no bids found for listing")
)

// Admission rejections, in the order they are checked
var (
	ErrSelfBidNotAllowed  = errors.New("bidder owns the listing")
	ErrAuctionClosed      = errors.New("auction closed")
	ErrAuctionExpired     = errors.New("auction expired")
	ErrBelowStartingPrice = errors.New("bid below starting price")
	ErrNotHighEnough      = errors.New("bid not above highest bid")
)

// business logic errors
var (
	ErrInvalidBid      = errors.New("invalid bid")
	ErrInvalidListing  = errors.New("invalid listing")
	ErrNotListingOwner = errors.New("listing belongs to another user")
)

// BidRejection is an expected, final outcome of bid admission. It unwraps to
// one of the admission sentinels above and must not be retried.
type BidRejection struct {
	Reason    error
	ListingID string
	Detail    string
}

// Reject builds a BidRejection for the given reason.
func Reject(reason error, listingID, detail string) *BidRejection {
	return &BidRejection{Reason: reason, ListingID: listingID, Detail: detail}
}

func (r *BidRejection) Error() string {
	if r.Detail == "" {
		return fmt.Sprintf("bid rejected on listing %s: %v", r.ListingID, r.Reason)
	}
	return fmt.Sprintf("bid rejected on listing %s: %v - %s", r.ListingID, r.Reason, r.Detail)
}

func (r *BidRejection) Unwrap() error {
	return r.Reason
}

// IsRejection reports whether err carries an admission rejection rather than
// an infrastructure failure.
func IsRejection(err error) bool {
	var r *BidRejection
	return errors.As(err, &r)
}
