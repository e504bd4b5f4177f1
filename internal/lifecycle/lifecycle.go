// Package lifecycle derives whether a listing currently accepts bids. Every
// function here is a pure function of the listing and the supplied time.
package lifecycle

import (
	"time"

	"bidout-auction/internal/models"
)

// Status is the derived auction state of a listing at a given instant.
type Status string

const (
	StatusOpen    Status = "open"
	StatusClosed  Status = "closed"  // owner deactivated the listing
	StatusExpired Status = "expired" // closing date reached
)

// IsOpen returns false if the listing is inactive or if it has a closing date
// and now is at or past it.
func IsOpen(l models.Listing, now time.Time) bool {
	if !l.Active {
		return false
	}
	if l.ClosingDate != nil && !now.Before(*l.ClosingDate) {
		return false
	}
	return true
}

// Evaluate classifies the listing. A manual close wins over expiry.
func Evaluate(l models.Listing, now time.Time) Status {
	switch {
	case !l.Active:
		return StatusClosed
	case !IsOpen(l, now):
		return StatusExpired
	default:
		return StatusOpen
	}
}

// TimeLeftSeconds is closing_date - now floored to whole seconds, negative
// once the closing date has passed. Listings without a closing date report 0.
func TimeLeftSeconds(l models.Listing, now time.Time) int64 {
	if l.ClosingDate == nil {
		return 0
	}
	left := l.ClosingDate.Sub(now)
	secs := int64(left / time.Second)
	if left%time.Second < 0 {
		secs--
	}
	return secs
}

// View attaches the derived auction window to a listing.
func View(l models.Listing, now time.Time) models.ListingView {
	return models.ListingView{
		Listing:         l,
		TimeLeftSeconds: TimeLeftSeconds(l, now),
		Open:            IsOpen(l, now),
	}
}
