package bidding

import (
	"bidout-auction/internal/biddingerrors"
	"bidout-auction/internal/lifecycle"
	"bidout-auction/internal/models"
	"bidout-auction/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// NewListing carries the owner-supplied fields of a listing
type NewListing struct {
	Name        string
	Description string
	Price       decimal.Decimal
	ClosingDate time.Time
}

// CreateListing stores a new open listing owned by owner. The slug is derived
// from the name and gets a short id suffix when already taken.
func (s *BiddingService) CreateListing(ctx context.Context, owner models.User, in NewListing) (models.ListingView, error) {
	if owner.UserID == "" {
		return models.ListingView{}, fmt.Errorf("service: %w - missing owner", biddingerrors.ErrInvalidListing)
	}
	if strings.TrimSpace(in.Name) == "" {
		return models.ListingView{}, fmt.Errorf("service: %w - empty name", biddingerrors.ErrInvalidListing)
	}
	if !models.IsValidAmount(in.Price) {
		return models.ListingView{}, fmt.Errorf("service: %w - price %s must be between %s and %s with at most %d decimals",
			biddingerrors.ErrInvalidListing, in.Price, models.MinAmount, models.MaxAmount, models.MoneyPlaces)
	}

	now := s.clock.Now().UTC()
	if !in.ClosingDate.After(now) {
		return models.ListingView{}, fmt.Errorf("service: %w - closing date %s is not in the future",
			biddingerrors.ErrInvalidListing, in.ClosingDate.Format(time.RFC3339))
	}

	closing := in.ClosingDate.UTC()
	listing := models.Listing{
		ListingID:     utils.GenerateID(),
		OwnerID:       owner.UserID,
		Name:          strings.TrimSpace(in.Name),
		Slug:          Slugify(in.Name),
		Description:   in.Description,
		StartingPrice: in.Price,
		HighestBid:    decimal.Zero,
		ClosingDate:   &closing,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err := s.repo.CreateListing(ctx, listing)
	if errors.Is(err, biddingerrors.ErrSlugTaken) {
		listing.Slug = fmt.Sprintf("%s-%s", listing.Slug, utils.ShortID(listing.ListingID, 8))
		err = s.repo.CreateListing(ctx, listing)
	}
	if err != nil {
		return models.ListingView{}, fmt.Errorf("service: failed to create listing %q: %w", listing.Name, err)
	}

	return lifecycle.View(listing, now), nil
}

// Slugify lowercases name and joins its letter and digit runs with dashes
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	if b.Len() == 0 {
		return "listing"
	}
	return b.String()
}
