package bidding

import (
	"bidout-auction/internal/biddingerrors"
	"bidout-auction/internal/lifecycle"
	"bidout-auction/internal/models"
	"bidout-auction/internal/repository"
	"bidout-auction/utils"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shopspring/decimal"
)

const (
	// commitAttempts bounds the optimistic commit: the first try plus one
	// retry from a fresh read.
	commitAttempts = 2

	// PublicBidsLimit is how many bids the public listing page shows.
	PublicBidsLimit = 3
)

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo  repository.AuctionDB
	clock clock.Clock
	locks *listingLocks
}

// Option configures a BiddingService
type Option func(*BiddingService)

// WithClock replaces the wall clock, mainly for tests
func WithClock(c clock.Clock) Option {
	return func(s *BiddingService) {
		s.clock = c
	}
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:  repo,
		clock: clock.New(),
		locks: newListingLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid resolves the listing by slug and runs bid admission against it
func (s *BiddingService) PlaceBid(ctx context.Context, slug string, bidder models.User, amount decimal.Decimal) (models.CommittedBid, error) {
	if slug == "" || bidder.UserID == "" {
		return models.CommittedBid{}, fmt.Errorf("service: %w - missing listing slug or bidder", biddingerrors.ErrInvalidBid)
	}
	if !models.IsValidAmount(amount) {
		return models.CommittedBid{}, fmt.Errorf("service: %w - amount %s must be between %s and %s with at most %d decimals",
			biddingerrors.ErrInvalidBid, amount, models.MinAmount, models.MaxAmount, models.MoneyPlaces)
	}

	listing, err := s.repo.GetListingBySlug(ctx, slug)
	if err != nil {
		return models.CommittedBid{}, fmt.Errorf("service: failed to resolve listing %q: %w", slug, err)
	}

	return s.Admit(ctx, listing, bidder, amount, s.clock.Now())
}

// Admit validates a bid against a resolved listing and commits it.
//
// The per-listing lock is held across the read, validation and commit, so
// bidders on the same listing in this process are serialized while other
// listings proceed independently. The listing is re-read once the lock is
// held; the caller's copy only identifies it. The commit itself is
// conditional on the listing version, so a writer in another process shows
// up as a conflict, which is re-validated once from a fresh read. A second
// conflict is reported as ErrNotHighEnough. Rejections are returned as
// *biddingerrors.BidRejection.
func (s *BiddingService) Admit(ctx context.Context, listing models.Listing, bidder models.User, amount decimal.Decimal, now time.Time) (models.CommittedBid, error) {
	unlock := s.locks.lock(listing.ListingID)
	defer unlock()

	listing, err := s.repo.GetListing(ctx, listing.ListingID)
	if err != nil {
		return models.CommittedBid{}, fmt.Errorf("service: failed to read listing under lock: %w", err)
	}

	for attempt := 1; ; attempt++ {
		if err := checkAdmission(listing, bidder, amount, now); err != nil {
			return models.CommittedBid{}, err
		}

		existing, found, err := s.repo.FindBid(ctx, listing.ListingID, bidder.UserID)
		if err != nil {
			return models.CommittedBid{}, fmt.Errorf("service: failed to look up bid for listing %s by user %s: %w",
				listing.ListingID, bidder.UserID, err)
		}

		commit := buildCommit(listing, existing, found, bidder, amount, now)
		err = s.repo.Commit(ctx, commit)
		if err == nil {
			committed := commit.Listing
			committed.Version = commit.ExpectedVersion + 1
			return models.CommittedBid{Bid: commit.Bid, Listing: committed}, nil
		}
		if !errors.Is(err, biddingerrors.ErrStorageConflict) {
			return models.CommittedBid{}, fmt.Errorf("service: failed to commit bid for listing %s by user %s: %w",
				listing.ListingID, bidder.UserID, err)
		}
		if attempt >= commitAttempts {
			return models.CommittedBid{}, biddingerrors.Reject(biddingerrors.ErrNotHighEnough, listing.ListingID,
				"listing kept changing during commit")
		}

		utils.Warn("service: bid commit conflicted, re-validating", map[string]any{
			"listing_id": listing.ListingID,
			"user_id":    bidder.UserID,
			"amount":     amount.StringFixed(models.MoneyPlaces),
			"version":    listing.Version,
		})

		listing, err = s.repo.GetListing(ctx, listing.ListingID)
		if err != nil {
			return models.CommittedBid{}, fmt.Errorf("service: failed to re-read listing after conflict: %w", err)
		}
	}
}

// checkAdmission applies the admission rules in order; the first failure wins.
func checkAdmission(listing models.Listing, bidder models.User, amount decimal.Decimal, now time.Time) error {
	switch {
	case bidder.UserID == listing.OwnerID:
		return biddingerrors.Reject(biddingerrors.ErrSelfBidNotAllowed, listing.ListingID, "")
	case !listing.Active:
		return biddingerrors.Reject(biddingerrors.ErrAuctionClosed, listing.ListingID, "")
	case !lifecycle.IsOpen(listing, now):
		return biddingerrors.Reject(biddingerrors.ErrAuctionExpired, listing.ListingID, "")
	case amount.LessThan(listing.StartingPrice):
		return biddingerrors.Reject(biddingerrors.ErrBelowStartingPrice, listing.ListingID,
			fmt.Sprintf("starting price is %s", listing.StartingPrice.StringFixed(models.MoneyPlaces)))
	case amount.LessThanOrEqual(listing.HighestBid):
		return biddingerrors.Reject(biddingerrors.ErrNotHighEnough, listing.ListingID,
			fmt.Sprintf("current highest bid is %s", listing.HighestBid.StringFixed(models.MoneyPlaces)))
	}
	return nil
}

// buildCommit derives the new bid row and listing state for an admitted bid.
// bids_count only grows for a bidder without an existing row.
func buildCommit(listing models.Listing, existing models.Bid, found bool, bidder models.User, amount decimal.Decimal, now time.Time) models.BidCommit {
	bid := existing
	if !found {
		bid = models.Bid{
			BidID:     utils.GenerateID(),
			ListingID: listing.ListingID,
			UserID:    bidder.UserID,
			CreatedAt: now.UTC(),
		}
	}
	if bidder.Username != "" {
		bid.Username = bidder.Username
	}
	bid.Amount = amount
	bid.UpdatedAt = now.UTC()

	expected := listing.Version
	listing.HighestBid = amount
	if !found {
		listing.BidsCount++
	}
	listing.UpdatedAt = now.UTC()

	return models.BidCommit{
		Listing:         listing,
		Bid:             bid,
		ExpectedVersion: expected,
		NewBidder:       !found,
	}
}

// GetListing returns a listing with its derived auction window
func (s *BiddingService) GetListing(ctx context.Context, slug string) (models.ListingView, error) {
	if slug == "" {
		return models.ListingView{}, fmt.Errorf("service: %w - empty listing slug", biddingerrors.ErrInvalidListing)
	}

	listing, err := s.repo.GetListingBySlug(ctx, slug)
	if err != nil {
		return models.ListingView{}, fmt.Errorf("service: failed to get listing %q: %w", slug, err)
	}
	return lifecycle.View(listing, s.clock.Now()), nil
}

// GetListingBids returns the public top bids of a listing, highest first
func (s *BiddingService) GetListingBids(ctx context.Context, slug string) (models.ListingView, []models.Bid, error) {
	listing, err := s.repo.GetListingBySlug(ctx, slug)
	if err != nil {
		return models.ListingView{}, nil, fmt.Errorf("service: failed to get listing %q: %w", slug, err)
	}
	return s.listingBids(ctx, listing, PublicBidsLimit)
}

// GetOwnerBids returns every bid of a listing to its owner
func (s *BiddingService) GetOwnerBids(ctx context.Context, slug string, owner models.User) (models.ListingView, []models.Bid, error) {
	listing, err := s.repo.GetListingBySlug(ctx, slug)
	if err != nil {
		return models.ListingView{}, nil, fmt.Errorf("service: failed to get listing %q: %w", slug, err)
	}
	if listing.OwnerID != owner.UserID {
		return models.ListingView{}, nil, fmt.Errorf("service: %w - listing %s", biddingerrors.ErrNotListingOwner, listing.ListingID)
	}
	return s.listingBids(ctx, listing, 0)
}

func (s *BiddingService) listingBids(ctx context.Context, listing models.Listing, limit int) (models.ListingView, []models.Bid, error) {
	bids, err := s.repo.GetBidsByListing(ctx, listing.ListingID, limit)
	if err != nil {
		return models.ListingView{}, nil, fmt.Errorf("service: failed to get bids for listing %s: %w", listing.ListingID, err)
	}
	return lifecycle.View(listing, s.clock.Now()), bids, nil
}

// GetWinningBid returns the current leading bid of a listing
func (s *BiddingService) GetWinningBid(ctx context.Context, slug string) (models.Bid, error) {
	listing, err := s.repo.GetListingBySlug(ctx, slug)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get listing %q: %w", slug, err)
	}
	_, bids, err := s.listingBids(ctx, listing, 1)
	if err != nil {
		return models.Bid{}, err
	}
	if len(bids) == 0 {
		return models.Bid{}, fmt.Errorf("service: listing %q: %w", slug, biddingerrors.ErrNoBids)
	}
	return bids[0], nil
}

// SetListingActive lets the owner close or reopen a listing manually
func (s *BiddingService) SetListingActive(ctx context.Context, slug string, owner models.User, active bool) (models.ListingView, error) {
	listing, err := s.repo.GetListingBySlug(ctx, slug)
	if err != nil {
		return models.ListingView{}, fmt.Errorf("service: failed to get listing %q: %w", slug, err)
	}
	if listing.OwnerID != owner.UserID {
		return models.ListingView{}, fmt.Errorf("service: %w - listing %s", biddingerrors.ErrNotListingOwner, listing.ListingID)
	}

	unlock := s.locks.lock(listing.ListingID)
	defer unlock()

	updated, err := s.repo.SetListingActive(ctx, listing.ListingID, active)
	if err != nil {
		return models.ListingView{}, fmt.Errorf("service: failed to set active=%t on listing %s: %w", active, listing.ListingID, err)
	}
	return lifecycle.View(updated, s.clock.Now()), nil
}

// GetListingsByUser returns all listings a user has placed bids on
func (s *BiddingService) GetListingsByUser(ctx context.Context, userID string) ([]models.ListingView, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	listings, err := s.repo.GetListingsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get listings for user %s: %w", userID, err)
	}

	now := s.clock.Now()
	views := make([]models.ListingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, lifecycle.View(l, now))
	}
	return views, nil
}
