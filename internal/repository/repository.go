package repository

import (
	"bidout-auction/internal/biddingerrors"
	model "bidout-auction/internal/models"
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"
)

//go:generate mockgen -destination=mock_repository.go -package=repository bidout-auction/internal/repository AuctionDB

// AuctionDB is the listing state store and bid ledger of the auction system.
// Commit applies a bid upsert and the listing update as one atomic unit.
type AuctionDB interface {
	GetListing(ctx context.Context, listingID string) (model.Listing, error)
	GetListingBySlug(ctx context.Context, slug string) (model.Listing, error)
	CreateListing(ctx context.Context, listing model.Listing) error
	SetListingActive(ctx context.Context, listingID string, active bool) (model.Listing, error)
	FindBid(ctx context.Context, listingID, userID string) (model.Bid, bool, error)
	Commit(ctx context.Context, commit model.BidCommit) error
	GetBidsByListing(ctx context.Context, listingID string, limit int) ([]model.Bid, error)
	GetListingsByUser(ctx context.Context, userID string) ([]model.Listing, error)
}

const btreeDegree = 8

// rankedBid orders a listing's bids by amount, highest first.
type rankedBid struct {
	bid *model.Bid
}

func rankedLess(a, b rankedBid) bool {
	if c := a.bid.Amount.Cmp(b.bid.Amount); c != 0 {
		return c > 0
	}
	return a.bid.UserID < b.bid.UserID
}

// listingRecord holds one listing and its ledger. Its mutex is independent
// of every other listing's.
type listingRecord struct {
	mu      sync.RWMutex
	listing model.Listing
	bids    map[string]*model.Bid // key: userID
	ranked  *btree.BTreeG[rankedBid]
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu       sync.RWMutex
	listings map[string]*listingRecord // key: listingID
	slugs    map[string]string         // key: slug -> value: listingID

	userMu       sync.RWMutex
	userListings map[string][]string // key: userID -> value: listingIDs the user has bid on
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		listings:     make(map[string]*listingRecord),
		slugs:        make(map[string]string),
		userListings: make(map[string][]string),
	}
}

func (r *MemoryRepo) record(listingID string) (*listingRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.listings[listingID]
	if !ok {
		return nil, fmt.Errorf("listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}
	return rec, nil
}

// GetListing returns a snapshot of a listing
func (r *MemoryRepo) GetListing(ctx context.Context, listingID string) (model.Listing, error) {
	rec, err := r.record(listingID)
	if err != nil {
		return model.Listing{}, fmt.Errorf("get listing: %w", err)
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()
	return cloneListing(rec.listing), nil
}

// GetListingBySlug resolves a slug to a listing snapshot
func (r *MemoryRepo) GetListingBySlug(ctx context.Context, slug string) (model.Listing, error) {
	r.mu.RLock()
	id, ok := r.slugs[slug]
	r.mu.RUnlock()
	if !ok {
		return model.Listing{}, fmt.Errorf("get listing by slug %q: %w", slug, biddingerrors.ErrListingNotFound)
	}
	return r.GetListing(ctx, id)
}

// CreateListing stores a new listing. The slug must be unused.
func (r *MemoryRepo) CreateListing(ctx context.Context, listing model.Listing) error {
	if listing.ListingID == "" || listing.Slug == "" {
		return fmt.Errorf("create listing: %w - missing id or slug", biddingerrors.ErrInvalidListing)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.slugs[listing.Slug]; ok {
		return fmt.Errorf("create listing %q: %w", listing.Slug, biddingerrors.ErrSlugTaken)
	}
	if _, ok := r.listings[listing.ListingID]; ok {
		return fmt.Errorf("create listing %s: %w - duplicate id", listing.ListingID, biddingerrors.ErrInvalidListing)
	}

	r.listings[listing.ListingID] = &listingRecord{
		listing: cloneListing(listing),
		bids:    make(map[string]*model.Bid),
		ranked:  btree.NewG[rankedBid](btreeDegree, rankedLess),
	}
	r.slugs[listing.Slug] = listing.ListingID
	return nil
}

// SetListingActive flips the manual active flag and bumps the version
func (r *MemoryRepo) SetListingActive(ctx context.Context, listingID string, active bool) (model.Listing, error) {
	rec, err := r.record(listingID)
	if err != nil {
		return model.Listing{}, fmt.Errorf("set listing active: %w", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.listing.Active = active
	rec.listing.Version++
	return cloneListing(rec.listing), nil
}

// FindBid returns the bid row for (user, listing) if one exists
func (r *MemoryRepo) FindBid(ctx context.Context, listingID, userID string) (model.Bid, bool, error) {
	rec, err := r.record(listingID)
	if err != nil {
		return model.Bid{}, false, fmt.Errorf("find bid: %w", err)
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	bid, ok := rec.bids[userID]
	if !ok {
		return model.Bid{}, false, nil
	}
	return *bid, true, nil
}

// Commit upserts the bid and replaces the listing state in one step. It
// returns ErrStorageConflict if the listing version or the existence of the
// bidder's row changed since the caller read them.
func (r *MemoryRepo) Commit(ctx context.Context, c model.BidCommit) error {
	if c.Bid.ListingID != c.Listing.ListingID {
		return fmt.Errorf("commit: %w - bid and listing mismatch", biddingerrors.ErrInvalidBid)
	}

	rec, err := r.record(c.Listing.ListingID)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.listing.Version != c.ExpectedVersion {
		return fmt.Errorf("commit listing %s at version %d (stored %d): %w",
			c.Listing.ListingID, c.ExpectedVersion, rec.listing.Version, biddingerrors.ErrStorageConflict)
	}
	existing, exists := rec.bids[c.Bid.UserID]
	if exists == c.NewBidder {
		return fmt.Errorf("commit bid row for user %s on listing %s: %w",
			c.Bid.UserID, c.Listing.ListingID, biddingerrors.ErrStorageConflict)
	}

	if exists {
		rec.ranked.Delete(rankedBid{bid: existing})
	}
	bid := c.Bid
	rec.bids[bid.UserID] = &bid
	rec.ranked.ReplaceOrInsert(rankedBid{bid: &bid})

	listing := cloneListing(c.Listing)
	listing.Version = c.ExpectedVersion + 1
	rec.listing = listing

	if c.NewBidder {
		r.userMu.Lock()
		r.userListings[bid.UserID] = append(r.userListings[bid.UserID], bid.ListingID)
		r.userMu.Unlock()
	}
	return nil
}

// GetBidsByListing returns up to limit bids, highest amount first. A
// non-positive limit returns every bid.
func (r *MemoryRepo) GetBidsByListing(ctx context.Context, listingID string, limit int) ([]model.Bid, error) {
	rec, err := r.record(listingID)
	if err != nil {
		return nil, fmt.Errorf("get bids by listing: %w", err)
	}

	rec.mu.RLock()
	defer rec.mu.RUnlock()

	bids := make([]model.Bid, 0, rec.ranked.Len())
	rec.ranked.Ascend(func(item rankedBid) bool {
		bids = append(bids, *item.bid)
		return limit <= 0 || len(bids) < limit
	})
	return bids, nil
}

// GetListingsByUser returns all listings a user has bid on
func (r *MemoryRepo) GetListingsByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	r.userMu.RLock()
	ids := append([]string(nil), r.userListings[userID]...)
	r.userMu.RUnlock()

	listings := make([]model.Listing, 0, len(ids))
	for _, id := range ids {
		listing, err := r.GetListing(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get listings for user %s: %w", userID, err)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func cloneListing(l model.Listing) model.Listing {
	if l.ClosingDate != nil {
		closing := *l.ClosingDate
		l.ClosingDate = &closing
	}
	return l
}
