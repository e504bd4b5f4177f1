package bidding

import (
	"bidout-auction/internal/biddingerrors"
	model "bidout-auction/internal/models"
	"bidout-auction/internal/repository"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// seedListing stores openListing() in a fresh memory repo
func seedListing(t require.TestingT) (*BiddingService, *repository.MemoryRepo) {
	repo := repository.NewMemoryRepo()
	l := openListing()
	l.Version = 0
	require.NoError(t, repo.CreateListing(context.Background(), l))
	return NewBiddingService(repo, WithClock(fixedClock())), repo
}

func TestPlaceBid_Scenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, repo := seedListing(t)
	a := model.User{UserID: "userA", Username: "alice"}
	b := model.User{UserID: "userB", Username: "bob"}

	committed, err := service.PlaceBid(ctx, "vintage-camera", a, dec("1000.00"))
	require.NoError(t, err)
	require.Equal(t, 1, committed.Listing.BidsCount)
	require.True(t, committed.Listing.HighestBid.Equal(dec("1000")))
	firstID := committed.Bid.BidID

	committed, err = service.PlaceBid(ctx, "vintage-camera", a, dec("1500.00"))
	require.NoError(t, err)
	require.Equal(t, 1, committed.Listing.BidsCount)
	require.Equal(t, firstID, committed.Bid.BidID)

	_, err = service.PlaceBid(ctx, "vintage-camera", b, dec("1500.00"))
	require.ErrorIs(t, err, biddingerrors.ErrNotHighEnough)

	committed, err = service.PlaceBid(ctx, "vintage-camera", b, dec("2000.00"))
	require.NoError(t, err)
	require.Equal(t, 2, committed.Listing.BidsCount)
	require.True(t, committed.Listing.HighestBid.Equal(dec("2000")))

	bids, err := repo.GetBidsByListing(ctx, "listing1", 0)
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, "userB", bids[0].UserID)
	require.True(t, bids[1].Amount.Equal(dec("1500")))

	winning, err := service.GetWinningBid(ctx, "vintage-camera")
	require.NoError(t, err)
	require.Equal(t, "userB", winning.UserID)

	views, err := service.GetListingsByUser(ctx, "userA")
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, "vintage-camera", views[0].Slug)
}

func TestPlaceBid_ClosedListingIsImmutable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, repo := seedListing(t)

	_, err := service.PlaceBid(ctx, "vintage-camera", model.User{UserID: "userA"}, dec("1200.00"))
	require.NoError(t, err)
	_, err = service.SetListingActive(ctx, "vintage-camera", model.User{UserID: "owner"}, false)
	require.NoError(t, err)
	before, err := repo.GetListing(ctx, "listing1")
	require.NoError(t, err)

	_, err = service.PlaceBid(ctx, "vintage-camera", model.User{UserID: "userB"}, dec("9000.00"))
	require.ErrorIs(t, err, biddingerrors.ErrAuctionClosed)

	after, err := repo.GetListing(ctx, "listing1")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestPlaceBid_ExpiresAtClosingDate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := repository.NewMemoryRepo()
	l := openListing()
	l.Version = 0
	require.NoError(t, repo.CreateListing(ctx, l))

	clk := fixedClock()
	service := NewBiddingService(repo, WithClock(clk))

	clk.Add(24*time.Hour - time.Second)
	_, err := service.PlaceBid(ctx, "vintage-camera", model.User{UserID: "userA"}, dec("1000.00"))
	require.NoError(t, err)

	clk.Add(time.Second)
	_, err = service.PlaceBid(ctx, "vintage-camera", model.User{UserID: "userB"}, dec("5000.00"))
	require.ErrorIs(t, err, biddingerrors.ErrAuctionExpired)

	got, err := repo.GetListing(ctx, "listing1")
	require.NoError(t, err)
	require.True(t, got.HighestBid.Equal(dec("1000")))
	require.Equal(t, 1, got.BidsCount)

	view, err := service.GetListing(ctx, "vintage-camera")
	require.NoError(t, err)
	require.False(t, view.Open)
	require.Equal(t, int64(0), view.TimeLeftSeconds)
}

// Two bidders race on the same listing; whichever lands first, the higher
// amount ends up leading and only accepted bidders are counted.
func TestPlaceBid_ConcurrentBidders(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		service, repo := seedListing(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		bidders := []struct {
			user   model.User
			amount string
		}{
			{model.User{UserID: "userX"}, "1100.00"},
			{model.User{UserID: "userY"}, "1200.00"},
		}
		for j, b := range bidders {
			wg.Add(1)
			go func(j int, u model.User, amount string) {
				defer wg.Done()
				_, errs[j] = service.PlaceBid(ctx, "vintage-camera", u, dec(amount))
			}(j, b.user, b.amount)
		}
		wg.Wait()

		require.NoError(t, errs[1], "the higher bid is always admitted")
		accepted := 1
		if errs[0] == nil {
			accepted++
		} else {
			require.ErrorIs(t, errs[0], biddingerrors.ErrNotHighEnough)
		}

		got, err := repo.GetListing(ctx, "listing1")
		require.NoError(t, err)
		require.True(t, got.HighestBid.Equal(dec("1200")))
		require.Equal(t, accepted, got.BidsCount)
		require.Equal(t, uint64(accepted), got.Version)
	}
}

func TestPlaceBid_ManyConcurrentBidders(t *testing.T) {
	t.Parallel()

	service, repo := seedListing(t)
	ctx := context.Background()

	const bidders = 64
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted = map[string]decimal.Decimal{}
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := model.User{UserID: fmt.Sprintf("user%02d", i)}
			amount := dec("1000.00").Add(decimal.New(int64(i), 0))
			_, err := service.PlaceBid(ctx, "vintage-camera", user, amount)
			if err != nil {
				return
			}
			mu.Lock()
			accepted[user.UserID] = amount
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	got, err := repo.GetListing(ctx, "listing1")
	require.NoError(t, err)
	require.True(t, got.HighestBid.Equal(dec("1063.00")))
	require.Equal(t, len(accepted), got.BidsCount)
	require.Contains(t, accepted, "user63")

	bids, err := repo.GetBidsByListing(ctx, "listing1", 0)
	require.NoError(t, err)
	require.Len(t, bids, len(accepted))
	require.Equal(t, 0, service.locks.size())
}

// conflictCountingRepo counts commits the store rejects as stale
type conflictCountingRepo struct {
	*repository.MemoryRepo
	conflicts atomic.Int64
}

func (r *conflictCountingRepo) Commit(ctx context.Context, c model.BidCommit) error {
	err := r.MemoryRepo.Commit(ctx, c)
	if errors.Is(err, biddingerrors.ErrStorageConflict) {
		r.conflicts.Add(1)
	}
	return err
}

// Bidders in one process are serialized by the listing lock, so none of them
// commits against a listing version it read before taking the lock.
func TestPlaceBid_ConcurrentBiddersNeverConflictInProcess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &conflictCountingRepo{MemoryRepo: repository.NewMemoryRepo()}
	l := openListing()
	l.Version = 0
	require.NoError(t, repo.CreateListing(ctx, l))
	service := NewBiddingService(repo, WithClock(fixedClock()))

	const bidders = 32
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < bidders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			user := model.User{UserID: fmt.Sprintf("user%02d", i)}
			amount := dec("1000.00").Add(decimal.New(int64(i), 0))
			_, _ = service.PlaceBid(ctx, "vintage-camera", user, amount)
		}(i)
	}
	close(start)
	wg.Wait()

	require.Equal(t, int64(0), repo.conflicts.Load())

	got, err := repo.GetListing(ctx, "listing1")
	require.NoError(t, err)
	require.True(t, got.HighestBid.Equal(dec("1031.00")))
}

func TestPlaceBid_OtherListingsDoNotWait(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, repo := seedListing(t)
	other := openListing()
	other.ListingID, other.Slug, other.Version = "listing2", "film-camera", 0
	require.NoError(t, repo.CreateListing(ctx, other))

	release := service.locks.lock("listing1")
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := service.PlaceBid(ctx, "film-camera", model.User{UserID: "userA"}, dec("1000.00"))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bid on an unrelated listing blocked on another listing's lock")
	}
}

// Random bid sequences from a small pool of users, the owner included.
func TestPlaceBid_Properties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		service, repo := seedListing(t)
		users := []string{"owner", "userA", "userB", "userC", "userD"}

		highest := decimal.Zero
		seen := map[string]bool{}
		accepted := map[string]bool{}

		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			user := rapid.SampledFrom(users).Draw(t, "user")
			cents := rapid.Int64Range(90000, 200000).Draw(t, "cents")
			amount := decimal.New(cents, -2)

			committed, err := service.PlaceBid(ctx, "vintage-camera", model.User{UserID: user}, amount)
			switch {
			case user == "owner":
				require.ErrorIs(t, err, biddingerrors.ErrSelfBidNotAllowed)
			case err == nil:
				require.True(t, amount.GreaterThan(highest), "accepted %s after %s", amount, highest)
				require.False(t, seen[amount.String()], "amount %s accepted twice", amount)
				seen[amount.String()] = true
				highest = amount
				accepted[user] = true
				require.Equal(t, len(accepted), committed.Listing.BidsCount)
			default:
				require.True(t, biddingerrors.IsRejection(err), "unexpected error %v", err)
				require.True(t, amount.LessThan(dec("1000")) || amount.LessThanOrEqual(highest))
			}

			got, err := repo.GetListing(ctx, "listing1")
			require.NoError(t, err)
			require.True(t, got.HighestBid.Equal(highest))
			require.Equal(t, len(accepted), got.BidsCount)
		}

		bids, err := repo.GetBidsByListing(ctx, "listing1", 0)
		require.NoError(t, err)
		require.Len(t, bids, len(accepted))
		for i := 1; i < len(bids); i++ {
			require.True(t, bids[i-1].Amount.GreaterThan(bids[i].Amount))
		}
	})
}
