package lifecycle

import (
	"testing"
	"time"

	"bidout-auction/internal/models"

	"github.com/stretchr/testify/require"
)

func newListing(active bool, closing *time.Time) models.Listing {
	return models.Listing{ListingID: "listing1", OwnerID: "owner", Active: active, ClosingDate: closing}
}

func at(t time.Time) *time.Time { return &t }

func TestIsOpen(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		listing models.Listing
		want    bool
		status  Status
	}{
		{name: "active_future_close", listing: newListing(true, at(now.Add(time.Hour))), want: true, status: StatusOpen},
		{name: "active_no_close", listing: newListing(true, nil), want: true, status: StatusOpen},
		{name: "inactive_future_close", listing: newListing(false, at(now.Add(time.Hour))), want: false, status: StatusClosed},
		{name: "inactive_past_close", listing: newListing(false, at(now.Add(-time.Hour))), want: false, status: StatusClosed},
		{name: "active_closing_exactly_now", listing: newListing(true, at(now)), want: false, status: StatusExpired},
		{name: "active_past_close", listing: newListing(true, at(now.Add(-time.Second))), want: false, status: StatusExpired},
		{name: "active_one_nanosecond_left", listing: newListing(true, at(now.Add(time.Nanosecond))), want: true, status: StatusOpen},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, IsOpen(tc.listing, now))
			require.Equal(t, tc.status, Evaluate(tc.listing, now))
		})
	}
}

func TestTimeLeftSeconds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, int64(90), TimeLeftSeconds(newListing(true, at(now.Add(90*time.Second))), now))
	require.Equal(t, int64(-30), TimeLeftSeconds(newListing(true, at(now.Add(-30*time.Second))), now))
	require.Equal(t, int64(0), TimeLeftSeconds(newListing(true, nil), now))

	// partial seconds round down, also past the closing date
	require.Equal(t, int64(1), TimeLeftSeconds(newListing(true, at(now.Add(1500*time.Millisecond))), now))
	require.Equal(t, int64(-1), TimeLeftSeconds(newListing(true, at(now.Add(-500*time.Millisecond))), now))
	require.Equal(t, int64(-2), TimeLeftSeconds(newListing(true, at(now.Add(-1500*time.Millisecond))), now))

	view := View(newListing(true, at(now.Add(time.Minute))), now)
	require.True(t, view.Open)
	require.Equal(t, int64(60), view.TimeLeftSeconds)
	require.Equal(t, "listing1", view.ListingID)
}
