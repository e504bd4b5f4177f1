package bidding

import "sync"

// listingLocks hands out one mutex per listing. Entries are reference counted
// and dropped when the last holder or waiter releases, so the map only holds
// listings with bids in flight. The registry mutex guards the map only and is
// never held while a listing lock is held by the caller.
type listingLocks struct {
	mu    sync.Mutex
	locks map[string]*listingLock
}

type listingLock struct {
	mu   sync.Mutex
	refs int
}

func newListingLocks() *listingLocks {
	return &listingLocks{locks: make(map[string]*listingLock)}
}

// lock blocks until the listing's mutex is held and returns its release func.
func (l *listingLocks) lock(listingID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[listingID]
	if !ok {
		lk = &listingLock{}
		l.locks[listingID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()

	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, listingID)
		}
		l.mu.Unlock()
	}
}

// size is the number of listings currently tracked.
func (l *listingLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
