package repository

import (
	"bidout-auction/internal/biddingerrors"
	model "bidout-auction/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
)

const (
	dialTimeout  = 2 * time.Second
	readTimeout  = 1500 * time.Millisecond
	writeTimeout = 1500 * time.Millisecond

	// setActiveAttempts bounds the WATCH/EXEC loop of SetListingActive.
	setActiveAttempts = 5
)

// Key layout, all under one prefix:
//
//	<prefix>:listing:<id>          JSON listing
//	<prefix>:slug:<slug>           listing id
//	<prefix>:bids:<id>             hash userID -> JSON bid
//	<prefix>:rank:<id>             zset userID scored by amount
//	<prefix>:user:<userID>         list of listing ids the user has bid on
type redisKeys struct {
	prefix string
}

func (k redisKeys) listing(id string) string { return k.prefix + ":listing:" + id }
func (k redisKeys) slug(slug string) string { return k.prefix + ":slug:" + slug }
func (k redisKeys) bids(id string) string { return k.prefix + ":bids:" + id }
func (k redisKeys) rank(id string) string { return k.prefix + ":rank:" + id }
func (k redisKeys) user(userID string) string { return k.prefix + ":user:" + userID }

// RedisRepo implements AuctionDB on Redis. Commit is optimistic: it WATCHes
// the listing and its bid hash, checks the expected version and runs the
// writes in MULTI/EXEC, so a concurrent writer aborts the transaction.
type RedisRepo struct {
	pool *redis.Pool
	keys redisKeys
}

// NewRedisPool dials addr lazily through a bounded pool
func NewRedisPool(addr, password string, maxIdle, maxActive int) *redis.Pool {
	opts := []redis.DialOption{
		redis.DialConnectTimeout(dialTimeout),
		redis.DialReadTimeout(readTimeout),
		redis.DialWriteTimeout(writeTimeout),
	}
	if password != "" {
		opts = append(opts, redis.DialPassword(password))
	}

	return &redis.Pool{
		MaxIdle:     maxIdle,
		MaxActive:   maxActive,
		Wait:        true,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr, opts...)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Second {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// NewRedisRepo creates a repository storing keys under prefix
func NewRedisRepo(pool *redis.Pool, prefix string) *RedisRepo {
	if prefix == "" {
		prefix = "auction"
	}
	return &RedisRepo{pool: pool, keys: redisKeys{prefix: prefix}}
}

// Ping checks connectivity
func (r *RedisRepo) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *RedisRepo) conn(ctx context.Context) (redis.Conn, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("redis get conn: %w", err)
	}
	return conn, nil
}

func readListing(conn redis.Conn, key, id string) (model.Listing, error) {
	raw, err := redis.Bytes(conn.Do("GET", key))
	if errors.Is(err, redis.ErrNil) {
		return model.Listing{}, fmt.Errorf("listing %s: %w", id, biddingerrors.ErrListingNotFound)
	}
	if err != nil {
		return model.Listing{}, fmt.Errorf("redis get listing %s: %w", id, err)
	}

	var listing model.Listing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return model.Listing{}, fmt.Errorf("decode listing %s: %w", id, err)
	}
	return listing, nil
}

// GetListing returns a snapshot of a listing
func (r *RedisRepo) GetListing(ctx context.Context, listingID string) (model.Listing, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return model.Listing{}, err
	}
	defer conn.Close()

	listing, err := readListing(conn, r.keys.listing(listingID), listingID)
	if err != nil {
		return model.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// GetListingBySlug resolves a slug to a listing snapshot
func (r *RedisRepo) GetListingBySlug(ctx context.Context, slug string) (model.Listing, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return model.Listing{}, err
	}
	defer conn.Close()

	id, err := redis.String(conn.Do("GET", r.keys.slug(slug)))
	if errors.Is(err, redis.ErrNil) {
		return model.Listing{}, fmt.Errorf("get listing by slug %q: %w", slug, biddingerrors.ErrListingNotFound)
	}
	if err != nil {
		return model.Listing{}, fmt.Errorf("redis get slug %q: %w", slug, err)
	}

	listing, err := readListing(conn, r.keys.listing(id), id)
	if err != nil {
		return model.Listing{}, fmt.Errorf("get listing by slug: %w", err)
	}
	return listing, nil
}

// CreateListing stores a new listing. The slug is claimed with SETNX.
func (r *RedisRepo) CreateListing(ctx context.Context, listing model.Listing) error {
	if listing.ListingID == "" || listing.Slug == "" {
		return fmt.Errorf("create listing: %w - missing id or slug", biddingerrors.ErrInvalidListing)
	}

	raw, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("encode listing %s: %w", listing.ListingID, err)
	}

	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	claimed, err := redis.Bool(conn.Do("SETNX", r.keys.slug(listing.Slug), listing.ListingID))
	if err != nil {
		return fmt.Errorf("redis claim slug %q: %w", listing.Slug, err)
	}
	if !claimed {
		return fmt.Errorf("create listing %q: %w", listing.Slug, biddingerrors.ErrSlugTaken)
	}

	created, err := redis.Bool(conn.Do("SETNX", r.keys.listing(listing.ListingID), raw))
	if err != nil {
		return fmt.Errorf("redis set listing %s: %w", listing.ListingID, err)
	}
	if !created {
		_, _ = conn.Do("DEL", r.keys.slug(listing.Slug))
		return fmt.Errorf("create listing %s: %w - duplicate id", listing.ListingID, biddingerrors.ErrInvalidListing)
	}
	return nil
}

// SetListingActive flips the manual active flag and bumps the version. It
// retries while other writers win the WATCH race, up to setActiveAttempts
// times, and then reports ErrStorageConflict.
func (r *RedisRepo) SetListingActive(ctx context.Context, listingID string, active bool) (model.Listing, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return model.Listing{}, err
	}
	defer conn.Close()

	key := r.keys.listing(listingID)
	for attempt := 0; attempt < setActiveAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.Listing{}, fmt.Errorf("set listing active: %w", err)
		}
		if _, err := conn.Do("WATCH", key); err != nil {
			return model.Listing{}, fmt.Errorf("redis watch %s: %w", key, err)
		}

		listing, err := readListing(conn, key, listingID)
		if err != nil {
			_, _ = conn.Do("UNWATCH")
			return model.Listing{}, fmt.Errorf("set listing active: %w", err)
		}
		listing.Active = active
		listing.Version++

		raw, err := json.Marshal(listing)
		if err != nil {
			_, _ = conn.Do("UNWATCH")
			return model.Listing{}, fmt.Errorf("encode listing %s: %w", listingID, err)
		}

		_ = conn.Send("MULTI")
		_ = conn.Send("SET", key, raw)
		_, err = redis.Values(conn.Do("EXEC"))
		if errors.Is(err, redis.ErrNil) {
			continue
		}
		if err != nil {
			return model.Listing{}, fmt.Errorf("redis exec set active %s: %w", listingID, err)
		}
		return listing, nil
	}
	return model.Listing{}, fmt.Errorf("set listing active %s after %d attempts: %w",
		listingID, setActiveAttempts, biddingerrors.ErrStorageConflict)
}

// FindBid returns the bid row for (user, listing) if one exists
func (r *RedisRepo) FindBid(ctx context.Context, listingID, userID string) (model.Bid, bool, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return model.Bid{}, false, err
	}
	defer conn.Close()

	raw, err := redis.Bytes(conn.Do("HGET", r.keys.bids(listingID), userID))
	if errors.Is(err, redis.ErrNil) {
		return model.Bid{}, false, nil
	}
	if err != nil {
		return model.Bid{}, false, fmt.Errorf("redis find bid %s/%s: %w", listingID, userID, err)
	}

	var bid model.Bid
	if err := json.Unmarshal(raw, &bid); err != nil {
		return model.Bid{}, false, fmt.Errorf("decode bid %s/%s: %w", listingID, userID, err)
	}
	return bid, true, nil
}

// Commit applies the bid upsert and listing update in one MULTI/EXEC. A
// version mismatch, a changed bid row or an aborted EXEC is reported as
// ErrStorageConflict.
func (r *RedisRepo) Commit(ctx context.Context, c model.BidCommit) error {
	if c.Bid.ListingID != c.Listing.ListingID {
		return fmt.Errorf("commit: %w - bid and listing mismatch", biddingerrors.ErrInvalidBid)
	}

	id := c.Listing.ListingID
	listingKey, bidsKey := r.keys.listing(id), r.keys.bids(id)

	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Do("WATCH", listingKey, bidsKey); err != nil {
		return fmt.Errorf("redis watch listing %s: %w", id, err)
	}

	stored, err := readListing(conn, listingKey, id)
	if err != nil {
		_, _ = conn.Do("UNWATCH")
		return fmt.Errorf("commit: %w", err)
	}
	if stored.Version != c.ExpectedVersion {
		_, _ = conn.Do("UNWATCH")
		return fmt.Errorf("commit listing %s at version %d (stored %d): %w",
			id, c.ExpectedVersion, stored.Version, biddingerrors.ErrStorageConflict)
	}
	exists, err := redis.Bool(conn.Do("HEXISTS", bidsKey, c.Bid.UserID))
	if err != nil {
		_, _ = conn.Do("UNWATCH")
		return fmt.Errorf("redis hexists %s/%s: %w", id, c.Bid.UserID, err)
	}
	if exists == c.NewBidder {
		_, _ = conn.Do("UNWATCH")
		return fmt.Errorf("commit bid row for user %s on listing %s: %w", c.Bid.UserID, id, biddingerrors.ErrStorageConflict)
	}

	listing := c.Listing
	listing.Version = c.ExpectedVersion + 1
	rawListing, err := json.Marshal(listing)
	if err != nil {
		_, _ = conn.Do("UNWATCH")
		return fmt.Errorf("encode listing %s: %w", id, err)
	}
	rawBid, err := json.Marshal(c.Bid)
	if err != nil {
		_, _ = conn.Do("UNWATCH")
		return fmt.Errorf("encode bid %s/%s: %w", id, c.Bid.UserID, err)
	}

	_ = conn.Send("MULTI")
	_ = conn.Send("SET", listingKey, rawListing)
	_ = conn.Send("HSET", bidsKey, c.Bid.UserID, rawBid)
	_ = conn.Send("ZADD", r.keys.rank(id), c.Bid.Amount.InexactFloat64(), c.Bid.UserID)
	if c.NewBidder {
		_ = conn.Send("RPUSH", r.keys.user(c.Bid.UserID), id)
	}
	_, err = redis.Values(conn.Do("EXEC"))
	if errors.Is(err, redis.ErrNil) {
		return fmt.Errorf("commit listing %s: exec aborted: %w", id, biddingerrors.ErrStorageConflict)
	}
	if err != nil {
		return fmt.Errorf("redis exec commit %s: %w", id, err)
	}
	return nil
}

// GetBidsByListing returns up to limit bids, highest amount first
func (r *RedisRepo) GetBidsByListing(ctx context.Context, listingID string, limit int) ([]model.Bid, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	exists, err := redis.Bool(conn.Do("EXISTS", r.keys.listing(listingID)))
	if err != nil {
		return nil, fmt.Errorf("redis exists listing %s: %w", listingID, err)
	}
	if !exists {
		return nil, fmt.Errorf("get bids by listing %s: %w", listingID, biddingerrors.ErrListingNotFound)
	}

	stop := -1
	if limit > 0 {
		stop = limit - 1
	}
	users, err := redis.Strings(conn.Do("ZREVRANGE", r.keys.rank(listingID), 0, stop))
	if err != nil {
		return nil, fmt.Errorf("redis rank %s: %w", listingID, err)
	}
	if len(users) == 0 {
		return []model.Bid{}, nil
	}

	args := redis.Args{}.Add(r.keys.bids(listingID)).AddFlat(users)
	raws, err := redis.ByteSlices(conn.Do("HMGET", args...))
	if err != nil {
		return nil, fmt.Errorf("redis hmget bids %s: %w", listingID, err)
	}

	bids := make([]model.Bid, 0, len(raws))
	for i, raw := range raws {
		if raw == nil {
			continue
		}
		var bid model.Bid
		if err := json.Unmarshal(raw, &bid); err != nil {
			return nil, fmt.Errorf("decode bid %s/%s: %w", listingID, users[i], err)
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

// GetListingsByUser returns all listings a user has bid on
func (r *RedisRepo) GetListingsByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	ids, err := redis.Strings(conn.Do("LRANGE", r.keys.user(userID), 0, -1))
	if err != nil {
		return nil, fmt.Errorf("redis lrange user %s: %w", userID, err)
	}

	listings := make([]model.Listing, 0, len(ids))
	for _, id := range ids {
		listing, err := readListing(conn, r.keys.listing(id), id)
		if err != nil {
			return nil, fmt.Errorf("get listings for user %s: %w", userID, err)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}
