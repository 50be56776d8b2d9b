// Package freshness remembers when each (date, location) pair was last
// fetched live, so callers can skip redundant upstream requests.
package freshness

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"court-watch-backend/internal/metrics"
	"court-watch-backend/internal/model"
	"court-watch-backend/internal/store"
)

// Cache answers freshness questions from the fetch log. An in-process front
// cache holds recent records; the store stays authoritative.
type Cache struct {
	store  store.Store
	front  *cache.Cache
	maxAge time.Duration
	now    func() time.Time
	log    *zap.SugaredLogger
}

// New creates a Cache whose default max age is maxAge.
func New(st store.Store, maxAge time.Duration, log *zap.SugaredLogger) *Cache {
	return &Cache{
		store:  st,
		front:  cache.New(maxAge, 2*maxAge),
		maxAge: maxAge,
		now:    time.Now,
		log:    log,
	}
}

// Key hashes the pair only; the search window, duration and court filters are
// left out because a live fetch always covers the whole day.
func Key(date string, locationID int64) string {
	payload, _ := json.Marshal(struct {
		Date       string `json:"date"`
		LocationID int64  `json:"location_id"`
	}{date, locationID})
	sum := md5.Sum(payload)
	return hex.EncodeToString(sum[:])
}

// MaxAge is the default used when ShouldFetchLive gets a non-positive age.
func (c *Cache) MaxAge() time.Duration { return c.maxAge }

// ShouldFetchLive reports whether a live fetch is needed: when forced, when no
// fetch is recorded, or when the last one is maxAge old or older.
func (c *Cache) ShouldFetchLive(ctx context.Context, date string, locationID int64, maxAge time.Duration, force bool) (bool, error) {
	if force {
		metrics.FreshnessLookupTotal.WithLabelValues("forced").Inc()
		return true, nil
	}
	if maxAge <= 0 {
		maxAge = c.maxAge
	}
	key := Key(date, locationID)
	now := c.now()

	if v, ok := c.front.Get(key); ok {
		if now.Sub(v.(time.Time)) < maxAge {
			metrics.FreshnessLookupTotal.WithLabelValues("hit").Inc()
			return false, nil
		}
	}

	rec, err := c.store.LatestFetch(ctx, key)
	if err != nil {
		return true, fmt.Errorf("freshness lookup for location %d on %s: %w", locationID, date, err)
	}
	if rec == nil {
		metrics.FreshnessLookupTotal.WithLabelValues("miss").Inc()
		return true, nil
	}
	c.front.SetDefault(key, rec.PerformedAt)

	if now.Sub(rec.PerformedAt) < maxAge {
		metrics.FreshnessLookupTotal.WithLabelValues("hit").Inc()
		return false, nil
	}
	metrics.FreshnessLookupTotal.WithLabelValues("stale").Inc()
	return true, nil
}

// RecordFetch notes a completed live fetch.
func (c *Cache) RecordFetch(ctx context.Context, date string, locationID int64, slotsFound int) error {
	rec := &model.FetchRecord{
		Key:         Key(date, locationID),
		Date:        date,
		LocationID:  locationID,
		PerformedAt: c.now().UTC(),
		Live:        true,
		SlotsFound:  slotsFound,
	}
	if err := c.store.UpsertFetch(ctx, rec); err != nil {
		return err
	}
	c.front.SetDefault(rec.Key, rec.PerformedAt)
	return nil
}

// Purge deletes records older than olderThan, or all records when olderThan
// is zero.
func (c *Cache) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	var before time.Time
	if olderThan > 0 {
		before = c.now().Add(-olderThan)
	}
	n, err := c.store.PurgeFetches(ctx, before)
	if err != nil {
		return 0, err
	}
	c.front.Flush()
	c.log.Infow("purged fetch records", "older_than", olderThan, "deleted", n)
	return n, nil
}
