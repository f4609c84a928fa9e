// Package progress stores per-session accumulated stream state.
//
// Entries are written on every content increment of a streaming run,
// cleared on normal completion, and deliberately kept when a stream ends
// through a degraded disconnect so later inspection can still observe the
// partial transcript until it expires.
package progress

import (
	"context"
	"encoding/json"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/rs/zerolog"
)

// DefaultTTL is how long an entry survives after its last update.
const DefaultTTL = 5 * time.Minute

// Entry is the accumulated state of one streaming run for a session.
type Entry struct {
	SessionKey string    `json:"sessionKey"`
	RunID      string    `json:"runId"`
	Text       string    `json:"text"`
	Seq        uint64    `json:"seq"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Cache is a time-bounded store of session progress, keyed by session key.
// Expiry is enforced lazily: every lookup first sweeps entries older than
// the TTL.
type Cache struct {
	store  *bigcache.BigCache
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCache creates a progress cache with the given TTL (DefaultTTL if zero).
func NewCache(ttl time.Duration, logger zerolog.Logger) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = 0 // expiry is enforced on lookup, not by a sweeper goroutine
	cfg.Verbose = false

	store, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	return &Cache{
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "progress").Logger(),
	}, nil
}

// Save upserts the accumulated state for a session, stamped with the
// current time.
func (c *Cache) Save(sessionKey, runID, text string, seq uint64) error {
	entry := Entry{
		SessionKey: sessionKey,
		RunID:      runID,
		Text:       text,
		Seq:        seq,
		UpdatedAt:  time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.store.Set(sessionKey, data)
}

// Get sweeps expired entries, then returns the entry for a session, if
// one survived.
func (c *Cache) Get(sessionKey string) (*Entry, bool) {
	c.sweep()

	data, err := c.store.Get(sessionKey)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.logger.Warn().Err(err).Str("session", sessionKey).Msg("dropping unreadable progress entry")
		_ = c.store.Delete(sessionKey)
		return nil, false
	}
	return &entry, true
}

// sweep removes every entry older than the TTL. Unreadable entries count
// as stale.
func (c *Cache) sweep() {
	var stale []string
	it := c.store.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(info.Value(), &entry); err != nil || time.Since(entry.UpdatedAt) > c.ttl {
			stale = append(stale, info.Key())
		}
	}
	for _, key := range stale {
		_ = c.store.Delete(key)
	}
	if len(stale) > 0 {
		c.logger.Debug().Int("entries", len(stale)).Msg("swept expired progress entries")
	}
}

// Clear removes the entry for a session. Missing entries are not an error.
func (c *Cache) Clear(sessionKey string) {
	if err := c.store.Delete(sessionKey); err != nil {
		return
	}
	c.logger.Debug().Str("session", sessionKey).Msg("progress entry cleared")
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
