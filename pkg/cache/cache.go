// Package cache provides a read-through cache for segmentation results,
// keyed by stream identity, mapping version, policy and category set.
// The cache is advisory: a failing backend degrades to recomputation,
// never to an error.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/pkg/segment"
)

// Key identifies one segmentation result.
type Key struct {
	// Stream fingerprints the input event stream (e.g. file set + row
	// count, or an upstream ETag).
	Stream string

	// MappingVersion is the state mapping fingerprint.
	MappingVersion string

	// Policy is the overflow policy token.
	Policy string

	// Include is the canonical category-set encoding.
	Include string
}

// NewKey builds a Key from the segmentation inputs. A nil include set
// encodes as "all"; otherwise the included categories are sorted so the
// same set always produces the same key.
func NewKey(stream string, mapping *model.StateMapping, policy segment.Policy, include map[model.Category]bool) Key {
	k := Key{
		Stream:         stream,
		MappingVersion: mapping.Version,
		Policy:         policy.String(),
		Include:        "all",
	}
	if include != nil {
		cats := make([]string, 0, len(include))
		for cat, ok := range include {
			if ok {
				cats = append(cats, string(cat))
			}
		}
		sort.Strings(cats)
		k.Include = strings.Join(cats, ",")
	}
	return k
}

// String returns the hashed cache key.
func (k Key) String() string {
	h := sha256.Sum256([]byte(k.Stream + "\x00" + k.MappingVersion + "\x00" + k.Policy + "\x00" + k.Include))
	return hex.EncodeToString(h[:])
}

// Backend stores segmented tables by key.
type Backend interface {
	Get(ctx context.Context, key string) ([]model.SegmentedEvent, bool, error)
	Put(ctx context.Context, key string, rows []model.SegmentedEvent) error

	// InvalidateAll drops every entry; called when new exports arrive.
	InvalidateAll(ctx context.Context) error

	Close() error
}

// Cache is the read-through layer over a Backend.
type Cache struct {
	backend Backend
}

// New creates a read-through cache.
func New(backend Backend) *Cache {
	return &Cache{backend: backend}
}

// GetOrCompute returns the cached table for key, or runs compute and
// stores its result. Backend failures on either side are swallowed;
// compute errors are returned as-is.
func (c *Cache) GetOrCompute(ctx context.Context, key Key, compute func() ([]model.SegmentedEvent, error)) ([]model.SegmentedEvent, error) {
	hashed := key.String()

	if rows, ok, err := c.backend.Get(ctx, hashed); err == nil && ok {
		return rows, nil
	}

	rows, err := compute()
	if err != nil {
		return nil, err
	}

	_ = c.backend.Put(ctx, hashed, rows)
	return rows, nil
}

// InvalidateAll clears the backend.
func (c *Cache) InvalidateAll(ctx context.Context) error {
	return c.backend.InvalidateAll(ctx)
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// Memory is the in-process Backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	maxSize int
	maxAge  time.Duration
	hits    int64
	misses  int64
}

type memoryEntry struct {
	rows      []model.SegmentedEvent
	createdAt time.Time
	expiresAt time.Time
}

// NewMemory creates an in-memory backend holding at most maxSize entries
// for at most maxAge each.
func NewMemory(maxSize int, maxAge time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]*memoryEntry),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Get implements Backend.
func (m *Memory) Get(_ context.Context, key string) ([]model.SegmentedEvent, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		m.mu.Lock()
		m.misses++
		m.mu.Unlock()
		return nil, false, nil
	}

	if time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.misses++
		m.mu.Unlock()
		return nil, false, nil
	}

	m.mu.Lock()
	m.hits++
	m.mu.Unlock()
	return entry.rows, true, nil
}

// Put implements Backend.
func (m *Memory) Put(_ context.Context, key string, rows []model.SegmentedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) >= m.maxSize {
		m.evictOldest()
	}

	now := time.Now()
	m.entries[key] = &memoryEntry{
		rows:      rows,
		createdAt: now,
		expiresAt: now.Add(m.maxAge),
	}
	return nil
}

// InvalidateAll implements Backend.
func (m *Memory) InvalidateAll(_ context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string]*memoryEntry)
	m.mu.Unlock()
	return nil
}

// Close implements Backend.
func (m *Memory) Close() error {
	return m.InvalidateAll(context.Background())
}

// Stats reports hit/miss counters.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Entries: len(m.entries),
		Hits:    m.hits,
		Misses:  m.misses,
		HitRate: hitRate(m.hits, m.misses),
	}
}

func (m *Memory) evictOldest() {
	var oldestKey string
	var oldest *memoryEntry
	for key, entry := range m.entries {
		if oldest == nil || entry.createdAt.Before(oldest.createdAt) {
			oldest = entry
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

// Stats contains cache statistics.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
	HitRate float64
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
