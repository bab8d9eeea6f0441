package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/pkg/segment"
)

func testMapping() *model.StateMapping {
	return model.NewStateMapping([]model.State{
		{ID: 1, Type: "Water Production"},
	})
}

func testRows() []model.SegmentedEvent {
	return []model.SegmentedEvent{{
		Timestamp:       time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Category:        model.CategoryProduction,
		Date:            model.Date{Year: 2024, Month: time.January, Day: 1},
		Hour:            10,
		DurationMinutes: 60,
	}}
}

func TestKeyCanonical(t *testing.T) {
	mapping := testMapping()

	a := NewKey("stream-1", mapping, segment.PolicyHide, map[model.Category]bool{
		model.CategoryProduction:  true,
		model.CategoryMaintenance: true,
	})
	b := NewKey("stream-1", mapping, segment.PolicyHide, map[model.Category]bool{
		model.CategoryMaintenance: true,
		model.CategoryProduction:  true,
		model.CategoryTesting:     false, // excluded entries don't count
	})
	if a.String() != b.String() {
		t.Error("equal include sets must produce equal keys")
	}

	c := NewKey("stream-1", mapping, segment.PolicyRawSplit, map[model.Category]bool{
		model.CategoryProduction:  true,
		model.CategoryMaintenance: true,
	})
	if a.String() == c.String() {
		t.Error("different policies must produce different keys")
	}

	d := NewKey("stream-2", mapping, segment.PolicyHide, nil)
	e := NewKey("stream-1", mapping, segment.PolicyHide, nil)
	if d.String() == e.String() {
		t.Error("different streams must produce different keys")
	}
	if e.Include != "all" {
		t.Errorf("nil include encoded as %q, want \"all\"", e.Include)
	}
}

func TestMemoryBackend(t *testing.T) {
	m := NewMemory(10, time.Minute)
	ctx := context.Background()

	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Fatal("unexpected hit on empty cache")
	}
	if err := m.Put(ctx, "k", testRows()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rows, ok, err := m.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get after Put: ok=%v err=%v", ok, err)
	}
	if len(rows) != 1 || rows[0].DurationMinutes != 60 {
		t.Errorf("got %+v", rows)
	}

	stats := m.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", stats)
	}

	if err := m.InvalidateAll(ctx); err != nil {
		t.Fatalf("InvalidateAll: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("hit after InvalidateAll")
	}
}

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(10, -time.Second) // everything is already expired
	ctx := context.Background()
	_ = m.Put(ctx, "k", testRows())
	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("expired entry served")
	}
}

func TestMemoryEviction(t *testing.T) {
	m := NewMemory(1, time.Minute)
	ctx := context.Background()
	_ = m.Put(ctx, "a", testRows())
	_ = m.Put(ctx, "b", testRows())
	if m.Stats().Entries != 1 {
		t.Errorf("entries = %d, want 1 after eviction", m.Stats().Entries)
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New(NewMemory(10, time.Minute))
	key := NewKey("s", testMapping(), segment.PolicyShowAll, nil)

	calls := 0
	compute := func() ([]model.SegmentedEvent, error) {
		calls++
		return testRows(), nil
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rows, err := c.GetOrCompute(ctx, key, compute)
		if err != nil {
			t.Fatalf("GetOrCompute: %v", err)
		}
		if len(rows) != 1 {
			t.Fatalf("got %d rows", len(rows))
		}
	}
	if calls != 1 {
		t.Errorf("compute ran %d times, want 1", calls)
	}
}

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]model.SegmentedEvent, bool, error) {
	return nil, false, errors.New("backend down")
}
func (failingBackend) Put(context.Context, string, []model.SegmentedEvent) error {
	return errors.New("backend down")
}
func (failingBackend) InvalidateAll(context.Context) error { return errors.New("backend down") }
func (failingBackend) Close() error                        { return nil }

func TestGetOrComputeAdvisory(t *testing.T) {
	// A broken backend must degrade to recomputation, not fail the call.
	c := New(failingBackend{})
	key := NewKey("s", testMapping(), segment.PolicyShowAll, nil)

	rows, err := c.GetOrCompute(context.Background(), key, func() ([]model.SegmentedEvent, error) {
		return testRows(), nil
	})
	if err != nil {
		t.Fatalf("GetOrCompute with failing backend: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("got %d rows", len(rows))
	}
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	c := New(NewMemory(10, time.Minute))
	key := NewKey("s", testMapping(), segment.PolicyShowAll, nil)

	wantErr := errors.New("load failed")
	_, err := c.GetOrCompute(context.Background(), key, func() ([]model.SegmentedEvent, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}
