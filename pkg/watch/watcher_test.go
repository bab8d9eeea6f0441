package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsMatchingFile(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	w.debounce = 20 * time.Millisecond

	changed := make(chan string, 1)
	w.OnChange = func(path string) error {
		select {
		case changed <- path:
		default:
		}
		return nil
	}

	if err := w.Watch(dir, "Sequences *.csv"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	target := filepath.Join(dir, "Sequences 2024-05.csv")
	if err := os.WriteFile(target, []byte("timestamp,code\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-changed:
		if filepath.Base(got) != "Sequences 2024-05.csv" {
			t.Errorf("changed path = %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestWatcherIgnoresNonMatching(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()
	w.debounce = 20 * time.Millisecond

	changed := make(chan string, 1)
	w.OnChange = func(path string) error {
		select {
		case changed <- path:
		default:
		}
		return nil
	}

	if err := w.Watch(dir, "Sequences *.csv"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-changed:
		t.Errorf("unexpected notification for %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherKeepsAllPatternsPerDirectory(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	// Both the sequence exports and the state table live in one
	// directory; registering the second must not displace the first.
	if err := w.Watch(dir, "Sequences *.csv"); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := w.Watch(dir, "Sequence States.csv"); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"Sequences 2024-05.csv", true},
		{"Sequence States.csv", true},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := w.matches(filepath.Join(dir, tt.name)); got != tt.want {
			t.Errorf("matches(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
