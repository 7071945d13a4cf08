package media

import (
	"sync"
	"testing"
	"time"
)

func TestNoticesExpire(t *testing.T) {
	n := NewNotices(20 * time.Millisecond)

	var mu sync.Mutex
	var seen []string
	n.OnChange(func(msg string) {
		mu.Lock()
		seen = append(seen, msg)
		mu.Unlock()
	})

	n.Post("Image too large")
	if got := n.Current(); got != "Image too large" {
		t.Fatalf("Expected notice to be visible, got %q", got)
	}

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}
	deadline := time.Now().Add(time.Second)
	for count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := n.Current(); got != "" {
		t.Fatalf("Expected notice to expire, still showing %q", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "Image too large" || seen[1] != "" {
		t.Errorf("Expected post then expiry callbacks, got %q", seen)
	}
}

func TestNoticesLatestWins(t *testing.T) {
	n := NewNotices(300 * time.Millisecond)

	n.Post("first")
	time.Sleep(200 * time.Millisecond)
	n.Post("second")
	// the first expiry is past; only the second post's timer may clear it
	time.Sleep(200 * time.Millisecond)

	if got := n.Current(); got != "second" {
		t.Errorf("Expected 'second' to still be visible, got %q", got)
	}
}

func TestNewNoticesDefaultTTL(t *testing.T) {
	if n := NewNotices(0); n.ttl != NoticeTTL {
		t.Errorf("Expected default ttl %v, got %v", NoticeTTL, n.ttl)
	}
}
