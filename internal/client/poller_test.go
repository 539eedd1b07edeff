package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubBadgeSource struct {
	mu     sync.Mutex
	count  int
	err    error
	calls  int
	wakeup chan struct{}
}

func (s *stubBadgeSource) UnreadCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.wakeup != nil {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
	return s.count, s.err
}

func (s *stubBadgeSource) set(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count = count
}

func TestRefreshPublishesToSubscribers(t *testing.T) {
	source := &stubBadgeSource{count: 3}
	poller := NewUnreadPoller(source, time.Minute)

	var got []int
	poller.Subscribe(func(count int) { got = append(got, count) })

	if err := poller.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	count, fetchedAt := poller.Last()
	if count != 3 {
		t.Fatalf("expected cached count 3, got %d", count)
	}
	if fetchedAt.IsZero() {
		t.Fatalf("expected a last-fetch timestamp")
	}
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected one publication of 3, got %v", got)
	}

	source.set(5)
	if err := poller.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	count, _ = poller.Last()
	if count != 5 {
		t.Fatalf("expected cached count 5, got %d", count)
	}
	if len(got) != 2 || got[1] != 5 {
		t.Fatalf("expected second publication of 5, got %v", got)
	}
}

func TestRefreshFailureKeepsLastValue(t *testing.T) {
	source := &stubBadgeSource{count: 4}
	poller := NewUnreadPoller(source, time.Minute)

	if err := poller.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	source.mu.Lock()
	source.err = errors.New("network down")
	source.mu.Unlock()

	if err := poller.Refresh(context.Background()); err == nil {
		t.Fatalf("expected refresh error")
	}
	count, _ := poller.Last()
	if count != 4 {
		t.Fatalf("expected stale value 4 preserved, got %d", count)
	}
}

func TestStartPollsAndStopCancels(t *testing.T) {
	source := &stubBadgeSource{count: 1, wakeup: make(chan struct{}, 1)}
	poller := NewUnreadPoller(source, 5*time.Millisecond)

	poller.Start(context.Background())

	// Wait for at least the immediate fetch plus one tick.
	for i := 0; i < 2; i++ {
		select {
		case <-source.wakeup:
		case <-time.After(2 * time.Second):
			t.Fatalf("poller never fetched (iteration %d)", i)
		}
	}

	poller.Stop()

	source.mu.Lock()
	callsAtStop := source.calls
	source.mu.Unlock()

	time.Sleep(30 * time.Millisecond)

	source.mu.Lock()
	callsAfter := source.calls
	source.mu.Unlock()

	if callsAfter != callsAtStop {
		t.Fatalf("poller kept polling after Stop: %d -> %d", callsAtStop, callsAfter)
	}

	// Stopping twice must not panic or block.
	poller.Stop()
}

func TestStartTwiceIsNoOp(t *testing.T) {
	source := &stubBadgeSource{}
	poller := NewUnreadPoller(source, time.Minute)

	poller.Start(context.Background())
	poller.Start(context.Background())
	poller.Stop()
}
