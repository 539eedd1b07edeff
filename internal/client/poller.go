package client

import (
	"context"
	"sync"
	"time"
)

const defaultPollInterval = 30 * time.Second

type badgeSource interface {
	UnreadCount(ctx context.Context) (int, error)
}

// UnreadPoller owns the one authoritative unread total for a session. It
// refreshes on a fixed interval, plus on demand after a mark-read, and
// republishes every fetched value to all subscribers. It never writes
// anything server-side.
type UnreadPoller struct {
	source   badgeSource
	interval time.Duration

	mu          sync.Mutex
	lastCount   int
	lastFetched time.Time
	subscribers []func(int)
	cancel      context.CancelFunc
	done        chan struct{}
}

func NewUnreadPoller(source badgeSource, interval time.Duration) *UnreadPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &UnreadPoller{
		source:   source,
		interval: interval,
	}
}

// Subscribe registers a display surface. Subscribers are invoked outside the
// poller lock.
func (p *UnreadPoller) Subscribe(fn func(count int)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, fn)
}

// Last returns the cached badge value and when it was fetched.
func (p *UnreadPoller) Last() (int, time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastCount, p.lastFetched
}

// Refresh fetches the total once and republishes it. Fetch failures leave
// the cached value untouched.
func (p *UnreadPoller) Refresh(ctx context.Context) error {
	count, err := p.source.UnreadCount(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.lastCount = count
	p.lastFetched = time.Now().UTC()
	subscribers := make([]func(int), len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	for _, fn := range subscribers {
		fn(count)
	}
	return nil
}

// Start begins the periodic refresh loop. Starting an already running poller
// is a no-op.
func (p *UnreadPoller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.mu.Unlock()

	go p.run(runCtx, done)
}

// Stop cancels the loop and waits for it to exit, so no timer outlives the
// session that started it.
func (p *UnreadPoller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *UnreadPoller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	_ = p.Refresh(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.Refresh(ctx)
		}
	}
}
