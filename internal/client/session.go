package client

import (
	"context"
	"time"
)

// Session ties the authenticated lifecycle on a device together: one badge
// poller started at login and stopped exactly once at logout, instead of
// per-screen interval timers.
type Session struct {
	api    *API
	poller *UnreadPoller
}

func NewSession(api *API, pollInterval time.Duration) *Session {
	return &Session{
		api:    api,
		poller: NewUnreadPoller(api, pollInterval),
	}
}

func (s *Session) API() *API {
	return s.api
}

func (s *Session) Badge() *UnreadPoller {
	return s.poller
}

// Start begins background polling. Call once after login.
func (s *Session) Start(ctx context.Context) {
	s.poller.Start(ctx)
}

// Close stops background work. Call once at logout.
func (s *Session) Close() {
	s.poller.Stop()
}

// NewThreadOutbox builds the optimistic send machine for one conversation
// screen.
func (s *Session) NewThreadOutbox(onChange func()) *Outbox {
	return NewOutbox(s.api, onChange)
}

// MarkRead acknowledges a conversation and immediately refreshes the badge
// rather than waiting for the next poll tick.
func (s *Session) MarkRead(ctx context.Context, conversationID int64) error {
	if err := s.api.MarkRead(ctx, conversationID); err != nil {
		return err
	}
	_ = s.poller.Refresh(ctx)
	return nil
}
