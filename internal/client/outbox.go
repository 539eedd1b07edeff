package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/beyondthefold777/Barber-World-sub001/internal/models"
)

type MessageState int

const (
	StatePending MessageState = iota
	StateConfirmed
	StateFailed
)

func (s MessageState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OutgoingMessage is one optimistic send attempt. While Pending it carries a
// locally generated temp id and a local timestamp; on confirmation the server
// id and server timestamp replace them without moving the entry, so the
// visible thread never jumps.
type OutgoingMessage struct {
	TempID         string
	ServerID       int64
	ConversationID int64
	RecipientID    int64
	Text           string
	CreatedAt      time.Time
	State          MessageState
	SendErr        error
}

type messageSender interface {
	SendMessage(ctx context.Context, recipientID int64, text string) (*models.Message, int64, error)
}

var (
	errUnknownTempID = errors.New("outbox: unknown temp id")
	errNotPending    = errors.New("outbox: entry is not pending")
	errNotFailed     = errors.New("outbox: entry is not failed")
)

// Outbox is the per-thread reconciliation state machine for outgoing
// messages. Entries keep their insertion order for the lifetime of the
// screen; the authoritative order is re-derived from the thread fetch on
// reload.
type Outbox struct {
	mu       sync.Mutex
	api      messageSender
	entries  []*OutgoingMessage
	byTempID map[string]*OutgoingMessage
	onChange func()
}

// NewOutbox builds an outbox over the REST client. onChange, when non-nil,
// fires after every state transition so the owning screen can redraw.
func NewOutbox(api messageSender, onChange func()) *Outbox {
	return &Outbox{
		api:      api,
		byTempID: make(map[string]*OutgoingMessage),
		onChange: onChange,
	}
}

// Submit appends a Pending entry and returns its snapshot immediately; the
// UI renders it before any network round trip. Deliver performs the actual
// send.
func (o *Outbox) Submit(recipientID int64, text string) OutgoingMessage {
	entry := &OutgoingMessage{
		TempID:      uuid.NewString(),
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   time.Now().UTC(),
		State:       StatePending,
	}

	o.mu.Lock()
	o.entries = append(o.entries, entry)
	o.byTempID[entry.TempID] = entry
	snapshot := *entry
	o.mu.Unlock()

	o.notify()
	return snapshot
}

// Deliver sends a Pending entry to the server and transitions it to
// Confirmed or Failed. A failed entry is never resent from here; recovery is
// an explicit Retry.
func (o *Outbox) Deliver(ctx context.Context, tempID string) error {
	o.mu.Lock()
	entry, ok := o.byTempID[tempID]
	if !ok {
		o.mu.Unlock()
		return errUnknownTempID
	}
	if entry.State != StatePending {
		o.mu.Unlock()
		return errNotPending
	}
	recipientID, text := entry.RecipientID, entry.Text
	o.mu.Unlock()

	message, conversationID, err := o.api.SendMessage(ctx, recipientID, text)

	o.mu.Lock()
	if err != nil {
		entry.State = StateFailed
		entry.SendErr = err
	} else {
		entry.State = StateConfirmed
		entry.ServerID = message.ID
		entry.ConversationID = conversationID
		entry.CreatedAt = message.CreatedAt
		entry.SendErr = nil
	}
	o.mu.Unlock()

	o.notify()
	return err
}

// Retry replaces a Failed entry with a fresh Pending attempt carrying a new
// temp id. The caller delivers the returned entry like any other submit.
func (o *Outbox) Retry(tempID string) (OutgoingMessage, error) {
	o.mu.Lock()
	old, ok := o.byTempID[tempID]
	if !ok {
		o.mu.Unlock()
		return OutgoingMessage{}, errUnknownTempID
	}
	if old.State != StateFailed {
		o.mu.Unlock()
		return OutgoingMessage{}, errNotFailed
	}

	fresh := &OutgoingMessage{
		TempID:      uuid.NewString(),
		RecipientID: old.RecipientID,
		Text:        old.Text,
		CreatedAt:   time.Now().UTC(),
		State:       StatePending,
	}

	delete(o.byTempID, old.TempID)
	for i, entry := range o.entries {
		if entry == old {
			o.entries = append(o.entries[:i], o.entries[i+1:]...)
			break
		}
	}
	o.entries = append(o.entries, fresh)
	o.byTempID[fresh.TempID] = fresh
	snapshot := *fresh
	o.mu.Unlock()

	o.notify()
	return snapshot, nil
}

// Entries returns a snapshot of all attempts in insertion order.
func (o *Outbox) Entries() []OutgoingMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]OutgoingMessage, 0, len(o.entries))
	for _, entry := range o.entries {
		out = append(out, *entry)
	}
	return out
}

func (o *Outbox) notify() {
	if o.onChange != nil {
		o.onChange()
	}
}
