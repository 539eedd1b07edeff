package models

import "time"

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Text           string    `json:"text"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// ThreadMessage is a Message annotated relative to the requesting participant.
type ThreadMessage struct {
	Message
	Mine bool `json:"mine"`
}

// Conversation keys the unique thread between two users. The pair is stored
// canonically (ParticipantA < ParticipantB) so either initiation order maps to
// the same row. UnreadA/UnreadB count the other party's unread messages for
// the respective participant; LastMessage* cache the most recent message so
// list rendering never scans the messages table.
type Conversation struct {
	ID              int64      `json:"id"`
	ParticipantA    int64      `json:"participant_a"`
	ParticipantB    int64      `json:"participant_b"`
	LastMessageID   *int64     `json:"last_message_id,omitempty"`
	LastMessageText *string    `json:"last_message_text,omitempty"`
	LastMessageAt   *time.Time `json:"last_message_at,omitempty"`
	UnreadA         int        `json:"unread_a"`
	UnreadB         int        `json:"unread_b"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CanonicalPair orders two user ids into the stored (A, B) form.
func CanonicalPair(x, y int64) (int64, int64) {
	if x > y {
		return y, x
	}
	return x, y
}

func (c *Conversation) HasParticipant(userID int64) bool {
	return c.ParticipantA == userID || c.ParticipantB == userID
}

func (c *Conversation) OtherParticipant(userID int64) int64 {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

func (c *Conversation) UnreadFor(userID int64) int {
	if c.ParticipantA == userID {
		return c.UnreadA
	}
	return c.UnreadB
}

// ConversationSummary is one row of the conversation list, projected for a
// single requester.
type ConversationSummary struct {
	ID              int64         `json:"id"`
	Participant     PublicProfile `json:"participant"`
	LastMessageText string        `json:"last_message_text"`
	LastMessageAt   time.Time     `json:"last_message_at"`
	UnreadCount     int           `json:"unread_count"`
}
