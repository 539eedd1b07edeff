package repository

import (
	"context"
	"time"

	"github.com/beyondthefold777/Barber-World-sub001/internal/models"
)

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = `
	id, participant_a, participant_b,
	last_message_id, last_message_text, last_message_at,
	unread_a, unread_b, created_at, updated_at
`

func scanConversation(row interface{ Scan(...any) error }) (*models.Conversation, error) {
	var conversation models.Conversation
	err := row.Scan(
		&conversation.ID,
		&conversation.ParticipantA,
		&conversation.ParticipantB,
		&conversation.LastMessageID,
		&conversation.LastMessageText,
		&conversation.LastMessageAt,
		&conversation.UnreadA,
		&conversation.UnreadB,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// CreateOrGet resolves the single conversation for a user pair, creating it
// lazily on first contact. The pair is canonicalized before hitting the
// unique (participant_a, participant_b) index. The ON CONFLICT DO UPDATE arm
// also takes the row lock, so inside a transaction every later cache update
// on this conversation is serialized against concurrent senders.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	userID int64,
	otherUserID int64,
) (*models.Conversation, error) {
	a, b := models.CanonicalPair(userID, otherUserID)

	query := `
		INSERT INTO conversations (participant_a, participant_b)
		VALUES ($1, $2)
		ON CONFLICT (participant_a, participant_b)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING ` + conversationColumns

	return scanConversation(r.db.QueryRow(ctx, query, a, b))
}

// GetByPair is the read-only counterpart of CreateOrGet: it never creates,
// returning pgx.ErrNoRows while the pair has no conversation yet.
func (r *ConversationRepository) GetByPair(
	ctx context.Context,
	userID int64,
	otherUserID int64,
) (*models.Conversation, error) {
	a, b := models.CanonicalPair(userID, otherUserID)

	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant_a = $1 AND participant_b = $2
	`

	return scanConversation(r.db.QueryRow(ctx, query, a, b))
}

// Lock takes the conversation row lock for the rest of the transaction.
// Mark-read acquires it before touching message rows so it cannot interleave
// with a sender that already holds the lock: the messages UPDATE then runs on
// a snapshot that includes the sender's committed message, keeping the
// counters and the message rows in agreement.
func (r *ConversationRepository) Lock(ctx context.Context, conversationID int64) error {
	_, err := r.db.Exec(ctx, `
		SELECT id FROM conversations WHERE id = $1 FOR UPDATE
	`, conversationID)
	return err
}

func (r *ConversationRepository) GetByIDForParticipant(
	ctx context.Context,
	conversationID int64,
	participantID int64,
) (*models.Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1 AND (participant_a = $2 OR participant_b = $2)
	`

	return scanConversation(r.db.QueryRow(ctx, query, conversationID, participantID))
}

// RecordMessage refreshes the last-message cache and bumps the recipient's
// unread counter in one statement. The increment reads the stored value
// inside the UPDATE itself, so concurrent sends can never lose an increment.
func (r *ConversationRepository) RecordMessage(
	ctx context.Context,
	conversationID int64,
	messageID int64,
	text string,
	sentAt time.Time,
	recipientID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET last_message_id = $2,
		    last_message_text = $3,
		    last_message_at = $4,
		    unread_a = unread_a + CASE WHEN participant_a = $5 THEN 1 ELSE 0 END,
		    unread_b = unread_b + CASE WHEN participant_b = $5 THEN 1 ELSE 0 END,
		    updated_at = NOW()
		WHERE id = $1
	`, conversationID, messageID, text, sentAt, recipientID)
	return err
}

// ResetUnread zeroes the reader's counter, leaving the other side untouched.
func (r *ConversationRepository) ResetUnread(
	ctx context.Context,
	conversationID int64,
	readerID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET unread_a = CASE WHEN participant_a = $2 THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN participant_b = $2 THEN 0 ELSE unread_b END,
		    updated_at = NOW()
		WHERE id = $1
	`, conversationID, readerID)
	return err
}

// ListForParticipant returns the requester's conversation list, most recently
// active first. Conversations that never received a message are excluded.
func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			u.id,
			u.display_name,
			u.avatar_url,
			c.last_message_text,
			c.last_message_at,
			CASE WHEN c.participant_a = $1 THEN c.unread_a ELSE c.unread_b END
		FROM conversations c
		JOIN users u ON u.id = CASE
			WHEN c.participant_a = $1 THEN c.participant_b
			ELSE c.participant_a
		END
		WHERE (c.participant_a = $1 OR c.participant_b = $1)
		  AND c.last_message_id IS NOT NULL
		ORDER BY c.last_message_at DESC, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.Participant.ID,
			&summary.Participant.DisplayName,
			&summary.Participant.AvatarURL,
			&summary.LastMessageText,
			&summary.LastMessageAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

// UnreadTotal sums the requester's unread counters across all conversations.
func (r *ConversationRepository) UnreadTotal(
	ctx context.Context,
	participantID int64,
) (int, error) {
	var total int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(
			CASE WHEN participant_a = $1 THEN unread_a ELSE unread_b END
		), 0)
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
	`, participantID).Scan(&total)
	return total, err
}
