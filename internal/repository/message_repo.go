package repository

import (
	"context"

	"github.com/beyondthefold777/Barber-World-sub001/internal/models"
)

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a message. The created_at default is clock_timestamp(),
// taken while the caller holds the conversation row lock, so stamps follow
// commit order within a conversation rather than transaction-start order.
func (r *MessageRepository) Create(
	ctx context.Context,
	conversationID int64,
	senderID int64,
	text string,
) (*models.Message, error) {
	query := `
		INSERT INTO messages (conversation_id, sender_id, text, is_read)
		VALUES ($1, $2, $3, FALSE)
		RETURNING id, conversation_id, sender_id, text, is_read, created_at
	`

	var message models.Message
	err := r.db.QueryRow(ctx, query, conversationID, senderID, text).Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Text,
		&message.IsRead,
		&message.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// ListThread returns every message of a conversation in its total order:
// created_at ascending with id as tiebreak, so messages stamped in the same
// instant still order identically on every fetch.
func (r *MessageRepository) ListThread(
	ctx context.Context,
	conversationID int64,
) ([]models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, text, is_read, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var message models.Message
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.Text,
			&message.IsRead,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}

		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return messages, nil
}

// MarkConversationRead flips the other party's unread messages to read. The
// WHERE clause makes a second call a no-op, so the operation is idempotent.
func (r *MessageRepository) MarkConversationRead(
	ctx context.Context,
	conversationID int64,
	readerID int64,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE messages
		SET is_read = TRUE
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND is_read = FALSE
	`, conversationID, readerID)
	return err
}

// CountUnreadFor recomputes a participant's unread count straight from the
// message rows, bypassing the conversations cache.
func (r *MessageRepository) CountUnreadFor(
	ctx context.Context,
	conversationID int64,
	participantID int64,
) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM messages
		WHERE conversation_id = $1
		  AND sender_id <> $2
		  AND is_read = FALSE
	`, conversationID, participantID).Scan(&count)
	return count, err
}
