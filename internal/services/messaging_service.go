package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beyondthefold777/Barber-World-sub001/internal/models"
	"github.com/beyondthefold777/Barber-World-sub001/internal/repository"
)

var (
	ErrForbidden         = errors.New("forbidden")
	ErrInvalidInput      = errors.New("invalid input")
	ErrRecipientNotFound = errors.New("recipient not found")
)

// MaxMessageBytes bounds the length of a single message text.
const MaxMessageBytes = 4096

const unreadCacheTTL = 30 * time.Second

type userReader interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// BadgeCache is an optional read-through cache for unread totals. Any Get
// error is treated as a miss so a degraded cache never breaks the badge.
// Totals are cached under a per-user version key that every committed write
// bumps via Incr; a reader that computed a total before a concurrent commit
// stores it under the old version, where no later reader will find it.
type BadgeCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Notifier receives post-commit events for connected display surfaces.
type Notifier interface {
	NotifyMessage(delivery *MessageDelivery)
	NotifyBadge(userID int64, unreadTotal int)
}

type MessagingService struct {
	db               *pgxpool.Pool
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         userReader
	cache            BadgeCache
	notifier         Notifier
}

// MessageDelivery is the outcome of a send: the stored message and who
// should be told about it.
type MessageDelivery struct {
	Message     *models.Message
	RecipientID int64
}

func NewMessagingService(
	db *pgxpool.Pool,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
	cache BadgeCache,
	notifier Notifier,
) *MessagingService {
	return &MessagingService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		cache:            cache,
		notifier:         notifier,
	}
}

// Send stores a message from senderID to recipientID, resolving the
// conversation lazily. Message insert, last-message cache refresh and the
// recipient's unread increment commit as one transaction; no partial state is
// ever visible to readers.
func (s *MessagingService) Send(
	ctx context.Context,
	senderID int64,
	recipientID int64,
	text string,
) (*MessageDelivery, error) {
	if recipientID <= 0 || recipientID == senderID {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" || len(trimmed) > MaxMessageBytes {
		return nil, ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecipientNotFound
		}
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txConversationRepo := repository.NewConversationRepository(tx)
	txMessageRepo := repository.NewMessageRepository(tx)

	// The upsert locks the conversation row for the rest of the transaction,
	// serializing cache updates against concurrent senders.
	conversation, err := txConversationRepo.CreateOrGet(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}

	message, err := txMessageRepo.Create(ctx, conversation.ID, senderID, trimmed)
	if err != nil {
		return nil, err
	}

	if err := txConversationRepo.RecordMessage(
		ctx,
		conversation.ID,
		message.ID,
		message.Text,
		message.CreatedAt,
		recipientID,
	); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	delivery := &MessageDelivery{
		Message:     message,
		RecipientID: recipientID,
	}
	s.afterSend(ctx, delivery)

	return delivery, nil
}

// Thread returns the full conversation between requester and otherUserID in
// total order, annotated from the requester's point of view. A pair with no
// conversation yet is a valid empty thread, not an error.
func (s *MessagingService) Thread(
	ctx context.Context,
	requesterID int64,
	otherUserID int64,
) ([]models.ThreadMessage, error) {
	if otherUserID <= 0 || otherUserID == requesterID {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByPair(ctx, requesterID, otherUserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []models.ThreadMessage{}, nil
		}
		return nil, err
	}

	messages, err := s.messageRepo.ListThread(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}

	thread := make([]models.ThreadMessage, 0, len(messages))
	for _, message := range messages {
		thread = append(thread, models.ThreadMessage{
			Message: message,
			Mine:    message.SenderID == requesterID,
		})
	}

	return thread, nil
}

// MarkRead flips every message the other party sent to read and zeroes the
// requester's unread counter, atomically. Calling it again is a no-op.
func (s *MessagingService) MarkRead(
	ctx context.Context,
	requesterID int64,
	conversationID int64,
) error {
	if conversationID <= 0 {
		return ErrInvalidInput
	}

	_, err := s.conversationRepo.GetByIDForParticipant(ctx, conversationID, requesterID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrForbidden
		}
		return err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txMessageRepo := repository.NewMessageRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	// Serialize against concurrent sends before reading any message rows;
	// otherwise a message committed by a lock-holding sender could stay
	// unread while its counter increment gets zeroed below.
	if err := txConversationRepo.Lock(ctx, conversationID); err != nil {
		return err
	}

	if err := txMessageRepo.MarkConversationRead(ctx, conversationID, requesterID); err != nil {
		return err
	}
	if err := txConversationRepo.ResetUnread(ctx, conversationID, requesterID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	s.afterBadgeChange(ctx, requesterID)
	return nil
}

func (s *MessagingService) ListConversations(
	ctx context.Context,
	requesterID int64,
) ([]models.ConversationSummary, error) {
	return s.conversationRepo.ListForParticipant(ctx, requesterID)
}

// UnreadTotal returns the requester's badge value, optionally served from the
// cache. Every committed send and mark-read bumps the requester's version
// key, so a total cached before such a write sits under a dead version and
// is never served afterwards.
func (s *MessagingService) UnreadTotal(ctx context.Context, requesterID int64) (int, error) {
	var key string
	if s.cache != nil {
		key = s.unreadTotalKey(ctx, requesterID)
		if cached, err := s.cache.Get(ctx, key); err == nil {
			if total, convErr := strconv.Atoi(cached); convErr == nil {
				return total, nil
			}
		}
	}

	total, err := s.conversationRepo.UnreadTotal(ctx, requesterID)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, strconv.Itoa(total), unreadCacheTTL); err != nil {
			log.Printf("messaging: cache unread total for %d: %v", requesterID, err)
		}
	}

	return total, nil
}

func (s *MessagingService) afterSend(ctx context.Context, delivery *MessageDelivery) {
	s.bumpUnreadVersion(ctx, delivery.RecipientID)

	if s.notifier == nil {
		return
	}
	s.notifier.NotifyMessage(delivery)

	total, err := s.conversationRepo.UnreadTotal(ctx, delivery.RecipientID)
	if err != nil {
		log.Printf("messaging: unread total for %d: %v", delivery.RecipientID, err)
		return
	}
	s.notifier.NotifyBadge(delivery.RecipientID, total)
}

func (s *MessagingService) afterBadgeChange(ctx context.Context, userID int64) {
	s.bumpUnreadVersion(ctx, userID)

	if s.notifier == nil {
		return
	}
	total, err := s.conversationRepo.UnreadTotal(ctx, userID)
	if err != nil {
		log.Printf("messaging: unread total for %d: %v", userID, err)
		return
	}
	s.notifier.NotifyBadge(userID, total)
}

func (s *MessagingService) bumpUnreadVersion(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, unreadVersionKey(userID)); err != nil {
		log.Printf("messaging: bump unread version for %d: %v", userID, err)
	}
}

func (s *MessagingService) unreadTotalKey(ctx context.Context, userID int64) string {
	version := "0"
	if v, err := s.cache.Get(ctx, unreadVersionKey(userID)); err == nil {
		version = v
	}
	return fmt.Sprintf("unread_total:%d:%s", userID, version)
}

func unreadVersionKey(userID int64) string {
	return fmt.Sprintf("unread_ver:%d", userID)
}

func FormatMessageTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
