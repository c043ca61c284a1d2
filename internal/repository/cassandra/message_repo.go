package cassandra

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"amora-realtime/internal/domain"
)

// MessageRepository stores direct messages in Cassandra. The partition key
// is the conversation's pair key so one partition holds both directions of
// a conversation.
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

// PairKey derives the conversation partition key from the two participant
// ids. The smaller id sorts first so both directions map to one partition.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Save inserts a new message.
func (r *MessageRepository) Save(ctx context.Context, message *domain.ChatMessage) error {
	if message.MessageID == "" {
		message.MessageID = uuid.NewString()
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO messages (
			pair_key, message_id, sender_id, receiver_id, content,
			content_type, created_at, delivered_at, read_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := r.session.Query(query,
		PairKey(message.SenderID, message.ReceiverID),
		message.MessageID,
		message.SenderID,
		message.ReceiverID,
		message.Message,
		message.Type,
		message.Timestamp,
		message.DeliveredAt,
		message.ReadAt,
	).WithContext(ctx).Exec()

	if err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// GetConversation retrieves messages between two users with cursor-based
// pagination. The table clusters on message_id descending, so rows come
// back newest first.
func (r *MessageRepository) GetConversation(ctx context.Context, userA, userB string, limit int, pageState []byte) ([]*domain.ChatMessage, []byte, error) {
	query := `
		SELECT message_id, sender_id, receiver_id, content,
		       content_type, created_at, delivered_at, read_at
		FROM messages
		WHERE pair_key = ?
		LIMIT ?
	`

	iter := r.session.Query(query, PairKey(userA, userB), limit).
		WithContext(ctx).
		PageState(pageState).
		Iter()

	var messages []*domain.ChatMessage
	for {
		message := &domain.ChatMessage{}
		if !iter.Scan(
			&message.MessageID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Message,
			&message.Type,
			&message.Timestamp,
			&message.DeliveredAt,
			&message.ReadAt,
		) {
			break
		}
		messages = append(messages, message)
	}

	nextPageState := iter.PageState()
	if err := iter.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return messages, nextPageState, nil
}

// MarkDelivered stamps a message with its delivery time. Called from the
// relay's fire-and-forget path after a successful in-band forward.
func (r *MessageRepository) MarkDelivered(ctx context.Context, senderID, receiverID, messageID string, deliveredAt time.Time) error {
	query := `
		UPDATE messages
		SET delivered_at = ?
		WHERE pair_key = ? AND message_id = ?
	`

	err := r.session.Query(query, deliveredAt, PairKey(senderID, receiverID), messageID).
		WithContext(ctx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to mark message delivered: %w", err)
	}

	return nil
}

// MarkRead stamps a message with its read time.
func (r *MessageRepository) MarkRead(ctx context.Context, senderID, receiverID, messageID string, readAt time.Time) error {
	query := `
		UPDATE messages
		SET read_at = ?
		WHERE pair_key = ? AND message_id = ?
	`

	err := r.session.Query(query, readAt, PairKey(senderID, receiverID), messageID).
		WithContext(ctx).
		Exec()
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}

	return nil
}
