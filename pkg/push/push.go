package push

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"amora-realtime/pkg/constants"
	"amora-realtime/pkg/logger"
	"amora-realtime/pkg/resilience"
)

// Provider defines interface for sending push notifications
type Provider interface {
	Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error)
}

// SendResult contains the result of a push notification send operation
type SendResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
	Errors        []error
}

// Notification represents a push notification
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"` // high, normal, low
	Sound    string            `json:"sound,omitempty"`
	Badge    *int              `json:"badge,omitempty"`
	Category string            `json:"category,omitempty"`
}

// Token is one registered device token. A user may have several devices.
type Token struct {
	UserID   string `json:"userId"`
	Token    string `json:"token"`
	Platform string `json:"platform"` // ios, android
}

// TokenRepository defines interface for storing and retrieving device tokens
type TokenRepository interface {
	Save(ctx context.Context, token *Token) error
	Tokens(ctx context.Context, userID string) ([]*Token, error)
	Delete(ctx context.Context, userID, tokenValue string) error
}

// Service sends the relay's out-of-band notifications: incoming calls and
// chat messages for users without a live connection. It satisfies the relay
// service's Notifier interface.
type Service struct {
	provider Provider
	repo     TokenRepository
	breaker  *resilience.Breaker
}

// NewService creates a new push notification service
func NewService(provider Provider, repo TokenRepository) *Service {
	return &Service{
		provider: provider,
		repo:     repo,
		breaker:  resilience.NewBreaker("push", 3, 10*time.Second),
	}
}

// RegisterToken registers a device token for a user.
func (s *Service) RegisterToken(ctx context.Context, token *Token) error {
	return s.repo.Save(ctx, token)
}

// UnregisterToken removes one of a user's device tokens.
func (s *Service) UnregisterToken(ctx context.Context, userID, tokenValue string) error {
	return s.repo.Delete(ctx, userID, tokenValue)
}

// NotifyIncomingCall wakes the callee's devices for a ringing call. High
// priority so the OS shows the call UI even with the app backgrounded.
func (s *Service) NotifyIncomingCall(ctx context.Context, calleeID, callerID, callID string) error {
	notification := &Notification{
		Title:    "Incoming call",
		Body:     "Someone is video calling you",
		Priority: "high",
		Sound:    "default",
		Category: "INCOMING_CALL",
		Data: map[string]string{
			"type":     "incoming_call",
			"callId":   callID,
			"callerId": callerID,
		},
	}

	return s.sendToUser(ctx, calleeID, notification)
}

// NotifyNewMessage tells an offline receiver about a chat message. The body
// carries a truncated preview, never the full message.
func (s *Service) NotifyNewMessage(ctx context.Context, receiverID, senderID, preview string) error {
	if len(preview) > constants.PushPreviewLength {
		preview = preview[:constants.PushPreviewLength]
	}

	notification := &Notification{
		Title:    "New message",
		Body:     preview,
		Priority: "normal",
		Sound:    "default",
		Data: map[string]string{
			"type":     "new_message",
			"senderId": senderID,
		},
	}

	return s.sendToUser(ctx, receiverID, notification)
}

// sendToUser fans a notification out to all of a user's registered devices.
func (s *Service) sendToUser(ctx context.Context, userID string, notification *Notification) error {
	tokens, err := s.repo.Tokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get device tokens: %w", err)
	}

	if len(tokens) == 0 {
		logger.Debug("no device tokens registered, skipping push",
			zap.String("user_id", userID))
		return nil
	}

	values := make([]string, 0, len(tokens))
	for _, token := range tokens {
		values = append(values, token.Token)
	}

	var result *SendResult
	err = s.breaker.Execute(ctx, "send", func(ctx context.Context) error {
		var sendErr error
		result, sendErr = s.provider.Send(ctx, notification, values)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("failed to send push notification: %w", err)
	}

	logger.Debug("push notification sent",
		zap.String("user_id", userID),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount))

	// Invalid tokens point at uninstalled or re-registered devices.
	for _, invalid := range result.InvalidTokens {
		if err := s.repo.Delete(ctx, userID, invalid); err != nil {
			logger.Warn("failed to drop invalid device token",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}

	return nil
}

// MockProvider is a mock implementation for development/testing
type MockProvider struct {
	// For testing purposes
	NotificationsSent int
}

// Send implements Provider interface
func (m *MockProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	m.NotificationsSent++

	logger.Debug("MockProvider: Sending notification",
		zap.String("title", notification.Title),
		zap.String("body", notification.Body),
		zap.Int("token_count", len(tokens)))

	// Return success for all tokens
	return &SendResult{
		SuccessCount: len(tokens),
	}, nil
}
