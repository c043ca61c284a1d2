package push

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amora-realtime/pkg/constants"
)

// memoryTokenRepo is an in-memory TokenRepository for tests.
type memoryTokenRepo struct {
	tokens map[string][]*Token
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: make(map[string][]*Token)}
}

func (m *memoryTokenRepo) Save(ctx context.Context, token *Token) error {
	m.tokens[token.UserID] = append(m.tokens[token.UserID], token)
	return nil
}

func (m *memoryTokenRepo) Tokens(ctx context.Context, userID string) ([]*Token, error) {
	return m.tokens[userID], nil
}

func (m *memoryTokenRepo) Delete(ctx context.Context, userID, tokenValue string) error {
	kept := m.tokens[userID][:0]
	for _, token := range m.tokens[userID] {
		if token.Token != tokenValue {
			kept = append(kept, token)
		}
	}
	m.tokens[userID] = kept
	return nil
}

// capturingProvider records what it was asked to send.
type capturingProvider struct {
	notifications []*Notification
	tokens        [][]string
	result        *SendResult
}

func (c *capturingProvider) Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	c.notifications = append(c.notifications, notification)
	c.tokens = append(c.tokens, tokens)
	if c.result != nil {
		return c.result, nil
	}
	return &SendResult{SuccessCount: len(tokens)}, nil
}

func TestNotifyIncomingCall(t *testing.T) {
	repo := newMemoryTokenRepo()
	provider := &capturingProvider{}
	svc := NewService(provider, repo)
	ctx := context.Background()

	require.NoError(t, svc.RegisterToken(ctx, &Token{UserID: "bob", Token: "t1", Platform: "android"}))
	require.NoError(t, svc.RegisterToken(ctx, &Token{UserID: "bob", Token: "t2", Platform: "ios"}))

	require.NoError(t, svc.NotifyIncomingCall(ctx, "bob", "alice", "c1"))

	require.Len(t, provider.notifications, 1)
	n := provider.notifications[0]
	assert.Equal(t, "high", n.Priority)
	assert.Equal(t, "INCOMING_CALL", n.Category)
	assert.Equal(t, "c1", n.Data["callId"])
	assert.Equal(t, "alice", n.Data["callerId"])
	assert.ElementsMatch(t, []string{"t1", "t2"}, provider.tokens[0])
}

func TestNotifyIncomingCall_NoTokens(t *testing.T) {
	provider := &capturingProvider{}
	svc := NewService(provider, newMemoryTokenRepo())

	require.NoError(t, svc.NotifyIncomingCall(context.Background(), "bob", "alice", "c1"))
	assert.Empty(t, provider.notifications)
}

func TestNotifyNewMessage_TruncatesPreview(t *testing.T) {
	repo := newMemoryTokenRepo()
	provider := &capturingProvider{}
	svc := NewService(provider, repo)
	ctx := context.Background()

	require.NoError(t, svc.RegisterToken(ctx, &Token{UserID: "bob", Token: "t1", Platform: "android"}))

	long := strings.Repeat("x", constants.PushPreviewLength*2)
	require.NoError(t, svc.NotifyNewMessage(ctx, "bob", "alice", long))

	require.Len(t, provider.notifications, 1)
	n := provider.notifications[0]
	assert.Len(t, n.Body, constants.PushPreviewLength)
	assert.Equal(t, "alice", n.Data["senderId"])
	assert.Equal(t, "new_message", n.Data["type"])
}

func TestSendToUser_DropsInvalidTokens(t *testing.T) {
	repo := newMemoryTokenRepo()
	provider := &capturingProvider{
		result: &SendResult{SuccessCount: 1, FailureCount: 1, InvalidTokens: []string{"stale"}},
	}
	svc := NewService(provider, repo)
	ctx := context.Background()

	require.NoError(t, svc.RegisterToken(ctx, &Token{UserID: "bob", Token: "stale", Platform: "android"}))
	require.NoError(t, svc.RegisterToken(ctx, &Token{UserID: "bob", Token: "fresh", Platform: "android"}))

	require.NoError(t, svc.NotifyNewMessage(ctx, "bob", "alice", "hey"))

	remaining, err := repo.Tokens(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "fresh", remaining[0].Token)
}

func TestUnregisterToken(t *testing.T) {
	repo := newMemoryTokenRepo()
	svc := NewService(&MockProvider{}, repo)
	ctx := context.Background()

	require.NoError(t, svc.RegisterToken(ctx, &Token{UserID: "bob", Token: "t1", Platform: "ios"}))
	require.NoError(t, svc.UnregisterToken(ctx, "bob", "t1"))

	remaining, err := repo.Tokens(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
