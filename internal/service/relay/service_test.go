package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amora-realtime/internal/directory"
	"amora-realtime/internal/domain"
)

// sentEvent is one event captured by a fakeConn.
type sentEvent struct {
	event string
	data  any
}

// fakeConn records every event sent to it.
type fakeConn struct {
	mu     sync.Mutex
	events []sentEvent
}

func (f *fakeConn) Send(event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, sentEvent{event: event, data: data})
	return nil
}

func (f *fakeConn) byEvent(event string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

// fakeRecorder implements CallLogRecorder with the same put semantics as the
// real store: one row per (userID, callID), last write wins.
type fakeRecorder struct {
	mu      sync.Mutex
	entries map[string]*domain.CallLogEntry
	puts    int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{entries: make(map[string]*domain.CallLogEntry)}
}

func (f *fakeRecorder) Put(ctx context.Context, entry *domain.CallLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.entries[entry.UserID+"|"+entry.CallID] = entry
	return nil
}

func (f *fakeRecorder) byStatus(status string) []*domain.CallLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.CallLogEntry
	for _, e := range f.entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeRecorder) forUser(userID string) *domain.CallLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.UserID == userID {
			return e
		}
	}
	return nil
}

type deliveredStamp struct {
	senderID, receiverID, messageID string
}

// fakeMessages counts deliveredAt stamps.
type fakeMessages struct {
	mu     sync.Mutex
	stamps []deliveredStamp
}

func (f *fakeMessages) MarkDelivered(ctx context.Context, senderID, receiverID, messageID string, deliveredAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamps = append(f.stamps, deliveredStamp{senderID, receiverID, messageID})
	return nil
}

// fakeNotifier counts push notifications.
type fakeNotifier struct {
	mu       sync.Mutex
	calls    int
	messages int
}

func (f *fakeNotifier) NotifyIncomingCall(ctx context.Context, calleeID, callerID, callID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeNotifier) NotifyNewMessage(ctx context.Context, receiverID, senderID, preview string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages++
	return nil
}

// newTestService wires a service with synchronous side-effect dispatch so
// tests observe writes deterministically.
func newTestService() (*Service, *directory.InMemoryStore, *fakeRecorder, *fakeMessages, *fakeNotifier) {
	store := directory.NewInMemoryStore()
	recorder := newFakeRecorder()
	messages := &fakeMessages{}
	notifier := &fakeNotifier{}

	svc := NewService(store, recorder, messages, notifier)
	svc.dispatch = func(op string, fn func(ctx context.Context) error) {
		_ = fn(context.Background())
	}
	return svc, store, recorder, messages, notifier
}

func connect(svc *Service, userID string) *fakeConn {
	conn := &fakeConn{}
	svc.Connect(userID, conn)
	return conn
}

// TestRelayChat tests delivery to a connected receiver: exactly one forward,
// one deliveredAt stamp and one receipt to the sender.
func TestRelayChat(t *testing.T) {
	svc, _, _, messages, notifier := newTestService()
	alice := connect(svc, "alice")
	bob := connect(svc, "bob")

	svc.RelayChat("alice", "bob", "m1", "hey there")

	forwarded := bob.byEvent(EventNewMessage)
	require.Len(t, forwarded, 1)
	payload := forwarded[0].data.(NewMessagePayload)
	assert.Equal(t, "alice", payload.SenderID)
	assert.Equal(t, "hey there", payload.Message)

	require.Len(t, messages.stamps, 1)
	assert.Equal(t, deliveredStamp{"alice", "bob", "m1"}, messages.stamps[0])

	receipts := alice.byEvent(EventMessageDelivered)
	require.Len(t, receipts, 1)
	assert.Equal(t, "bob", receipts[0].data.(MessageDeliveredPayload).ReceiverID)

	assert.Equal(t, 0, notifier.messages)
}

// TestRelayChat_OfflineReceiver tests that nothing is forwarded or stamped
// when the receiver is disconnected; the push fallback fires instead.
func TestRelayChat_OfflineReceiver(t *testing.T) {
	svc, _, _, messages, notifier := newTestService()
	alice := connect(svc, "alice")

	svc.RelayChat("alice", "bob", "m1", "hey there")

	assert.Empty(t, alice.byEvent(EventMessageDelivered))
	assert.Empty(t, messages.stamps)
	assert.Equal(t, 1, notifier.messages)
}

// TestRelayTyping tests the pure typing forward.
func TestRelayTyping(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	bob := connect(svc, "bob")

	svc.RelayTyping("alice", "bob")
	svc.RelayStopTyping("alice", "bob")

	require.Len(t, bob.byEvent(EventTyping), 1)
	require.Len(t, bob.byEvent(EventStopTyping), 1)
	assert.Equal(t, "alice", bob.byEvent(EventTyping)[0].data.(TypingPayload).SenderID)

	// Absent recipient is not an error.
	svc.RelayTyping("alice", "ghost")
}

// TestRelayReaction tests fan-out to both participants.
func TestRelayReaction(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	alice := connect(svc, "alice")
	bob := connect(svc, "bob")

	svc.RelayReaction("m1", "❤️", "alice", "bob")

	require.Len(t, bob.byEvent(EventReaction), 1)
	require.Len(t, alice.byEvent(EventReaction), 1)
	assert.Equal(t, "❤️", alice.byEvent(EventReaction)[0].data.(ReactionPayload).Reaction)
}

// TestRelayReaction_MissingFields tests that incomplete reactions are
// silently dropped.
func TestRelayReaction_MissingFields(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	alice := connect(svc, "alice")
	bob := connect(svc, "bob")

	svc.RelayReaction("", "❤️", "alice", "bob")
	svc.RelayReaction("m1", "", "alice", "bob")
	svc.RelayReaction("m1", "❤️", "", "bob")
	svc.RelayReaction("m1", "❤️", "alice", "")

	assert.Empty(t, alice.byEvent(EventReaction))
	assert.Empty(t, bob.byEvent(EventReaction))
}

// TestRelayBlock tests that both parties hear about a block and unblock.
func TestRelayBlock(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	alice := connect(svc, "alice")
	bob := connect(svc, "bob")

	svc.RelayBlock("alice", "bob")
	svc.RelayUnblock("alice", "bob")

	require.Len(t, alice.byEvent(EventUserBlocked), 1)
	require.Len(t, bob.byEvent(EventUserBlocked), 1)
	require.Len(t, bob.byEvent(EventUserUnblocked), 1)
	assert.Equal(t, "alice", bob.byEvent(EventUserBlocked)[0].data.(BlockPayload).ActorID)
}

// TestCallLifecycle_Completed walks invite -> accept -> end and checks the
// terminal log rows and session cleanup.
func TestCallLifecycle_Completed(t *testing.T) {
	svc, store, recorder, _, notifier := newTestService()
	alice := connect(svc, "alice")
	bob := connect(svc, "bob")

	svc.Invite("alice", "bob")

	rings := bob.byEvent(EventIncomingCall)
	require.Len(t, rings, 1)
	callID := rings[0].data.(IncomingCallPayload).CallID
	require.NotEmpty(t, callID)
	assert.Equal(t, 1, notifier.calls)

	ringing := recorder.byStatus(domain.CallStatusRinging)
	require.Len(t, ringing, 1)
	assert.Equal(t, "alice", ringing[0].UserID)
	assert.Equal(t, domain.CallDirectionOutgoing, ringing[0].Direction)

	// Callee accepts with roles swapped relative to the invite.
	svc.Accept("bob", "alice")

	accepted := alice.byEvent(EventCallAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, callID, accepted[0].data.(CallAnswerPayload).CallID)
	assert.Len(t, recorder.byStatus(domain.CallStatusInProgress), 2)

	svc.End("alice", "bob")

	ends := bob.byEvent(EventCallEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, callID, ends[0].data.(CallEndPayload).CallID)

	completed := recorder.byStatus(domain.CallStatusCompleted)
	require.Len(t, completed, 2)
	for _, entry := range completed {
		assert.Equal(t, callID, entry.CallID)
		assert.NotNil(t, entry.StartTime)
		assert.NotNil(t, entry.EndTime)
		assert.InDelta(t, entry.EndTime.Sub(*entry.StartTime).Seconds(), float64(entry.DurationSec), 1)
	}
	assert.Equal(t, domain.CallDirectionOutgoing, recorder.forUser("alice").Direction)
	assert.Equal(t, domain.CallDirectionIncoming, recorder.forUser("bob").Direction)

	_, ok := store.Session(domain.SessionKey("alice", "bob"))
	assert.False(t, ok)
	_, ok = store.Session(domain.SessionKey("bob", "alice"))
	assert.False(t, ok)
}

// TestCallLifecycle_Rejected tests invite -> reject: two declined rows with
// zero duration, session removed.
func TestCallLifecycle_Rejected(t *testing.T) {
	svc, store, recorder, _, _ := newTestService()
	alice := connect(svc, "alice")
	connect(svc, "bob")

	svc.Invite("alice", "bob")
	svc.Reject("bob", "alice")

	rejected := alice.byEvent(EventCallRejected)
	require.Len(t, rejected, 1)

	declined := recorder.byStatus(domain.CallStatusDeclined)
	require.Len(t, declined, 2)
	for _, entry := range declined {
		assert.Zero(t, entry.DurationSec)
		assert.NotNil(t, entry.EndTime)
	}

	_, ok := store.Session(domain.SessionKey("alice", "bob"))
	assert.False(t, ok)
}

// TestCallLifecycle_NoAnswer tests invite -> end with no accept: the caller
// logs no_answer, the callee missed, both with zero duration.
func TestCallLifecycle_NoAnswer(t *testing.T) {
	svc, _, recorder, _, _ := newTestService()
	connect(svc, "alice")
	connect(svc, "bob")

	svc.Invite("alice", "bob")
	svc.End("alice", "bob")

	noAnswer := recorder.byStatus(domain.CallStatusNoAnswer)
	require.Len(t, noAnswer, 1)
	assert.Equal(t, "alice", noAnswer[0].UserID)
	assert.Zero(t, noAnswer[0].DurationSec)

	missed := recorder.byStatus(domain.CallStatusMissed)
	require.Len(t, missed, 1)
	assert.Equal(t, "bob", missed[0].UserID)
}

// TestEnd_CalleeInitiated tests that end resolves the session from either
// direction and notifies the caller.
func TestEnd_CalleeInitiated(t *testing.T) {
	svc, store, recorder, _, _ := newTestService()
	alice := connect(svc, "alice")
	connect(svc, "bob")

	svc.Invite("alice", "bob")
	svc.Accept("bob", "alice")
	svc.End("bob", "alice")

	ends := alice.byEvent(EventCallEnd)
	require.Len(t, ends, 1)
	assert.Equal(t, "bob", ends[0].data.(CallEndPayload).From)
	assert.Len(t, recorder.byStatus(domain.CallStatusCompleted), 2)

	_, ok := store.Session(domain.SessionKey("alice", "bob"))
	assert.False(t, ok)
}

// TestAccept_DirectionalConvention pins the reversed-key lookup: accept
// emitted with the invite's original direction misses the session and
// synthesizes a fresh callId instead of finding the ringing one.
func TestAccept_DirectionalConvention(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	alice := connect(svc, "alice")
	bob := connect(svc, "bob")

	svc.Invite("alice", "bob")
	callID := bob.byEvent(EventIncomingCall)[0].data.(IncomingCallPayload).CallID

	// Correct convention: the callee emits with roles swapped.
	svc.Accept("bob", "alice")
	require.Len(t, alice.byEvent(EventCallAccepted), 1)
	assert.Equal(t, callID, alice.byEvent(EventCallAccepted)[0].data.(CallAnswerPayload).CallID)

	// Wrong direction looks up "bob->alice" which does not exist, so a
	// synthesized session with a different callId results.
	svc.Invite("alice", "bob")
	callID2 := bob.byEvent(EventIncomingCall)[1].data.(IncomingCallPayload).CallID
	svc.Accept("alice", "bob")
	accepted := bob.byEvent(EventCallAccepted)
	require.Len(t, accepted, 1)
	assert.NotEqual(t, callID2, accepted[0].data.(CallAnswerPayload).CallID)
}

// TestAccept_NoSession tests graceful degradation on an unmatched accept.
func TestAccept_NoSession(t *testing.T) {
	svc, store, recorder, _, _ := newTestService()
	alice := connect(svc, "alice")
	connect(svc, "bob")

	svc.Accept("bob", "alice")

	accepted := alice.byEvent(EventCallAccepted)
	require.Len(t, accepted, 1)
	assert.NotEmpty(t, accepted[0].data.(CallAnswerPayload).CallID)
	assert.Len(t, recorder.byStatus(domain.CallStatusInProgress), 2)

	_, ok := store.Session(domain.SessionKey("alice", "bob"))
	assert.True(t, ok)
}

// TestInvite_DistinctCallIDs tests that repeated invites for the same pair
// produce distinct callIds and the session record is overwritten.
func TestInvite_DistinctCallIDs(t *testing.T) {
	svc, store, _, _, _ := newTestService()
	connect(svc, "alice")
	bob := connect(svc, "bob")

	svc.Invite("alice", "bob")
	svc.Invite("alice", "bob")

	rings := bob.byEvent(EventIncomingCall)
	require.Len(t, rings, 2)
	first := rings[0].data.(IncomingCallPayload).CallID
	second := rings[1].data.(IncomingCallPayload).CallID
	assert.NotEqual(t, first, second)

	session, ok := store.Session(domain.SessionKey("alice", "bob"))
	require.True(t, ok)
	assert.Equal(t, second, session.CallID)
}

// TestForwardSignaling tests the pure WebRTC relays.
func TestForwardSignaling(t *testing.T) {
	svc, _, _, _, _ := newTestService()
	bob := connect(svc, "bob")

	svc.ForwardOffer("alice", "bob", []byte(`{"type":"offer"}`))
	svc.ForwardAnswer("bob", "alice", []byte(`{"type":"answer"}`))
	svc.ForwardCandidate("alice", "bob", []byte(`{"candidate":"c"}`))

	require.Len(t, bob.byEvent(EventOffer), 1)
	require.Len(t, bob.byEvent(EventCandidate), 1)
	assert.JSONEq(t, `{"type":"offer"}`, string(bob.byEvent(EventOffer)[0].data.(SDPPayload).SDP))
}

// TestInvite_OfflineCallee tests that ringing an offline callee still logs
// and pushes without erroring.
func TestInvite_OfflineCallee(t *testing.T) {
	svc, _, recorder, _, notifier := newTestService()
	connect(svc, "alice")

	svc.Invite("alice", "bob")

	assert.Len(t, recorder.byStatus(domain.CallStatusRinging), 1)
	assert.Equal(t, 1, notifier.calls)
}
