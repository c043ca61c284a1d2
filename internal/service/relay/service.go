// Package relay implements the realtime core: message fan-out, the
// call-signaling state machine and the call log recorder. Delivery is
// at-most-once and best-effort throughout: offline recipients are skipped
// silently, and every persistence or push side effect is fire-and-forget so
// a slow store can never stall the signaling handshake.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"amora-realtime/internal/directory"
	"amora-realtime/internal/domain"
	"amora-realtime/pkg/constants"
	"amora-realtime/pkg/logger"
)

// CallLogRecorder persists call log entries with put semantics keyed
// (userID, callID): a later transition overwrites the earlier row.
type CallLogRecorder interface {
	Put(ctx context.Context, entry *domain.CallLogEntry) error
}

// MessageStore stamps chat messages as delivered.
type MessageStore interface {
	MarkDelivered(ctx context.Context, senderID, receiverID, messageID string, deliveredAt time.Time) error
}

// Notifier sends push notifications for users who cannot be reached in-band.
type Notifier interface {
	NotifyIncomingCall(ctx context.Context, calleeID, callerID, callID string) error
	NotifyNewMessage(ctx context.Context, receiverID, senderID, preview string) error
}

// Service relays events between connected clients and drives the call
// session table. All methods are safe for concurrent use.
type Service struct {
	store    directory.SessionStore
	calls    CallLogRecorder
	messages MessageStore
	notifier Notifier

	// dispatch runs a background side effect. Production spawns a goroutine
	// with a bounded context; tests substitute a synchronous runner.
	dispatch func(op string, fn func(ctx context.Context) error)
}

// NewService creates a relay service. messages and notifier may be nil when
// the corresponding collaborator is not configured.
func NewService(store directory.SessionStore, calls CallLogRecorder, messages MessageStore, notifier Notifier) *Service {
	s := &Service{
		store:    store,
		calls:    calls,
		messages: messages,
		notifier: notifier,
	}
	s.dispatch = s.spawn
	return s
}

// spawn runs fn in the background. Failures are logged and never propagated:
// call logs and delivery stamps are an audit trail, not a source of truth.
func (s *Service) spawn(op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			logger.Warn("background write failed",
				zap.String("op", op),
				zap.Error(err))
		}
	}()
}

// Connect registers a user's connection (last-connect-wins).
func (s *Service) Connect(userID string, conn directory.Conn) {
	s.store.Register(userID, conn)
	logger.Debug("user connected", zap.String("user_id", userID))
}

// Disconnect removes a user's connection and marks them offline. In-flight
// call sessions are left in place; the peer learns via its own disconnect
// detection and a later call:end.
func (s *Service) Disconnect(userID string, conn directory.Conn) {
	s.store.Unregister(userID, conn)
	logger.Debug("user disconnected", zap.String("user_id", userID))
}

// forward delivers one event to userID's current connection. A miss or a
// send failure is not an error: the recipient is simply unreachable.
func (s *Service) forward(userID, event string, data any) bool {
	conn, ok := s.store.Lookup(userID)
	if !ok {
		return false
	}
	if err := conn.Send(event, data); err != nil {
		logger.Debug("forward dropped",
			zap.String("event", event),
			zap.String("user_id", userID),
			zap.Error(err))
		return false
	}
	return true
}

// RelayChat forwards a chat message to the receiver if connected. On a
// successful forward it stamps deliveredAt and sends the sender a delivery
// receipt; for an offline receiver it falls back to a push notification.
func (s *Service) RelayChat(senderID, receiverID, messageID, message string) {
	if senderID == "" || receiverID == "" {
		return
	}

	if _, ok := s.store.Lookup(receiverID); !ok {
		if s.notifier != nil {
			s.dispatch("push:new_message", func(ctx context.Context) error {
				return s.notifier.NotifyNewMessage(ctx, receiverID, senderID, message)
			})
		}
		return
	}

	if !s.forward(receiverID, EventNewMessage, NewMessagePayload{
		SenderID:  senderID,
		Message:   message,
		MessageID: messageID,
	}) {
		return
	}

	deliveredAt := time.Now().UTC()
	if s.messages != nil {
		s.dispatch("message:delivered", func(ctx context.Context) error {
			return s.messages.MarkDelivered(ctx, senderID, receiverID, messageID, deliveredAt)
		})
	}
	s.forward(senderID, EventMessageDelivered, MessageDeliveredPayload{
		ReceiverID:  receiverID,
		MessageID:   messageID,
		DeliveredAt: deliveredAt,
	})
}

// RelayTyping forwards a typing indicator.
func (s *Service) RelayTyping(senderID, receiverID string) {
	s.forward(receiverID, EventTyping, TypingPayload{SenderID: senderID})
}

// RelayStopTyping forwards the end of a typing indicator.
func (s *Service) RelayStopTyping(senderID, receiverID string) {
	s.forward(receiverID, EventStopTyping, TypingPayload{SenderID: senderID})
}

// RelayReaction forwards a message reaction to both participants, so the
// sender's own UI reflects it too. Events with any missing field are
// dropped without notice.
func (s *Service) RelayReaction(messageID, reaction, senderID, receiverID string) {
	if messageID == "" || reaction == "" || senderID == "" || receiverID == "" {
		logger.Debug("reaction dropped: missing fields",
			zap.String("sender_id", senderID),
			zap.String("receiver_id", receiverID))
		return
	}

	payload := ReactionPayload{MessageID: messageID, Reaction: reaction, SenderID: senderID}
	s.forward(receiverID, EventReaction, payload)
	s.forward(senderID, EventReaction, payload)
}

// RelayBlock tells both parties that actorID blocked targetID. The block
// list itself is persisted by the HTTP surface, not here.
func (s *Service) RelayBlock(actorID, targetID string) {
	payload := BlockPayload{ActorID: actorID, TargetID: targetID}
	s.forward(targetID, EventUserBlocked, payload)
	s.forward(actorID, EventUserBlocked, payload)
}

// RelayUnblock tells both parties that actorID unblocked targetID.
func (s *Service) RelayUnblock(actorID, targetID string) {
	payload := BlockPayload{ActorID: actorID, TargetID: targetID}
	s.forward(targetID, EventUserUnblocked, payload)
	s.forward(actorID, EventUserUnblocked, payload)
}

// Invite starts a call attempt from caller to callee: a fresh callId, a
// ringing session keyed "from->to", a ring on the callee's connection, and
// in the background a ringing log row for the caller plus a push to the
// callee's device.
func (s *Service) Invite(from, to string) {
	if from == "" || to == "" {
		return
	}

	callID := uuid.NewString()
	now := time.Now().UTC()

	s.store.PutSession(domain.CallSession{CallID: callID, From: from, To: to})
	s.forward(to, EventIncomingCall, IncomingCallPayload{From: from, CallID: callID})

	if s.calls != nil {
		entry := &domain.CallLogEntry{
			UserID:    from,
			CallID:    callID,
			Direction: domain.CallDirectionOutgoing,
			PeerID:    to,
			Status:    domain.CallStatusRinging,
			Kind:      domain.CallKindVideo,
			CreatedAt: now,
		}
		s.dispatch("calllog:ringing", func(ctx context.Context) error {
			return s.calls.Put(ctx, entry)
		})
	}
	if s.notifier != nil {
		s.dispatch("push:incoming_call", func(ctx context.Context) error {
			return s.notifier.NotifyIncomingCall(ctx, to, from, callID)
		})
	}
}

// Accept handles the callee picking up. Clients emit accept with the roles
// swapped relative to the invite: from is the original callee and to the
// original caller, so the session lives under "to->from". This directional
// convention is load-bearing; see the pinning tests before changing it.
func (s *Service) Accept(from, to string) {
	if from == "" || to == "" {
		return
	}

	key := domain.SessionKey(to, from)
	session, ok := s.store.Session(key)
	if !ok {
		// Out-of-order or duplicate accept: synthesize a session so the
		// handshake keeps moving instead of erroring.
		session = domain.CallSession{CallID: uuid.NewString(), From: to, To: from}
	}

	now := time.Now().UTC()
	session.StartTime = &now
	s.store.PutSession(session)

	s.forward(to, EventCallAccepted, CallAnswerPayload{From: from, To: to, CallID: session.CallID})
	s.recordBothSides(session, domain.CallStatusInProgress, domain.CallStatusInProgress, &now, nil, 0)
}

// Reject handles the callee declining. Role swap as in Accept: the session
// lives under "to->from". Both sides get a terminal declined row and the
// session is removed.
func (s *Service) Reject(from, to string) {
	if from == "" || to == "" {
		return
	}

	key := domain.SessionKey(to, from)
	session, ok := s.store.Session(key)
	if !ok {
		session = domain.CallSession{CallID: uuid.NewString(), From: to, To: from}
	}

	now := time.Now().UTC()
	s.forward(to, EventCallRejected, CallAnswerPayload{From: from, To: to, CallID: session.CallID})
	s.recordBothSides(session, domain.CallStatusDeclined, domain.CallStatusDeclined, session.StartTime, &now, 0)
	s.store.DeleteSession(key)
}

// ForwardOffer relays a WebRTC SDP offer verbatim. No state mutation.
func (s *Service) ForwardOffer(from, to string, sdp json.RawMessage) {
	s.forward(to, EventOffer, SDPPayload{From: from, SDP: sdp})
}

// ForwardAnswer relays a WebRTC SDP answer verbatim. No state mutation.
func (s *Service) ForwardAnswer(from, to string, sdp json.RawMessage) {
	s.forward(to, EventAnswer, SDPPayload{From: from, SDP: sdp})
}

// ForwardCandidate relays an ICE candidate verbatim. No state mutation.
func (s *Service) ForwardCandidate(from, to string, candidate json.RawMessage) {
	s.forward(to, EventCandidate, CandidatePayload{From: from, Candidate: candidate})
}

// End terminates a call attempt from either side. The session is looked up
// under both directional keys; if the call connected both sides get a
// completed row with the measured duration, otherwise the caller logs
// no_answer and the callee missed.
func (s *Service) End(from, to string) {
	if from == "" || to == "" {
		return
	}

	session, ok := s.store.Session(domain.SessionKey(from, to))
	if !ok {
		session, ok = s.store.Session(domain.SessionKey(to, from))
	}
	if !ok {
		// Duplicate or unmatched end: synthesize a session so the other
		// party still gets the event and the history still gets rows.
		session = domain.CallSession{CallID: uuid.NewString(), From: from, To: to}
	}

	other := session.To
	if other == from {
		other = session.From
	}
	s.forward(other, EventCallEnd, CallEndPayload{From: from, CallID: session.CallID})

	now := time.Now().UTC()
	if session.StartTime != nil {
		duration := int(now.Sub(*session.StartTime).Seconds())
		if duration < 0 {
			duration = 0
		}
		s.recordBothSides(session, domain.CallStatusCompleted, domain.CallStatusCompleted, session.StartTime, &now, duration)
	} else {
		s.recordBothSides(session, domain.CallStatusNoAnswer, domain.CallStatusMissed, nil, &now, 0)
	}

	s.store.DeleteSession(domain.SessionKey(session.From, session.To))
	s.store.DeleteSession(domain.SessionKey(session.To, session.From))
}

// recordBothSides writes the caller's and callee's log rows for a signaling
// transition. session.From is always the original caller.
func (s *Service) recordBothSides(session domain.CallSession, callerStatus, calleeStatus string, start, end *time.Time, durationSec int) {
	if s.calls == nil {
		return
	}

	now := time.Now().UTC()
	callerEntry := &domain.CallLogEntry{
		UserID:      session.From,
		CallID:      session.CallID,
		Direction:   domain.CallDirectionOutgoing,
		PeerID:      session.To,
		Status:      callerStatus,
		StartTime:   start,
		EndTime:     end,
		DurationSec: durationSec,
		Kind:        domain.CallKindVideo,
		CreatedAt:   now,
	}
	calleeEntry := &domain.CallLogEntry{
		UserID:      session.To,
		CallID:      session.CallID,
		Direction:   domain.CallDirectionIncoming,
		PeerID:      session.From,
		Status:      calleeStatus,
		StartTime:   start,
		EndTime:     end,
		DurationSec: durationSec,
		Kind:        domain.CallKindVideo,
		CreatedAt:   now,
	}

	s.dispatch("calllog:"+callerStatus, func(ctx context.Context) error {
		return s.calls.Put(ctx, callerEntry)
	})
	s.dispatch("calllog:"+calleeStatus, func(ctx context.Context) error {
		return s.calls.Put(ctx, calleeEntry)
	})
}
