package relay

import (
	"encoding/json"
	"time"
)

// Server-to-client event names. The inbound (client-to-server) names live in
// the WebSocket handler; the two sets are deliberately asymmetric (for
// example call:invite in, call:incoming out).
const (
	EventNewMessage       = "newMessage"
	EventMessageDelivered = "message:delivered"
	EventTyping           = "typing"
	EventStopTyping       = "stopTyping"
	EventReaction         = "messages:reaction"
	EventIncomingCall     = "call:incoming"
	EventCallAccepted     = "call:accepted"
	EventCallRejected     = "call:rejected"
	EventCallEnd          = "call:end"
	EventOffer            = "webrtc:offer"
	EventAnswer           = "webrtc:answer"
	EventCandidate        = "webrtc:candidate"
	EventUserBlocked      = "user:block"
	EventUserUnblocked    = "user:unblock"
)

// NewMessagePayload is sent to the receiver of a chat message.
type NewMessagePayload struct {
	SenderID  string `json:"senderId"`
	Message   string `json:"message"`
	MessageID string `json:"messageId,omitempty"`
}

// MessageDeliveredPayload is the delivery receipt sent back to the sender.
type MessageDeliveredPayload struct {
	ReceiverID  string    `json:"receiverId"`
	MessageID   string    `json:"messageId,omitempty"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// TypingPayload is forwarded for typing and stopTyping.
type TypingPayload struct {
	SenderID string `json:"senderId"`
}

// ReactionPayload is forwarded to both participants of a reaction.
type ReactionPayload struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
	SenderID  string `json:"senderId"`
}

// IncomingCallPayload rings the callee.
type IncomingCallPayload struct {
	From   string `json:"from"`
	CallID string `json:"callId"`
}

// CallAnswerPayload is sent to the caller on accept and reject.
type CallAnswerPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	CallID string `json:"callId"`
}

// CallEndPayload tells the other party the call is over.
type CallEndPayload struct {
	From   string `json:"from"`
	CallID string `json:"callId"`
}

// SDPPayload carries a WebRTC offer or answer, relayed verbatim.
type SDPPayload struct {
	From string          `json:"from"`
	SDP  json.RawMessage `json:"sdp"`
}

// CandidatePayload carries an ICE candidate, relayed verbatim.
type CandidatePayload struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// BlockPayload is forwarded to both parties on block and unblock.
type BlockPayload struct {
	ActorID  string `json:"actorId"`
	TargetID string `json:"targetId"`
}
