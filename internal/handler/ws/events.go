package ws

import "encoding/json"

// Envelope is the wire format in both directions: a named event plus an
// opaque data object.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client-to-server event names. Outbound names live in the relay service;
// the two sets are asymmetric on purpose (call:invite in, call:incoming out).
const (
	EventSendMessage = "sendMessage"
	EventTyping      = "typing"
	EventStopTyping  = "stopTyping"
	EventCallInvite  = "call:invite"
	EventCallAccept  = "call:accept"
	EventCallReject  = "call:reject"
	EventCallEnd     = "call:end"
	EventOffer       = "webrtc:offer"
	EventAnswer      = "webrtc:answer"
	EventCandidate   = "webrtc:candidate"
	EventReaction    = "messages:reaction"
	EventBlock       = "user:block"
	EventUnblock     = "user:unblock"
)

// SendMessageEvent is the inbound chat message payload.
type SendMessageEvent struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
	MessageID  string `json:"messageId"`
	Message    string `json:"message"`
}

// TypingEvent covers typing and stopTyping.
type TypingEvent struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// CallEvent covers invite, accept, reject and end. For accept and reject the
// client sets from to its own id and to to the original caller.
type CallEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SignalEvent carries WebRTC payloads, relayed without inspection.
type SignalEvent struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ReactionEvent is the inbound message reaction payload.
type ReactionEvent struct {
	MessageID  string `json:"messageId"`
	Reaction   string `json:"reaction"`
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

// BlockEvent covers user:block and user:unblock.
type BlockEvent struct {
	ActorID  string `json:"actorId"`
	TargetID string `json:"targetId"`
}
