package domain

import (
	"fmt"
	"time"
)

// Call log statuses. A log entry moves ringing -> in_progress -> completed
// on the happy path; declined, missed and no_answer are the terminal
// statuses for calls that never connected.
const (
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in_progress"
	CallStatusDeclined   = "declined"
	CallStatusCompleted  = "completed"
	CallStatusMissed     = "missed"
	CallStatusNoAnswer   = "no_answer"
)

// Call directions, relative to the participant owning the log entry.
const (
	CallDirectionIncoming = "incoming"
	CallDirectionOutgoing = "outgoing"
)

// CallKindVideo is the only call kind the relay brokers.
const CallKindVideo = "video"

// CallSession is the in-memory record of a call attempt between a directed
// (caller, callee) pair. StartTime stays nil until the callee accepts.
// Sessions are never persisted; a relay restart drops all in-flight calls.
type CallSession struct {
	CallID    string
	From      string
	To        string
	StartTime *time.Time
}

// Key returns the directed key under which this session is stored.
func (s CallSession) Key() string {
	return SessionKey(s.From, s.To)
}

// SessionKey builds the directed session-table key. Direction matters:
// "a->b" and "b->a" are distinct call attempts.
func SessionKey(from, to string) string {
	return fmt.Sprintf("%s->%s", from, to)
}

// CallLogEntry is one participant's view of a call, persisted with put
// semantics keyed (UserID, CallID): later signaling transitions overwrite
// earlier ones. Exactly two entries exist per completed call lifecycle,
// mirror images of each other's Direction/Status framing.
type CallLogEntry struct {
	UserID      string     `json:"userId"`
	CallID      string     `json:"callId"`
	Direction   string     `json:"direction"`
	PeerID      string     `json:"peerId"`
	Status      string     `json:"status"`
	StartTime   *time.Time `json:"startTime,omitempty"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	DurationSec int        `json:"durationSec"`
	Kind        string     `json:"kind"`
	CreatedAt   time.Time  `json:"createdAt"`
}
