package domain

import "time"

// ChatMessage is a direct message between two matched users. The relay only
// forwards it and stamps DeliveredAt; storage and history live in Cassandra.
type ChatMessage struct {
	MessageID   string     `json:"messageId"`
	SenderID    string     `json:"senderId"`
	ReceiverID  string     `json:"receiverId"`
	Message     string     `json:"message"`
	Type        string     `json:"type,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
}
