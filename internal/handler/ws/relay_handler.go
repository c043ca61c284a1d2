package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"amora-realtime/internal/directory"
	"amora-realtime/pkg/constants"
	"amora-realtime/pkg/logger"
	"amora-realtime/pkg/metrics"
)

// Dispatcher is the realtime core the hub feeds inbound events into. It is
// implemented by the relay service; tests substitute a recorder.
type Dispatcher interface {
	Connect(userID string, conn directory.Conn)
	Disconnect(userID string, conn directory.Conn)
	RelayChat(senderID, receiverID, messageID, message string)
	RelayTyping(senderID, receiverID string)
	RelayStopTyping(senderID, receiverID string)
	RelayReaction(messageID, reaction, senderID, receiverID string)
	RelayBlock(actorID, targetID string)
	RelayUnblock(actorID, targetID string)
	Invite(from, to string)
	Accept(from, to string)
	Reject(from, to string)
	End(from, to string)
	ForwardOffer(from, to string, sdp json.RawMessage)
	ForwardAnswer(from, to string, sdp json.RawMessage)
	ForwardCandidate(from, to string, candidate json.RawMessage)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev, restrict in production
	},
}

// RelayHub upgrades HTTP requests to WebSocket connections and pumps their
// events through the relay. Connection state lives in the presence
// directory, not here.
type RelayHub struct {
	relay   Dispatcher
	metrics *metrics.Metrics
}

// NewRelayHub creates a hub. metrics may be nil.
func NewRelayHub(relay Dispatcher, m *metrics.Metrics) *RelayHub {
	return &RelayHub{relay: relay, metrics: m}
}

// Client is one WebSocket connection. It implements directory.Conn; writes
// go through a buffered channel drained by writePump so a slow consumer
// drops events instead of stalling the relay.
type Client struct {
	hub    *RelayHub
	conn   *websocket.Conn
	send   chan []byte
	userID string

	mu     sync.Mutex
	closed bool
}

// ErrSendBufferFull is returned by Send when the client's outbound queue is
// saturated. The event is dropped.
var ErrSendBufferFull = errors.New("ws: send buffer full")

// ErrConnClosed is returned by Send after the connection has been torn down.
// A racing forward can still hold this handle briefly.
var ErrConnClosed = errors.New("ws: connection closed")

// Send implements directory.Conn.
func (c *Client) Send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.send <- frame:
		if c.hub.metrics != nil {
			c.hub.metrics.RecordWebSocketMessage(event, "out")
		}
		return nil
	default:
		if c.hub.metrics != nil {
			c.hub.metrics.RecordWebSocketError("send_buffer_full")
		}
		return ErrSendBufferFull
	}
}

// ServeWS handles the WebSocket upgrade at GET /ws?userId=<id>.
func (h *RelayHub) ServeWS(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed",
			zap.String("user_id", userID),
			zap.Error(err))
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, constants.WebSocketSendBuffer),
		userID: userID,
	}

	h.relay.Connect(userID, client)
	if h.metrics != nil {
		h.metrics.IncrementWebSocketConnections()
	}

	go client.writePump()
	go client.readPump()
}

// readPump reads frames until the connection dies, dispatching each into the
// relay. Malformed and unknown events are dropped without closing the
// connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.relay.Disconnect(c.userID, c)
		if c.hub.metrics != nil {
			c.hub.metrics.DecrementWebSocketConnections()
		}
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(constants.WebSocketMaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPongWait))
		return nil
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("websocket read error",
					zap.String("user_id", c.userID),
					zap.Error(err))
			}
			break
		}
		c.hub.dispatch(c.userID, frame)
	}
}

// writePump drains the send queue and keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// dispatch routes one inbound frame. The sender's connection identity is the
// fallback for events that omit their own id.
func (h *RelayHub) dispatch(userID string, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		logger.Debug("dropping malformed frame",
			zap.String("user_id", userID),
			zap.Error(err))
		if h.metrics != nil {
			h.metrics.RecordWebSocketError("malformed_frame")
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordWebSocketMessage(env.Event, "in")
	}

	switch env.Event {
	case EventSendMessage:
		var p SendMessageEvent
		if !decode(userID, env, &p) {
			return
		}
		if p.SenderID == "" {
			p.SenderID = userID
		}
		h.relay.RelayChat(p.SenderID, p.ReceiverID, p.MessageID, p.Message)

	case EventTyping:
		var p TypingEvent
		if !decode(userID, env, &p) {
			return
		}
		if p.SenderID == "" {
			p.SenderID = userID
		}
		h.relay.RelayTyping(p.SenderID, p.ReceiverID)

	case EventStopTyping:
		var p TypingEvent
		if !decode(userID, env, &p) {
			return
		}
		if p.SenderID == "" {
			p.SenderID = userID
		}
		h.relay.RelayStopTyping(p.SenderID, p.ReceiverID)

	case EventCallInvite:
		var p CallEvent
		if !decode(userID, env, &p) {
			return
		}
		if p.From == "" {
			p.From = userID
		}
		h.relay.Invite(p.From, p.To)

	case EventCallAccept:
		var p CallEvent
		if !decode(userID, env, &p) {
			return
		}
		if p.From == "" {
			p.From = userID
		}
		h.relay.Accept(p.From, p.To)

	case EventCallReject:
		var p CallEvent
		if !decode(userID, env, &p) {
			return
		}
		if p.From == "" {
			p.From = userID
		}
		h.relay.Reject(p.From, p.To)

	case EventCallEnd:
		var p CallEvent
		if !decode(userID, env, &p) {
			return
		}
		if p.From == "" {
			p.From = userID
		}
		h.relay.End(p.From, p.To)

	case EventOffer:
		var p SignalEvent
		if !decode(userID, env, &p) {
			return
		}
		h.relay.ForwardOffer(p.From, p.To, p.SDP)

	case EventAnswer:
		var p SignalEvent
		if !decode(userID, env, &p) {
			return
		}
		h.relay.ForwardAnswer(p.From, p.To, p.SDP)

	case EventCandidate:
		var p SignalEvent
		if !decode(userID, env, &p) {
			return
		}
		h.relay.ForwardCandidate(p.From, p.To, p.Candidate)

	case EventReaction:
		var p ReactionEvent
		if !decode(userID, env, &p) {
			return
		}
		h.relay.RelayReaction(p.MessageID, p.Reaction, p.SenderID, p.ReceiverID)

	case EventBlock:
		var p BlockEvent
		if !decode(userID, env, &p) {
			return
		}
		if p.ActorID == "" {
			p.ActorID = userID
		}
		h.relay.RelayBlock(p.ActorID, p.TargetID)

	case EventUnblock:
		var p BlockEvent
		if !decode(userID, env, &p) {
			return
		}
		if p.ActorID == "" {
			p.ActorID = userID
		}
		h.relay.RelayUnblock(p.ActorID, p.TargetID)

	default:
		logger.Debug("dropping unknown event",
			zap.String("user_id", userID),
			zap.String("event", env.Event))
	}
}

func decode(userID string, env Envelope, out any) bool {
	if err := json.Unmarshal(env.Data, out); err != nil {
		logger.Debug("dropping malformed payload",
			zap.String("user_id", userID),
			zap.String("event", env.Event),
			zap.Error(err))
		return false
	}
	return true
}
