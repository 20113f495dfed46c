package realtimesvc

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/realtime"
)

// Client events & reply statuses
const (
	EventJoin      = "phx_join"
	EventLeave     = "phx_leave"
	EventReply     = "phx_reply"
	EventHeartbeat = "heartbeat"

	StatusOK    = "ok"
	StatusError = "error"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

type (
	// Identity is the authenticated user behind a session.
	Identity struct {
		UserID        string
		SchoolID      string
		PlatformAdmin bool
	}

	// Message is a frame exchanged with the client.
	Message struct {
		Event   string      `json:"event"`
		Topic   string      `json:"topic"`
		Ref     string      `json:"ref,omitempty"`
		Payload interface{} `json:"payload,omitempty"`
		SentAt  *time.Time  `json:"sent_at,omitempty"`
	}

	ReplyPayload struct {
		Status   string `json:"status"`
		Response string `json:"response,omitempty"`
	}

	Session struct {
		conn   *websocket.Conn
		broker realtime.Broker
		id     Identity
		logger core.Logger
		send   chan Message

		mu   sync.Mutex
		subs map[string]func()
	}
)

func NewSession(conn *websocket.Conn, broker realtime.Broker, id Identity, logger core.Logger) *Session {
	return &Session{
		conn:   conn,
		broker: broker,
		id:     id,
		logger: logger,
		send:   make(chan Message, sendBuffer),
		subs:   make(map[string]func()),
	}
}

// Run serves the session until the client disconnects or ctx is done.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(ctx)
	}()

	s.readLoop(ctx)
	cancel()
	<-done
	s.leaveAll()
	_ = s.conn.Close()
}

func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for ctx.Err() == nil {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("reading realtime message", errors.Wrap(err, s.id.UserID))
			}
			return
		}
		s.handle(msg)
	}
}

func (s *Session) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Session) handle(msg Message) {
	switch msg.Event {
	case EventJoin:
		if !realtime.CanJoin(msg.Topic, s.id.UserID, s.id.SchoolID, s.id.PlatformAdmin) {
			s.reply(msg, StatusError, "unauthorized topic")
			return
		}
		s.join(msg.Topic)
		s.reply(msg, StatusOK, "")
	case EventLeave:
		s.leave(msg.Topic)
		s.reply(msg, StatusOK, "")
	case EventHeartbeat:
		s.reply(msg, StatusOK, "")
	default:
		s.reply(msg, StatusError, "unknown event")
	}
}

func (s *Session) reply(msg Message, status, response string) {
	s.push(Message{
		Event:   EventReply,
		Topic:   msg.Topic,
		Ref:     msg.Ref,
		Payload: ReplyPayload{Status: status, Response: response},
	})
}

// push queues msg for the client; the message is dropped when the client is too slow.
func (s *Session) push(msg Message) {
	select {
	case s.send <- msg:
	default:
		s.logger.Warn("realtime client too slow, dropping message", errors.New(s.id.UserID+": "+msg.Topic))
	}
}

func (s *Session) join(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[topic]; ok {
		return
	}
	s.subs[topic] = s.broker.Subscribe(topic, func(evt realtime.Event) {
		sentAt := evt.SentAt
		s.push(Message{Event: evt.Event, Topic: evt.Topic, Payload: evt.Payload, SentAt: &sentAt})
	})
}

func (s *Session) leave(topic string) {
	s.mu.Lock()
	unsubscribe, ok := s.subs[topic]
	delete(s.subs, topic)
	s.mu.Unlock()
	if ok {
		unsubscribe()
	}
}

func (s *Session) leaveAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]func())
	s.mu.Unlock()
	for _, unsubscribe := range subs {
		unsubscribe()
	}
}

// Topics returns the topics joined by the session.
func (s *Session) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	topics := make([]string, 0, len(s.subs))
	for t := range s.subs {
		topics = append(topics, t)
	}
	return topics
}
