// Package gateway hosts the websocket endpoints: the chat platform bridge that
// delivers interactions, and the live shift feed for dashboards.
package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/evn/shiftbot/internal/interaction"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type EventKind string

const (
	KindCommand EventKind = "command"
	KindButton  EventKind = "button"
	KindSelect  EventKind = "select"
)

// InboundEvent is one interaction forwarded by the platform bridge.
type InboundEvent struct {
	ID       string            `json:"id"`
	Kind     EventKind         `json:"kind"`
	CustomID string            `json:"customId"`
	Values   []string          `json:"values,omitempty"`
	Actor    interaction.Actor `json:"actor"`
}

// OutboundReply answers the event with the same ID.
type OutboundReply struct {
	ID    string            `json:"id"`
	Reply interaction.Reply `json:"reply"`
}

type Handler interface {
	HandleAction(ctx context.Context, actor interaction.Actor, action interaction.Action, selection string) interaction.Reply
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, actor interaction.Actor, action interaction.Action, selection string) interaction.Reply

func (f HandlerFunc) HandleAction(ctx context.Context, actor interaction.Actor, action interaction.Action, selection string) interaction.Reply {
	return f(ctx, actor, action, selection)
}

// Bridge accepts bridge connections on /ws/gateway. Each event runs in its own
// goroutine, so slow store calls for one actor do not hold up others.
type Bridge struct {
	handler  Handler
	token    string
	upgrader websocket.Upgrader
	log      *zap.Logger
	now      func() time.Time

	base     context.Context
	shutdown context.CancelFunc

	mu         sync.Mutex
	sessions   int
	readySince time.Time
}

func NewBridge(handler Handler, token string, logger *zap.Logger) *Bridge {
	base, shutdown := context.WithCancel(context.Background())
	return &Bridge{
		base:     base,
		shutdown: shutdown,
		handler:  handler,
		token:    token,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logger.Named("gateway"),
		now: time.Now,
	}
}

// Close ends every open session. Events already being handled still finish.
func (b *Bridge) Close() {
	b.shutdown()
}

// Ready reports whether at least one bridge session is connected.
func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessions > 0
}

// Uptime is the time since the bridge became ready, zero when not ready.
func (b *Bridge) Uptime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessions == 0 {
		return 0
	}
	return b.now().Sub(b.readySince)
}

func (b *Bridge) authorized(r *http.Request) bool {
	if b.token == "" {
		return false
	}
	got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(b.token)) == 1
}

func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		http.Error(w, "invalid gateway token", http.StatusUnauthorized)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	b.connected()
	defer b.disconnected()

	s := &session{
		bridge: b,
		conn:   conn,
		send:   make(chan []byte, 64),
	}
	s.run(b.base)
}

func (b *Bridge) connected() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessions == 0 {
		b.readySince = b.now()
	}
	b.sessions++
	b.log.Info("bridge connected", zap.Int("sessions", b.sessions))
}

func (b *Bridge) disconnected() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions--
	b.log.Info("bridge disconnected", zap.Int("sessions", b.sessions))
}

type session struct {
	bridge   *Bridge
	conn     *websocket.Conn
	send     chan []byte
	inflight sync.WaitGroup
}

// run blocks until the connection drops, then waits for in-flight handlers.
func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		s.writePump(ctx)
	}()

	s.readPump(ctx)
	cancel()
	s.inflight.Wait()
	writer.Wait()
	s.conn.Close()
}

func (s *session) readPump(ctx context.Context) {
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.bridge.log.Warn("bridge read failed", zap.Error(err))
			}
			return
		}

		var ev InboundEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			s.bridge.log.Warn("malformed bridge event", zap.Error(err))
			continue
		}

		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.dispatch(ctx, ev)
		}()
	}
}

func (s *session) dispatch(ctx context.Context, ev InboundEvent) {
	var selection string
	if len(ev.Values) > 0 {
		selection = ev.Values[0]
	}
	s.bridge.log.Debug("interaction received",
		zap.String("event_id", ev.ID),
		zap.String("kind", string(ev.Kind)),
		zap.String("custom_id", ev.CustomID),
		zap.String("discord_id", ev.Actor.ID),
	)

	// the store call finishes even if the bridge went away; only the reply is dropped
	reply := s.bridge.handler.HandleAction(context.WithoutCancel(ctx), ev.Actor, interaction.Action(ev.CustomID), selection)

	data, err := json.Marshal(OutboundReply{ID: ev.ID, Reply: reply})
	if err != nil {
		s.bridge.log.Error("failed to encode reply", zap.String("event_id", ev.ID), zap.Error(err))
		return
	}
	select {
	case s.send <- data:
	case <-ctx.Done():
		s.bridge.log.Warn("reply dropped, bridge gone", zap.String("event_id", ev.ID))
	}
}

func (s *session) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.bridge.log.Warn("bridge write failed", zap.Error(err))
				s.conn.Close()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		case <-ctx.Done():
			s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			s.conn.Close()
			return
		}
	}
}
