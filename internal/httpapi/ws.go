package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"argus/internal/broadcast"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// wsSubscriber adapts a gorilla/websocket connection to the
// broadcast.Subscriber contract. Writes are serialized through a single
// mutex since *websocket.Conn forbids concurrent writers.
type wsSubscriber struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *wsSubscriber) ID() string { return s.id }

func (s *wsSubscriber) Send(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, msg)
}

// handleEvents upgrades to a WebSocket, registers the connection as a
// subscriber, replays the retained window and current thread-state
// snapshot, then pumps pings until the client disconnects. The write lock
// is held from registration to the end of the replay, so no broadcast
// message reaches the client before the retained window.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := &wsSubscriber{id: uuid.NewString(), conn: conn}
	sub.mu.Lock()
	recent, state, counts := s.deps.Broadcaster.Subscribe(sub)

	defer func() {
		s.deps.Broadcaster.Unsubscribe(sub.id)
		_ = conn.Close()
	}()

	replay := make([][]byte, 0, len(recent)+1)
	for _, rec := range recent {
		replay = append(replay, rec.JSON)
	}
	replay = append(replay, broadcast.MarshalStateSnapshot(state, counts))
	var replayErr error
	for _, msg := range replay {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if replayErr = conn.WriteMessage(websocket.TextMessage, msg); replayErr != nil {
			break
		}
	}
	sub.mu.Unlock()
	if replayErr != nil {
		return
	}

	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			sub.mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			sub.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

var _ broadcast.Subscriber = (*wsSubscriber)(nil)
