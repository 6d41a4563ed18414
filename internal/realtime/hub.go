package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type EventType string

const (
	EventDetection EventType = "detection"
	EventProgress  EventType = "progress"
	EventComplete  EventType = "complete"
	EventError     EventType = "error"
)

// Event is one push-channel message, scoped to a video and optionally an
// annotation session.
type Event struct {
	Type      EventType   `json:"type"`
	VideoID   uuid.UUID   `json:"video_id"`
	SessionID *uuid.UUID  `json:"session_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

const (
	writeWait      = 10 * time.Second
	clientBuffer   = 32
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 512
)

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// Hub fans detection-pipeline events out to WebSocket subscribers, one
// subscriber set per video. Slow subscribers have events dropped rather
// than blocking the publisher; events for videos nobody watches are
// discarded, which also makes double delivery after teardown harmless.
type Hub struct {
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[*subscriber]struct{}
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Cross-origin dashboards are expected; auth happens in the
				// HTTP middleware before the upgrade.
				return true
			},
		},
		subscribers: make(map[uuid.UUID]map[*subscriber]struct{}),
	}
}

// Subscribe upgrades the request and streams events for one video until the
// client disconnects.
func (h *Hub) Subscribe(w http.ResponseWriter, r *http.Request, videoID uuid.UUID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan Event, clientBuffer),
	}

	h.mu.Lock()
	if h.subscribers[videoID] == nil {
		h.subscribers[videoID] = make(map[*subscriber]struct{})
	}
	h.subscribers[videoID][sub] = struct{}{}
	h.mu.Unlock()

	h.log.Debug().Str("video_id", videoID.String()).Msg("realtime subscriber connected")

	go h.writePump(videoID, sub)
	go h.readPump(videoID, sub)
	return nil
}

// Publish delivers an event to every subscriber of its video.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subscribers[event.VideoID] {
		select {
		case sub.send <- event:
		default:
			// Buffer full; the subscriber is too slow, drop the event.
		}
	}
}

// CloseVideo disconnects every subscriber of a video. Called when the
// video's annotation view is torn down.
func (h *Hub) CloseVideo(videoID uuid.UUID) {
	h.mu.Lock()
	subs := h.subscribers[videoID]
	delete(h.subscribers, videoID)
	h.mu.Unlock()

	for sub := range subs {
		close(sub.send)
	}
}

// SubscriberCount reports how many clients watch a video.
func (h *Hub) SubscriberCount(videoID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[videoID])
}

func (h *Hub) remove(videoID uuid.UUID, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.subscribers[videoID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(h.subscribers, videoID)
	}
	close(sub.send)
}

func (h *Hub) writePump(videoID uuid.UUID, sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case event, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(event); err != nil {
				h.log.Debug().Err(err).Str("video_id", videoID.String()).Msg("realtime write failed")
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; its job is to notice disconnects and
// answer pings.
func (h *Hub) readPump(videoID uuid.UUID, sub *subscriber) {
	defer h.remove(videoID, sub)

	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}
