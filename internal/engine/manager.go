package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Manager owns the live reconciliation sessions, keyed by annotation
// session id. At most one video is open per annotation session; opening a
// new one tears the previous engine session down first, so its tracker
// state can never leak into the next video.
type Manager struct {
	store AnnotationStore
	log   zerolog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager(store AnnotationStore, log zerolog.Logger) *Manager {
	return &Manager{
		store:    store,
		log:      log,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Open creates the engine session for (sessionID, videoID) and loads its
// annotations. The session is registered and usable even when the load
// fails: it is then ready with an empty list and the error is surfaced to
// the caller.
func (m *Manager) Open(ctx context.Context, sessionID, videoID uuid.UUID, frameRate float64) (*Session, error) {
	session := NewSession(videoID, frameRate, m.store, m.log)

	m.mu.Lock()
	if prev, ok := m.sessions[sessionID]; ok {
		prev.Close()
	}
	m.sessions[sessionID] = session
	m.mu.Unlock()

	return session, session.Load(ctx)
}

func (m *Manager) Get(sessionID uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	return session, ok
}

// Close tears down the engine session if one is open. Idempotent.
func (m *Manager) Close(sessionID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[sessionID]; ok {
		session.Close()
		delete(m.sessions, sessionID)
	}
}
