package registry

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/AuraReaper/voom/internal/contracts"
	"github.com/AuraReaper/voom/internal/observability"
)

// ErrActorOffline is returned by Send when no live session exists for the
// target actor. Callers treat it as a delivery report, not a fault.
var ErrActorOffline = errors.New("actor offline")

// Conn is the subset of *websocket.Conn the registry needs; tests substitute
// in-memory fakes.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// Registry tracks the live session for every connected rider and driver and
// owns all outbound delivery. Each session has a bounded outbound queue
// drained by a dedicated writer goroutine, so slow or dead connections never
// block the dispatch path. When a queue overflows, the oldest droppable
// message (location snapshots) is evicted; trip-state messages are never
// dropped.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *slog.Logger
	queueCap int

	// OnDisconnect is invoked after a session is removed, outside the
	// registry lock. Wiring points it at the trip lifecycle so a disconnect
	// mid-trip raises an ordinary cancellation event.
	OnDisconnect func(actorID string)
}

func New(logger *slog.Logger, queueCap int) *Registry {
	if queueCap <= 0 {
		queueCap = 32
	}
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger,
		queueCap: queueCap,
	}
}

// Register binds a connection to an actor id, replacing any previous session
// for the same id. Reconnection with the same id resumes identity; the stale
// session is closed without firing the disconnect hook.
func (r *Registry) Register(actorID string, conn Conn) *Session {
	s := newSession(actorID, conn, r.queueCap, r.logger)
	r.mu.Lock()
	old := r.sessions[actorID]
	r.sessions[actorID] = s
	r.mu.Unlock()
	if old != nil {
		// Replacing a session keeps the actor's connection count at one.
		old.close()
	} else {
		observability.ConnectionsActive.Inc()
	}
	go s.writeLoop()
	return s
}

// Unregister removes the session if it is still the current one for the
// actor. A session replaced by a reconnect is a no-op here, so the late
// deferred unregister of the old websocket handler cannot cancel the new
// session's trip.
func (r *Registry) Unregister(actorID string, s *Session) {
	r.mu.Lock()
	current, ok := r.sessions[actorID]
	if !ok || current != s {
		r.mu.Unlock()
		s.close()
		return
	}
	delete(r.sessions, actorID)
	r.mu.Unlock()
	s.close()
	observability.ConnectionsActive.Dec()
	if r.OnDisconnect != nil {
		r.OnDisconnect(actorID)
	}
}

// Send enqueues a trip-state message for the actor. These are never dropped;
// if the queue is full the oldest droppable entry is evicted to make room.
func (r *Registry) Send(actorID string, msg contracts.WSMessage) error {
	return r.deliver(actorID, msg, true)
}

// SendDroppable enqueues a best-effort message (location snapshots, live
// tracking). It is discarded when the actor's queue is full.
func (r *Registry) SendDroppable(actorID string, msg contracts.WSMessage) error {
	return r.deliver(actorID, msg, false)
}

func (r *Registry) deliver(actorID string, msg contracts.WSMessage, critical bool) error {
	r.mu.RLock()
	s, ok := r.sessions[actorID]
	r.mu.RUnlock()
	if !ok {
		return ErrActorOffline
	}
	s.enqueue(msg, critical)
	return nil
}

// IsOnline reports whether a live session exists for the actor.
func (r *Registry) IsOnline(actorID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[actorID]
	return ok
}
