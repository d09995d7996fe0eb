package registry

import (
	"log/slog"
	"sync"

	"github.com/AuraReaper/voom/internal/contracts"
	"github.com/AuraReaper/voom/internal/observability"
)

type outbound struct {
	msg      contracts.WSMessage
	critical bool
}

// Session is one actor's live connection plus its outbound queue. The queue
// is a mutex-guarded deque rather than a channel because overflow handling
// needs to inspect and evict queued entries, which channels cannot do.
type Session struct {
	actorID string
	conn    Conn
	logger  *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []outbound
	limit  int
	closed bool
}

func newSession(actorID string, conn Conn, limit int, logger *slog.Logger) *Session {
	s := &Session{actorID: actorID, conn: conn, limit: limit, logger: logger}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// enqueue adds a message for the writer goroutine. Overflow policy: droppable
// messages are discarded when the queue is full; critical messages evict the
// oldest droppable entry instead, and if every queued entry is critical the
// queue grows past the limit rather than lose a trip-state event.
func (s *Session) enqueue(msg contracts.WSMessage, critical bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if len(s.queue) >= s.limit {
		if !critical {
			observability.MessagesDropped.Inc()
			return
		}
		for i, o := range s.queue {
			if !o.critical {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				observability.MessagesDropped.Inc()
				break
			}
		}
	}
	s.queue = append(s.queue, outbound{msg: msg, critical: critical})
	s.cond.Signal()
}

// writeLoop drains the queue onto the connection until the session closes.
// A write error abandons the loop; the read side of the websocket handler
// notices the dead connection and unregisters.
func (s *Session) writeLoop() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		o := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := s.conn.WriteJSON(o.msg); err != nil {
			s.logger.Warn("ws write failed", "actor_id", s.actorID, "type", o.msg.Type, "error", err)
			s.close()
			return
		}
	}
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()
	_ = s.conn.Close()
}
