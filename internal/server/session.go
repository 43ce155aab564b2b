package server

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/skill-gap-wizard/internal/persistence"
	"github.com/jonathan/skill-gap-wizard/internal/wizard"
)

// subscriberBuffer bounds how far an SSE client may fall behind before
// events are dropped for it.
const subscriberBuffer = 64

// hub fans controller events out to SSE subscribers.
type hub struct {
	mu     sync.Mutex
	subs   map[chan wizard.Event]struct{}
	closed bool
	logger *zap.Logger
}

func newHub(logger *zap.Logger) *hub {
	return &hub{subs: make(map[chan wizard.Event]struct{}), logger: logger}
}

// subscribe returns a channel of events that is closed when the hub closes.
func (h *hub) subscribe() (<-chan wizard.Event, func()) {
	ch := make(chan wizard.Event, subscriberBuffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *hub) publish(ev wizard.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping event for slow subscriber", zap.String("event", string(ev.Type)))
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}

// session is one mounted wizard.
type session struct {
	id        string
	browserID string
	ctrl      *wizard.Controller
	bridge    *persistence.Bridge
	hub       *hub

	// batchMu runs upload batches of a session one after another.
	batchMu sync.Mutex
	workers sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
}

func newSession(id, browserID string, bridge *persistence.Bridge, logger *zap.Logger) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:        id,
		browserID: browserID,
		bridge:    bridge,
		hub:       newHub(logger),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// spawn runs fn in a tracked background goroutine unless the session is closed.
func (s *session) spawn(fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		fn(s.ctx)
	}()
	return true
}

// close unmounts the wizard and waits for background batches to stop.
func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if s.ctrl != nil {
		s.ctrl.Close()
	}
	s.workers.Wait()
	s.hub.close()
}

// registry tracks mounted sessions. A browser has at most one mounted
// session; mounting again unmounts the previous one.
type registry struct {
	mu        sync.RWMutex
	byID      map[string]*session
	byBrowser map[string]string
}

func newRegistry() *registry {
	return &registry{
		byID:      make(map[string]*session),
		byBrowser: make(map[string]string),
	}
}

// add registers sess and returns the session it replaced, if any.
func (r *registry) add(sess *session) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	var replaced *session
	if prev, ok := r.byBrowser[sess.browserID]; ok {
		replaced = r.byID[prev]
		delete(r.byID, prev)
	}
	r.byID[sess.id] = sess
	r.byBrowser[sess.browserID] = sess.id
	return replaced
}

func (r *registry) get(id string) (*session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.byID[id]
	if !ok {
		return nil, &ErrSessionNotFound{SessionID: id}
	}
	return sess, nil
}

func (r *registry) remove(id string) (*session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.byID[id]
	if !ok {
		return nil, &ErrSessionNotFound{SessionID: id}
	}
	delete(r.byID, id)
	if r.byBrowser[sess.browserID] == id {
		delete(r.byBrowser, sess.browserID)
	}
	return sess, nil
}

func (r *registry) drain() []*session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session, 0, len(r.byID))
	for id, sess := range r.byID {
		out = append(out, sess)
		delete(r.byID, id)
	}
	r.byBrowser = make(map[string]string)
	return out
}

func (r *registry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
