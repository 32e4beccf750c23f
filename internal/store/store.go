package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/runnerr0/llmredi/internal/domain"
	"github.com/runnerr0/llmredi/internal/logger"
)

// DefaultNotificationTTL is how long a non-persistent notification is shown.
const DefaultNotificationTTL = 5 * time.Second

// Listener observes every applied action with the states around it.
type Listener func(prev, next State, action Action)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// WithNotificationTTL overrides the auto-removal delay. Zero keeps
// notifications until removed explicitly.
func WithNotificationTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

type change struct {
	prev, next State
	action     Action
}

// Store owns the application State. Dispatch is safe for concurrent use;
// reducers run one at a time and listeners see changes in dispatch order.
type Store struct {
	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	order     []int
	nextID    int
	queue     []change
	draining  bool
	timers    map[string]*time.Timer
	closed    bool

	seq atomic.Uint64

	ttl time.Duration
	now func() time.Time
	log logger.Logger
}

// New creates a Store.
func New(opts ...Option) *Store {
	s := &Store{
		state:     Initial(),
		listeners: make(map[int]Listener),
		timers:    make(map[string]*time.Timer),
		ttl:       DefaultNotificationTTL,
		now:       time.Now,
		log:       logger.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current snapshot.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch applies a and notifies listeners. A listener may dispatch; the
// nested change is delivered after the current one. When another goroutine
// is already delivering changes, Dispatch returns as soon as the state is
// updated and that goroutine runs the listeners for a afterwards. Callers
// that need a listener's side effect in place on return must perform it
// themselves.
func (s *Store) Dispatch(a Action) State {
	s.log.Debug("Action dispatched", logger.String("action", a.Kind()))

	s.mu.Lock()
	prev := s.state
	next := Reduce(prev, a)
	s.state = next
	s.scheduleExpiry(a)
	s.queue = append(s.queue, change{prev: prev, next: next, action: a})
	if s.draining {
		s.mu.Unlock()
		return next
	}
	s.draining = true
	s.mu.Unlock()

	s.drain()
	return next
}

func (s *Store) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		listeners := make([]Listener, 0, len(s.order))
		for _, id := range s.order {
			listeners = append(listeners, s.listeners[id])
		}
		s.mu.Unlock()

		for _, l := range listeners {
			l(c.prev, c.next, c.action)
		}
	}
}

// Subscribe registers l and returns a func that unregisters it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.order = append(s.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.listeners, id)
			for i, v := range s.order {
				if v == id {
					s.order = append(s.order[:i:i], s.order[i+1:]...)
					break
				}
			}
		})
	}
}

// scheduleExpiry arms the removal timer of a new notification. Caller holds mu.
func (s *Store) scheduleExpiry(a Action) {
	add, ok := a.(AddNotification)
	if !ok || add.Notification.Persistent || s.ttl <= 0 || s.closed {
		return
	}
	id := add.Notification.ID
	s.timers[id] = time.AfterFunc(s.ttl, func() {
		s.mu.Lock()
		_, pending := s.timers[id]
		delete(s.timers, id)
		closed := s.closed
		s.mu.Unlock()
		if pending && !closed {
			s.Dispatch(RemoveNotification{ID: id})
		}
	})
}

// Notify adds a notification and returns its id.
func (s *Store) Notify(message string, typ domain.NotificationType, persistent bool) string {
	id := uuid.NewString()
	s.Dispatch(AddNotification{Notification: domain.Notification{
		ID:         id,
		Message:    message,
		Type:       typ,
		Persistent: persistent,
	}})
	return id
}

// Dismiss removes a notification and cancels its timer.
func (s *Store) Dismiss(id string) {
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.Dispatch(RemoveNotification{ID: id})
}

// CompleteAudit finishes the active audit, stamping the recent-audit entry.
func (s *Store) CompleteAudit(report *domain.Report) State {
	return s.Dispatch(CompleteAudit{Report: report, ID: uuid.NewString(), At: s.now()})
}

// NextSeq returns a fresh request sequence number for MergeJob.
func (s *Store) NextSeq() uint64 {
	return s.seq.Add(1)
}

// Close stops pending notification timers. Dispatch keeps working.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
