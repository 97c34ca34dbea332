package editor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/vssflow/internal/apperr"
	"github.com/starford/vssflow/internal/canvas"
	"github.com/starford/vssflow/internal/gateway"
	"github.com/starford/vssflow/internal/graph"
	"github.com/starford/vssflow/internal/inspector"
	"github.com/starford/vssflow/internal/metrics"
	"github.com/starford/vssflow/internal/sse"
)

// DefaultIdleTTL is how long an untouched session survives.
const DefaultIdleTTL = 30 * time.Minute

// Option configures a Manager.
type Option func(*Manager)

// WithIdleTTL sets the idle expiry of sessions.
func WithIdleTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithEvents publishes graph changes and notifications to events.
func WithEvents(events Events) Option {
	return func(m *Manager) {
		m.events = events
	}
}

// WithDrafts enables draft export and import.
func WithDrafts(d Drafts) Option {
	return func(m *Manager) {
		m.drafts = d
	}
}

// WithMetrics records session and mutation metrics.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIDFuncs overrides the session and node id generators.
func WithIDFuncs(sessionID, nodeID func() string) Option {
	return func(m *Manager) {
		m.newSessionID = sessionID
		m.newNodeID = nodeID
	}
}

// Manager owns the live editing sessions.
type Manager struct {
	api     gateway.ScriptsAPI
	events  Events
	drafts  Drafts
	metrics *metrics.Metrics
	logger  *slog.Logger
	ttl     time.Duration
	now     func() time.Time

	newSessionID func() string
	newNodeID    func() string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a manager whose sessions persist through api.
func NewManager(api gateway.ScriptsAPI, opts ...Option) *Manager {
	m := &Manager{
		api:          api,
		logger:       slog.Default(),
		ttl:          DefaultIdleTTL,
		now:          time.Now,
		newSessionID: uuid.NewString,
		newNodeID:    uuid.NewString,
		sessions:     make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create opens a new session holding the seed graph.
func (m *Manager) Create() *Session {
	store := graph.New(graph.WithIDFunc(m.newNodeID))
	ctrl := canvas.NewController(store)
	s := &Session{
		id:        m.newSessionID(),
		createdAt: m.now(),
		store:     store,
		canvas:    ctrl,
		inspector: inspector.New(store, ctrl),
		drafts:    m.drafts,
		events:    m.events,
		metrics:   m.metrics,
		newNodeID: m.newNodeID,
	}
	s.gateway = gateway.New(m.api, store, gateway.NotifierFunc(s.Notify),
		gateway.WithMetrics(m.metrics),
		gateway.WithLogger(m.logger.With(slog.String("session", s.id))),
		gateway.WithIDFunc(m.newNodeID),
	)
	s.touch(s.createdAt)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.metrics.SessionOpened()
	m.logger.Info("session created", slog.String("session", s.id))
	return s
}

// Get returns a live session and marks it used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("editor: session %s: %w", id, apperr.ErrNotFound)
	}
	s.touch(m.now())
	return s, nil
}

// List returns summaries of all sessions, oldest first.
func (m *Manager) List() []Info {
	m.mu.RLock()
	out := make([]Info, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Info())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close discards a session and its unsaved graph.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("editor: session %s: %w", id, apperr.ErrNotFound)
	}
	m.ended(id, "closed")
	return nil
}

// Sweep closes every session idle for longer than the TTL and returns how
// many were closed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.ttl)
	var expired []string

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.ended(id, "expired")
	}
	return len(expired)
}

// Run sweeps expired sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Info("sessions expired", slog.Int("count", n))
			}
		}
	}
}

func (m *Manager) ended(id, reason string) {
	m.metrics.SessionClosed()
	if m.events != nil {
		m.events.Publish(sse.Event{
			Type:    sse.TypeSessionEnded,
			Session: id,
			Data:    map[string]string{"session": id, "reason": reason},
		})
	}
	m.logger.Info("session ended", slog.String("session", id), slog.String("reason", reason))
}
