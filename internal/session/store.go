package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-booking/internal/appointments"
	"github.com/hackgods/dental-booking/internal/audit"
	"github.com/hackgods/dental-booking/internal/booking"
	"github.com/hackgods/dental-booking/internal/identity"
	"github.com/hackgods/dental-booking/internal/metrics"
	"github.com/hackgods/dental-booking/internal/wizard"
	"github.com/hackgods/dental-booking/pkg/logging"
)

var (
	ErrNotFound  = errors.New("wizard session not found")
	ErrForbidden = errors.New("wizard session belongs to another user")
	ErrSignedOut = errors.New("appointment list requires a signed-in user")
)

// Builder creates the per-principal components a session needs.
type Builder interface {
	Wizard(ctx context.Context, p identity.Principal, opts ...wizard.Option) *wizard.Orchestrator
	List(p identity.Principal) *appointments.ListController
	ListClient(p identity.Principal) appointments.Client
}

type Session struct {
	ID        string
	OwnerID   int64
	Wizard    *wizard.Orchestrator
	CreatedAt time.Time

	lastSeen time.Time
}

type listEntry struct {
	ctrl     *appointments.ListController
	token    string
	lastSeen time.Time
}

// Store owns the live wizard sessions and one appointment list per signed-in
// user. Sessions and lists idle longer than ttl are swept.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	lists    map[int64]*listEntry

	builder Builder
	ttl     time.Duration
	now     func() time.Time
	logger  *logging.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func NewStore(builder Builder, ttl time.Duration, logger *logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{
		sessions: make(map[string]*Session),
		lists:    make(map[int64]*listEntry),
		builder:  builder,
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// Create starts a new wizard session for p and begins loading specialties.
func (s *Store) Create(p identity.Principal) *Session {
	id := uuid.NewString()
	owner := ownerOf(p)

	ctx := audit.WithSessionID(s.ctx, id)
	orch := s.builder.Wizard(ctx, p, wizard.WithSuccessHandler(func(r booking.BookingResult) {
		s.bookingCreated(owner, id, r)
	}))

	now := s.now()
	sess := &Session{
		ID:        id,
		OwnerID:   owner,
		Wizard:    orch,
		CreatedAt: now,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	s.logger.Info("wizard session created", "session_id", id, "guest", p.Guest())

	orch.Start()
	return sess
}

// Get returns the session and marks it as used. A member's session is only
// visible to that member.
func (s *Store) Get(id string, p identity.Principal) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if sess.OwnerID != 0 && sess.OwnerID != ownerOf(p) {
		return nil, ErrForbidden
	}
	sess.lastSeen = s.now()
	return sess, nil
}

func (s *Store) Delete(id string, p identity.Principal) error {
	sess, err := s.Get(id, p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	sess.Wizard.Close()
	s.metrics.SetActiveSessions(n)
	s.logger.Info("wizard session deleted", "session_id", id)
	return nil
}

// List returns the appointment list of a signed-in user, creating it on
// first use. A cached list is rebound when the caller's token changed.
func (s *Store) List(p identity.Principal) (*appointments.ListController, error) {
	owner := ownerOf(p)
	if owner == 0 {
		return nil, ErrSignedOut
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.lists[owner]
	switch {
	case !ok:
		entry = &listEntry{ctrl: s.builder.List(p), token: p.Token}
		s.lists[owner] = entry
	case entry.token != p.Token:
		entry.ctrl.Rebind(s.builder.ListClient(p))
		entry.token = p.Token
		s.logger.Info("appointment list rebound to renewed token", "user_id", owner)
	}
	entry.lastSeen = s.now()
	return entry.ctrl, nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts every session and list idle for longer than the ttl and
// returns how many sessions were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	for owner, entry := range s.lists {
		if entry.lastSeen.Before(cutoff) {
			delete(s.lists, owner)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Wizard.Close()
	}
	s.metrics.SetActiveSessions(n)
	return len(expired)
}

// Run sweeps on every tick until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			start := time.Now()
			if n := s.Sweep(); n > 0 {
				s.logger.Info("swept idle wizard sessions", "evicted", n, "remaining", s.Len(), "took", time.Since(start))
			}
		}
	}
}

// Close stops every session's in-flight work.
func (s *Store) Close() {
	s.cancel()

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Wizard.Close()
	}
	s.metrics.SetActiveSessions(0)
}

func (s *Store) bookingCreated(owner int64, sessionID string, r booking.BookingResult) {
	s.logger.Info("booking completed", "session_id", sessionID, "appointment_id", r.AppointmentID)
	if owner == 0 {
		return
	}

	s.mu.Lock()
	entry := s.lists[owner]
	s.mu.Unlock()

	if entry != nil {
		entry.ctrl.Invalidate()
	}
}

func ownerOf(p identity.Principal) int64 {
	if p.Identity == nil {
		return 0
	}
	return p.Identity.ID
}
