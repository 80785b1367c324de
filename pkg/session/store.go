package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sharpshop/sharpshop/internal/metrics"
)

// ErrNotFound is returned when a session does not exist or has expired.
var ErrNotFound = errors.New("session: not found")

const (
	// DefaultTTL is the inactivity expiry measured from last touch.
	DefaultTTL = 30 * time.Minute
	// DefaultMaxDuration is the absolute session lifetime from creation.
	DefaultMaxDuration = 2 * time.Hour
)

type entry struct {
	session      *Session
	createdAt    time.Time
	lastActivity time.Time
	pins         int
}

// Store is an in-memory session arena keyed by session id. Every read
// enforces both the inactivity TTL and the absolute maximum lifetime.
type Store struct {
	mu          sync.Mutex
	entries     map[string]*entry
	ttl         time.Duration
	maxDuration time.Duration

	// now is swappable for expiry tests
	now func() time.Time
}

// NewStore creates a session store with the given expiries.
func NewStore(ttl, maxDuration time.Duration) *Store {
	metrics.EnsureRegistered()

	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}

	return &Store{
		entries:     make(map[string]*entry),
		ttl:         ttl,
		maxDuration: maxDuration,
		now:         time.Now,
	}
}

// Create creates a new session for a customer interacting with a trader.
func (s *Store) Create(traderID, traderName, whatsappNumber string) *Session {
	now := s.now()
	sess := &Session{
		ID:             uuid.NewString(),
		TraderID:       traderID,
		TraderName:     traderName,
		WhatsAppNumber: whatsappNumber,
		CreatedAt:      now,
		LastActivity:   now,
		State:          StateBrowsing,
	}

	s.mu.Lock()
	s.entries[sess.ID] = &entry{
		session:      sess,
		createdAt:    now,
		lastActivity: now,
	}
	active := len(s.entries)
	s.mu.Unlock()

	metrics.RecordSessionCreated()
	metrics.SetActiveSessions(active)

	log.Debug().
		Str("session_id", sess.ID).
		Str("trader_id", traderID).
		Msg("Session created")

	return sess
}

// Get retrieves a session, evicting it if either expiry has been breached.
// A successful get refreshes last-activity.
func (s *Store) Get(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(sessionID)
}

// Acquire retrieves a session and pins it so that a concurrent sweep cannot
// evict it mid-turn. Callers must Release when the turn completes.
func (s *Store) Acquire(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.getLocked(sessionID)
	if err != nil {
		return nil, err
	}
	s.entries[sessionID].pins++
	return sess, nil
}

// Release unpins a session acquired for a turn.
func (s *Store) Release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[sessionID]; ok && e.pins > 0 {
		e.pins--
	}
}

func (s *Store) getLocked(sessionID string) (*Session, error) {
	e, ok := s.entries[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	now := s.now()
	if reason := s.expiredReason(e, now); reason != "" && e.pins == 0 {
		delete(s.entries, sessionID)
		metrics.RecordSessionEvicted(reason)
		metrics.SetActiveSessions(len(s.entries))
		log.Debug().
			Str("session_id", sessionID).
			Str("reason", reason).
			Msg("Session evicted on read")
		return nil, ErrNotFound
	}

	e.lastActivity = now
	e.session.LastActivity = now
	return e.session, nil
}

// Update stores the session state after a turn. Returns ErrNotFound if the
// session has been evicted or closed in the meantime.
func (s *Store) Update(sessionID string, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sessionID]
	if !ok {
		return ErrNotFound
	}

	e.session = sess
	e.lastActivity = s.now()
	return nil
}

// Close removes a session explicitly. Reports whether it existed.
func (s *Store) Close(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.entries[sessionID]
	if ok {
		delete(s.entries, sessionID)
		metrics.RecordSessionEvicted("closed")
		metrics.SetActiveSessions(len(s.entries))
	}
	return ok
}

// Sweep removes expired sessions to bound memory even with abandoned
// conversations. Pinned sessions are skipped. Returns the eviction count.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0

	for id, e := range s.entries {
		if e.pins > 0 {
			continue
		}
		if reason := s.expiredReason(e, now); reason != "" {
			delete(s.entries, id)
			metrics.RecordSessionEvicted(reason)
			evicted++
		}
	}

	if evicted > 0 {
		metrics.SetActiveSessions(len(s.entries))
		log.Info().Int("evicted", evicted).Msg("Session sweep completed")
	}

	return evicted
}

// Len returns the current session count.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) expiredReason(e *entry, now time.Time) string {
	if now.Sub(e.lastActivity) > s.ttl {
		return "ttl"
	}
	if now.Sub(e.createdAt) > s.maxDuration {
		return "max_duration"
	}
	return ""
}
