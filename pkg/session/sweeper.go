package session

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often the background sweep runs.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper runs Store.Sweep on a fixed interval independent of request
// traffic.
type Sweeper struct {
	store    *Store
	interval time.Duration
	c        *cron.Cron
	entryID  cron.EntryID
	running  bool
}

// NewSweeper creates a sweeper for the store.
func NewSweeper(store *Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		c:        cron.New(),
	}
}

// Start begins periodic sweeping.
func (s *Sweeper) Start() error {
	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	id, err := s.c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.store.Sweep()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	s.entryID = id
	s.c.Start()
	s.running = true

	log.Info().
		Dur("interval", s.interval).
		Msg("Session sweeper started")

	return nil
}

// Stop halts periodic sweeping.
func (s *Sweeper) Stop() {
	if !s.running {
		return
	}
	s.c.Stop()
	s.running = false
	log.Info().Msg("Session sweeper stopped")
}

// IsRunning reports whether the sweeper is active.
func (s *Sweeper) IsRunning() bool {
	return s.running
}
