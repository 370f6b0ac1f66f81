package jobs

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/atlwiki/wikilink/internal/store"
)

// Scheduler manages the background reconciliation jobs: the expired-link
// purge, the role-grant sweep and the OAuth session cleanup. The jobs are
// independent; none of them takes a lock the user-triggered flows share.
type Scheduler struct {
	cron        *cron.Cron
	links       *store.LinkStore
	sessions    *store.SessionStore
	sweep       *RoleSweep
	purgeEvery  time.Duration
	sweepEvery  time.Duration
	tokenExpiry time.Duration
}

// NewScheduler creates a job scheduler
func NewScheduler(links *store.LinkStore, sessions *store.SessionStore, sweep *RoleSweep, purgeIntervalMinutes, grantIntervalMinutes, tokenExpiryHours int) *Scheduler {
	return &Scheduler{
		cron:        cron.New(),
		links:       links,
		sessions:    sessions,
		sweep:       sweep,
		purgeEvery:  time.Duration(purgeIntervalMinutes) * time.Minute,
		sweepEvery:  time.Duration(grantIntervalMinutes) * time.Minute,
		tokenExpiry: time.Duration(tokenExpiryHours) * time.Hour,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.AddFunc(fmt.Sprintf("@every %s", s.purgeEvery), s.purgeExpiredLinks)
	s.cron.AddFunc(fmt.Sprintf("@every %s", s.sweepEvery), s.sweep.Run)
	s.cron.AddFunc("@every 10m", s.cleanupSessions)

	s.cron.Start()
	log.Println("Job scheduler started")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Job scheduler stopped")
}

// purgeExpiredLinks sweeps unverified records whose token issuance is past
// the coarse expiry window. Failures are logged and retried next tick.
func (s *Scheduler) purgeExpiredLinks() {
	cutoff := time.Now().UTC().Add(-s.tokenExpiry)

	deleted, err := s.links.PurgeExpired(cutoff)
	if err != nil {
		log.Printf("Purge: failed to purge expired links: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("Purge: removed %d old unverified links", deleted)
	}
}

// cleanupSessions removes expired OAuth correlation sessions
func (s *Scheduler) cleanupSessions() {
	deleted, err := s.sessions.DeleteExpired(time.Now().UTC())
	if err != nil {
		log.Printf("OAuth cleanup: failed to delete expired sessions: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("OAuth cleanup: deleted %d expired sessions", deleted)
	}
}
