package recorder

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Reaper reclaims recording sessions that stopped long ago but were never retrieved.
type Reaper struct {
	fr            *FlightRecorder
	stopCh        chan struct{}
	wg            sync.WaitGroup
	log           *logrus.Logger
	checkInterval time.Duration
	ttl           time.Duration

	mu      sync.Mutex
	started bool
}

// NewReaper creates and returns a new Reaper.
func NewReaper(fr *FlightRecorder, checkInterval time.Duration, ttl time.Duration, log *logrus.Logger) *Reaper {
	return &Reaper{
		fr:            fr,
		stopCh:        make(chan struct{}),
		log:           log,
		checkInterval: checkInterval,
		ttl:           ttl,
	}
}

// Start begins the background goroutine that sweeps expired sessions.
func (rp *Reaper) Start() {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	if rp.started {
		return
	}
	rp.started = true

	rp.wg.Add(1)
	go rp.runCleanupLoop()
	rp.log.WithFields(logrus.Fields{
		"interval": rp.checkInterval.String(),
		"ttl":      rp.ttl.String(),
	}).Info("Reaper started.")
}

// Stop signals the sweep goroutine to terminate and waits for it to finish.
func (rp *Reaper) Stop() {
	rp.mu.Lock()
	if !rp.started {
		rp.mu.Unlock()
		return
	}
	rp.started = false
	rp.mu.Unlock()

	close(rp.stopCh)
	rp.wg.Wait()
	rp.log.Info("Reaper stopped.")
}

// runCleanupLoop is the main loop for the sweep goroutine.
func (rp *Reaper) runCleanupLoop() {
	defer rp.wg.Done()
	ticker := time.NewTicker(rp.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rp.sweep(time.Now())
		case <-rp.stopCh:
			return
		}
	}
}

// sweep removes stopped sessions whose capture started before now minus the TTL.
// It is callable directly so the reclamation policy can be exercised deterministically.
func (rp *Reaper) sweep(now time.Time) int {
	cutoff := now.Add(-rp.ttl)
	cleaned := rp.fr.reapExpired(cutoff)
	if cleaned > 0 {
		rp.log.WithFields(logrus.Fields{"count": cleaned}).Info("cleaned up expired recording sessions")
	}
	return cleaned
}
