// Package maintenance implements the Maintenance Guard (spec component D):
// detection of bus-restart windows that would otherwise look like mass
// device state changes (sentinel retained-message storms, spurious LWTs).
package maintenance

import (
	"sync"
	"time"

	"github.com/rustyeddy/otto/wbproto"
)

// Config is the guard's sentinel topic list and arming window, both
// config-driven (recovered from the Python original's app/maintenance.py,
// not hardcoded).
type Config struct {
	Topics   []string
	Duration time.Duration
}

// Guard arms itself whenever a sentinel topic is observed and stays armed
// for Duration; any topic observed while armed is also reported as part
// of the maintenance window.
type Guard struct {
	cfg Config

	mu      sync.Mutex
	armedAt time.Time
}

func New(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// SubscriptionTopics returns the sentinel topics the bus should be
// subscribed to so the guard can observe restarts.
func (g *Guard) SubscriptionTopics() []string {
	return append([]string(nil), g.cfg.Topics...)
}

// MaintenanceStarted must be called with every inbound topic before a
// handler honours it. It returns true if topic is itself a sentinel
// (arming the guard) or if the guard is still armed from a recent
// sentinel; otherwise it returns false, disarming the guard if the window
// has elapsed.
func (g *Guard) MaintenanceStarted(topic string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.isSentinel(topic) {
		g.armedAt = time.Now()
		return true
	}

	if g.armedAt.IsZero() {
		return false
	}
	if time.Since(g.armedAt) <= g.cfg.Duration {
		return true
	}
	g.armedAt = time.Time{}
	return false
}

func (g *Guard) isSentinel(topic string) bool {
	for _, pattern := range g.cfg.Topics {
		if wbproto.MatchTopic(pattern, topic) {
			return true
		}
	}
	return false
}
