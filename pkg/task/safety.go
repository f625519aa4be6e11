package task

import (
	"time"

	"github.com/oculab/vacutherm/pkg/safety"
	"github.com/oculab/vacutherm/pkg/state"
)

// Safety is the watchdog loop: snapshot the system and let the monitor
// decide which alert pattern, if any, is due.
type Safety struct {
	monitor *safety.Monitor
	store   *state.Store
	period  time.Duration
}

var _ Ticker = (*Safety)(nil)

// NewSafety creates the watchdog loop.
func NewSafety(monitor *safety.Monitor, store *state.Store, period time.Duration) *Safety {
	return &Safety{monitor: monitor, store: store, period: period}
}

func (s *Safety) Name() string          { return "safety" }
func (s *Safety) Period() time.Duration { return s.period }

func (s *Safety) Tick(now time.Time) {
	snap, ok := s.store.Snapshot(now)
	if !ok {
		return
	}
	s.monitor.Evaluate(snap, now)
}
