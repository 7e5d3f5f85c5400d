package selector

import (
	"context"
	"time"

	"github.com/creativeops/thumbselect/internal/logging"
)

// Reaper force-closes sessions whose clients went away. Sessions live only
// in memory, so without it a crashed or navigated-away client would pin its
// session for the lifetime of the process.
type Reaper struct {
	manager  *Manager
	interval time.Duration
	maxIdle  time.Duration
	log      *logging.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewReaper creates a reaper sweeping manager every interval for sessions
// idle longer than maxIdle.
func NewReaper(manager *Manager, interval, maxIdle time.Duration, log *logging.Logger) *Reaper {
	if log == nil {
		log = logging.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reaper{
		manager:  manager,
		interval: interval,
		maxIdle:  maxIdle,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the sweep loop.
func (r *Reaper) Start() {
	go r.loop()
	r.log.Infof("Session reaper started (interval: %s, max idle: %s)", r.interval, r.maxIdle)
}

// Stop stops the sweep loop.
func (r *Reaper) Stop() {
	r.cancel()
}

func (r *Reaper) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if n := r.manager.ReapIdle(r.maxIdle); n > 0 {
				r.log.Infof("Reaped %d idle sessions (%d still open)", n, r.manager.Len())
			}
		}
	}
}
