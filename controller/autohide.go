package controller

import (
	"sync"
	"time"

	"github.com/nomis52/signup/view"
)

// autoHide owns the single pending hide of one message area.
// schedule and stop must be called with mu held; the timer callback takes mu itself.
type autoHide struct {
	mu    *sync.Mutex
	clock Clock
	ttl   time.Duration
	area  view.MessageArea

	timer Timer
	// gen invalidates callbacks whose timer was stopped too late to prevent them running.
	gen uint64
}

func newAutoHide(mu *sync.Mutex, clock Clock, ttl time.Duration, area view.MessageArea) *autoHide {
	return &autoHide{mu: mu, clock: clock, ttl: ttl, area: area}
}

// schedule replaces any pending hide with one firing ttl from now.
func (h *autoHide) schedule() {
	h.stop()
	gen := h.gen
	h.timer = h.clock.AfterFunc(h.ttl, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.gen != gen {
			return
		}
		h.timer = nil
		h.area.Hide()
	})
}

// stop cancels the pending hide, if any.
func (h *autoHide) stop() {
	h.gen++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// pending reports whether a hide is scheduled.
func (h *autoHide) pending() bool {
	return h.timer != nil
}
