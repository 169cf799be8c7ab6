package hub

import "time"

// RunReaper periodically queues an idle-room sweep through the router
// loop, so the sweep itself runs on the same single thread as every
// other state mutation. It must run in its own goroutine and stops when
// the hub shuts down.
func (h *Hub) RunReaper() {
	ticker := time.NewTicker(h.reapInterval)
	defer ticker.Stop()
	h.log.WithField("interval", h.reapInterval).Info("Idle reaper started")
	for {
		select {
		case <-h.done:
			h.log.Info("Idle reaper stopped")
			return
		case <-ticker.C:
			h.enqueue(message{kind: msgReapSweep})
		}
	}
}
