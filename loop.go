package main

import (
	"log"
	"time"
)

const (
	// TickRate is the fixed simulation rate per room
	TickRate     = 20
	TickInterval = time.Second / TickRate
	TickDT       = 1.0 / float64(TickRate)

	// After this many consecutive overruns the room is logged as
	// degraded. The rate is never corrected with catch-up ticks.
	overrunThreshold = 5
)

// runLoop drives the room at the fixed tick rate. Each tick is
// scheduled against the intended boundary, so a slow tick delays the
// next one but never causes a double-step, and a long stall does not
// produce a burst of catch-up ticks.
func (r *Room) runLoop() {
	start := time.Now()
	var n uint64
	timer := time.NewTimer(TickInterval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			r.tick(TickDT)
			n++
			next := start.Add(time.Duration(n+1) * TickInterval)
			wait := time.Until(next)
			if wait <= 0 {
				// Overrun: skip ahead to the next future boundary
				// instead of stepping for every missed one
				r.noteOverrun()
				behind := time.Duration(-wait)/TickInterval + 1
				n += uint64(behind)
				next = start.Add(time.Duration(n+1) * TickInterval)
				wait = time.Until(next)
				if wait < 0 {
					wait = 0
				}
			} else {
				r.clearOverrun()
			}
			timer.Reset(wait)
		case <-r.stop:
			return
		}
	}
}

func (r *Room) noteOverrun() {
	r.mu.Lock()
	r.overruns++
	degraded := r.overruns == overrunThreshold
	id := r.ID
	r.mu.Unlock()
	if degraded {
		log.Printf("room %s: tick rate degraded (%d consecutive overruns)", id, overrunThreshold)
	}
}

func (r *Room) clearOverrun() {
	r.mu.Lock()
	r.overruns = 0
	r.mu.Unlock()
}
