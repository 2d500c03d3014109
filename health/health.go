// Copyright (c) 2024 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package health tracks whether the block and relay loop of meshd keeps up.
package health

import (
	"sync"
	"time"
)

type Relaying struct {
	Timestamp *time.Time `json:"timestamp"`
	Delivered int        `json:"delivered"`
	TimedOut  int        `json:"timedOut"`
	// Failed counts packets refused by the destination on the last tick.
	Failed int `json:"failed"`
}

type Status struct {
	Healthy  bool      `json:"healthy"`
	Relaying *Relaying `json:"relaying"`
	LastErr  string    `json:"lastError,omitempty"`
}

type Health struct {
	lock      sync.RWMutex
	interval  time.Duration
	lastTick  time.Time
	delivered int
	timedOut  int
	failed    int
	lastErr   error
}

// New returns a Health expecting a tick every interval.
func New(interval time.Duration) *Health {
	return &Health{interval: interval}
}

// Tick records a completed block and relay pass.
func (h *Health) Tick(delivered, timedOut, failed int) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.lastTick = time.Now()
	h.delivered += delivered
	h.timedOut += timedOut
	h.failed = failed
	h.lastErr = nil
}

// Fail records a tick that could not complete.
func (h *Health) Fail(err error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.lastErr = err
}

// Status is healthy when the last tick is at most two intervals old and did
// not fail.
func (h *Health) Status() (*Status, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	var ts *time.Time
	if !h.lastTick.IsZero() {
		t := h.lastTick
		ts = &t
	}
	status := &Status{
		Healthy: ts != nil && time.Since(h.lastTick) <= 2*h.interval && h.lastErr == nil,
		Relaying: &Relaying{
			Timestamp: ts,
			Delivered: h.delivered,
			TimedOut:  h.timedOut,
			Failed:    h.failed,
		},
	}
	if h.lastErr != nil {
		status.LastErr = h.lastErr.Error()
	}
	return status, nil
}
