/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package stats counts what the exerciser observed and serves the
// counters over http for monitoring, as JSON on / and in Prometheus
// format on /metrics.
package stats

import (
	"sync/atomic"
)

// Counters is the set of counters the exerciser maintains.
// All methods are safe for concurrent use; the http server reads them
// while the run loop increments.
type Counters struct {
	cycles        int64
	ticks         int64
	armFailures   int64
	interference  int64
	spuriousWakes int64
	timerDefects  int64
}

// NewCounters returns zeroed counters.
func NewCounters() *Counters {
	return &Counters{}
}

// IncCycles counts a completed cycle.
func (c *Counters) IncCycles() { atomic.AddInt64(&c.cycles, 1) }

// IncTicks counts one polling line.
func (c *Counters) IncTicks() { atomic.AddInt64(&c.ticks, 1) }

// IncArmFailures counts a request that was not reflected on read-back.
func (c *Counters) IncArmFailures() { atomic.AddInt64(&c.armFailures, 1) }

// IncInterference counts a pending request cleared by an external actor.
func (c *Counters) IncInterference() { atomic.AddInt64(&c.interference, 1) }

// IncSpuriousWakes counts a deadline sleep interrupted before its deadline.
func (c *Counters) IncSpuriousWakes() { atomic.AddInt64(&c.spuriousWakes, 1) }

// IncTimerDefects counts an observed hrtimer early expiration.
func (c *Counters) IncTimerDefects() { atomic.AddInt64(&c.timerDefects, 1) }

// Snapshot returns an atomic-ish view of all counters keyed by name.
func (c *Counters) Snapshot() map[string]int64 {
	return map[string]int64{
		"cycles":         atomic.LoadInt64(&c.cycles),
		"ticks":          atomic.LoadInt64(&c.ticks),
		"arm_failures":   atomic.LoadInt64(&c.armFailures),
		"interference":   atomic.LoadInt64(&c.interference),
		"spurious_wakes": atomic.LoadInt64(&c.spuriousWakes),
		"timer_defects":  atomic.LoadInt64(&c.timerDefects),
	}
}
