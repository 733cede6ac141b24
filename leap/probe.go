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

package leap

import (
	"errors"
	"fmt"

	"github.com/eclesh/welford"
	"golang.org/x/sys/unix"

	"github.com/facebook/leapday/timex"
)

// probeSleepNsec is the probe deadline offset: half a second is enough to
// land the wake inside the post-discontinuity window.
const probeSleepNsec = timex.NsecPerSec / 2

// Probe checks for the known hrtimer defect where a high resolution timer
// races the leap second adjustment and expires before its absolute
// deadline. A defect is reported, never fatal.
type Probe struct {
	Clock    Clock
	lateness *welford.Stats
	checks   int
}

// NewProbe creates a probe on the given clock.
func NewProbe(c Clock) *Probe {
	return &Probe{Clock: c, lateness: welford.New()}
}

// Check sleeps to now+0.5s on CLOCK_REALTIME and compares the intended
// deadline against the actual wake. Returns whether the defect was
// observed, plus both times for reporting.
func (p *Probe) Check() (defect bool, target, woke unix.Timespec, err error) {
	now, err := p.Clock.Realtime()
	if err != nil {
		return false, target, woke, fmt.Errorf("reading clock before probe: %w", err)
	}
	target = timex.AddNsec(now, probeSleepNsec)
	if err := p.Clock.SleepUntil(target); err != nil && !errors.Is(err, unix.EINTR) {
		return false, target, woke, fmt.Errorf("probe sleep: %w", err)
	}
	woke, err = p.Clock.Realtime()
	if err != nil {
		return false, target, woke, fmt.Errorf("reading clock after probe: %w", err)
	}
	p.checks++
	p.lateness.Add(float64(diffNsec(target, woke)))
	return !timex.InOrder(target, woke), target, woke, nil
}

// Checks returns how many probes ran.
func (p *Probe) Checks() int {
	return p.checks
}

// Lateness returns mean and standard deviation of observed wake lateness
// in nanoseconds. Negative mean would itself indicate early wakes.
func (p *Probe) Lateness() (mean, stddev float64) {
	return p.lateness.Mean(), p.lateness.Stddev()
}

// diffNsec returns b-a in nanoseconds.
func diffNsec(a, b unix.Timespec) int64 {
	return (b.Sec-a.Sec)*timex.NsecPerSec + (b.Nsec - a.Nsec)
}
