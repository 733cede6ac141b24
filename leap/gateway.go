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

// Package leap drives the kernel leap second state machine: it arms
// insertion or deletion requests, watches the clock across the resulting
// discontinuity, and probes for the known hrtimer early-expiration defect.
package leap

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/facebook/leapday/timex"
)

// Mode selects which leap second transition a cycle requests.
type Mode int

// Leap second request modes
const (
	Insert Mode = iota
	Delete
)

func (m Mode) String() string {
	if m == Delete {
		return "delete"
	}
	return "insert"
}

// Bit is the timex status bit that requests this transition.
func (m Mode) Bit() timex.Status {
	if m == Delete {
		return unix.STA_DEL
	}
	return unix.STA_INS
}

// Flip returns the opposite mode.
func (m Mode) Flip() Mode {
	if m == Insert {
		return Delete
	}
	return Insert
}

// Clock is the surface of the host time subsystem the exerciser drives.
// The kernel-backed implementation is SystemClock; tests substitute a
// scripted fake since the real thing needs CAP_SYS_TIME and real seconds.
type Clock interface {
	// Realtime reads CLOCK_REALTIME.
	Realtime() (unix.Timespec, error)
	// TAI reads CLOCK_TAI; errors on kernels without TAI support.
	TAI() (unix.Timespec, error)
	// SetRealtime steps the wall clock to the given second.
	SetRealtime(sec int64) error
	// ReadState reads the leap state machine without modifying it.
	ReadState() (timex.State, *unix.Timex, error)
	// SetStatus replaces the clock status bits.
	SetStatus(status timex.Status) (timex.State, error)
	// ClearState resets status and state to neutral. Idempotent.
	ClearState() error
	// SleepUntil sleeps to an absolute CLOCK_REALTIME deadline,
	// returning unix.EINTR on spurious wakes.
	SleepUntil(ts unix.Timespec) error
	// SleepMonotonic sleeps for a duration on CLOCK_MONOTONIC.
	SleepMonotonic(d time.Duration) error
}

// SystemClock is the kernel-backed Clock.
type SystemClock struct{}

// Realtime reads CLOCK_REALTIME.
func (SystemClock) Realtime() (unix.Timespec, error) { return timex.RealtimeNow() }

// TAI reads CLOCK_TAI.
func (SystemClock) TAI() (unix.Timespec, error) { return timex.TAINow() }

// SetRealtime steps CLOCK_REALTIME.
func (SystemClock) SetRealtime(sec int64) error { return timex.SetRealtime(sec) }

// ReadState reads the kernel clock state.
func (SystemClock) ReadState() (timex.State, *unix.Timex, error) { return timex.GetState() }

// SetStatus replaces the kernel clock status bits.
func (SystemClock) SetStatus(status timex.Status) (timex.State, error) {
	return timex.SetStatus(status)
}

// ClearState resets the kernel time state.
func (SystemClock) ClearState() error { return timex.ClearState() }

// SleepUntil sleeps to an absolute CLOCK_REALTIME deadline.
func (SystemClock) SleepUntil(ts unix.Timespec) error { return timex.SleepUntil(ts) }

// SleepMonotonic sleeps on CLOCK_MONOTONIC.
func (SystemClock) SleepMonotonic(d time.Duration) error { return timex.SleepMonotonic(d) }
