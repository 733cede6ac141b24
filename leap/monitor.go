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
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/facebook/leapday/leap/stats"
	"github.com/facebook/leapday/timex"
)

// StateTransition is one observed change of the kernel clock state.
type StateTransition struct {
	At    unix.Timespec
	State timex.State
}

// CycleRecord captures what one cycle observed. It lives for the duration
// of the cycle, feeds the end-of-run summary, and is not persisted.
type CycleRecord struct {
	Boundary      int64
	Mode          Mode
	Transitions   []StateTransition
	Ticks         int
	SpuriousWakes int
	Interference  bool
	TimerDefect   bool
}

// StatesSeen returns the distinct state labels in observation order.
func (r *CycleRecord) StatesSeen() string {
	labels := make([]string, 0, len(r.Transitions))
	for _, tr := range r.Transitions {
		labels = append(labels, tr.State.String())
	}
	return strings.Join(labels, ", ")
}

// Monitor supervises the discontinuity window around one boundary: the
// absolute-deadline wait to boundary-Lead seconds, the interference
// re-check, and the polling loop until Tail seconds past the boundary.
type Monitor struct {
	Clock     Clock
	Out       io.Writer
	Counters  *stats.Counters
	ReportTAI bool
	// Interval is the polling cadence, measured on CLOCK_MONOTONIC so the
	// wall clock jump under test cannot perturb it.
	Interval time.Duration
	// Lead and Tail bound the window in seconds around the boundary.
	Lead int64
	Tail int64
}

// Watch runs the window for the given boundary. The window always runs to
// its end even if the state returns to TIME_OK early: the full
// insert/oop/wait sequence is what we are here to observe.
func (m *Monitor) Watch(ctx context.Context, boundary int64, mode Mode) (*CycleRecord, error) {
	rec := &CycleRecord{Boundary: boundary, Mode: mode}

	// Sleep to an absolute deadline, re-arming to the same target on
	// spurious wakes. A relative sleep here would be shortened or skipped
	// when the wall clock is stepped mid-sleep.
	target := unix.Timespec{Sec: boundary - m.Lead}
	for {
		err := m.Clock.SleepUntil(target)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			log.Debugf("Something woke us up, returning to sleep")
			rec.SpuriousWakes++
			m.Counters.IncSpuriousWakes()
			if ctx.Err() != nil {
				return rec, ctx.Err()
			}
			continue
		}
		return rec, fmt.Errorf("sleeping to %d: %w", target.Sec, err)
	}

	// A competing time sync agent may have cleared the pending bit while
	// we slept. Re-arm once; if interference recurs inside the window it
	// shows up in the tick output and never fails the cycle.
	_, tx, err := m.Clock.ReadState()
	if err != nil {
		return rec, fmt.Errorf("checking status before boundary: %w", err)
	}
	if timex.Status(tx.Status)&(unix.STA_INS|unix.STA_DEL) == 0 {
		log.Warningf("Something cleared STA_INS/STA_DEL, setting it again")
		rec.Interference = true
		m.Counters.IncInterference()
		if _, err := Arm(m.Clock, mode); err != nil {
			log.Warningf("Re-arming %s after interference failed: %v", mode, err)
		}
		if _, tx, err = m.Clock.ReadState(); err != nil {
			return rec, fmt.Errorf("re-reading status after re-arm: %w", err)
		}
	}

	// Poll on a monotonic cadence until the wall clock is past the window.
	now := tx.Time.Sec
	for now < boundary+m.Tail {
		state, tx, err := m.Clock.ReadState()
		if err != nil {
			return rec, fmt.Errorf("polling clock state: %w", err)
		}
		m.printTick(state, tx)
		rec.Ticks++
		m.Counters.IncTicks()
		if n := len(rec.Transitions); n == 0 || rec.Transitions[n-1].State != state {
			rec.Transitions = append(rec.Transitions, StateTransition{At: txTime(tx), State: state})
		}
		now = tx.Time.Sec
		if err := m.Clock.SleepMonotonic(m.Interval); err != nil && !errors.Is(err, unix.EINTR) {
			return rec, fmt.Errorf("polling sleep: %w", err)
		}
		if ctx.Err() != nil {
			return rec, ctx.Err()
		}
	}
	return rec, nil
}

// printTick emits one observation line.
func (m *Monitor) printTick(state timex.State, tx *unix.Timex) {
	if m.ReportTAI {
		tai, err := m.Clock.TAI()
		if err != nil {
			log.Errorf("Reading CLOCK_TAI: %v", err)
			return
		}
		fmt.Fprintf(m.Out, "%d sec, %9d ns\t%s\n", tai.Sec, tai.Nsec, stateLabel(state))
		return
	}
	ts := txTime(tx)
	fmt.Fprintf(m.Out, "%s + %6d us (%d)\t%s\n",
		time.Unix(ts.Sec, 0).UTC().Format(time.ANSIC),
		ts.Nsec/1000,
		tx.Tai,
		stateLabel(state))
}

// txTime converts the wall time reported by adjtimex to a timespec.
// With STA_NANO set the kernel reports the sub-second part in nanoseconds.
func txTime(tx *unix.Timex) unix.Timespec {
	if tx.Status&unix.STA_NANO != 0 {
		return unix.Timespec{Sec: tx.Time.Sec, Nsec: tx.Time.Usec}
	}
	return unix.Timespec{Sec: tx.Time.Sec, Nsec: tx.Time.Usec * 1000}
}

func stateLabel(s timex.State) string {
	switch s {
	case timex.StateOK:
		return color.GreenString("%s", s)
	case timex.StateIns, timex.StateDel, timex.StateOOP, timex.StateWait:
		return color.YellowString("%s", s)
	default:
		return color.RedString("%s", s)
	}
}
