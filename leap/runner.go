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
	"strconv"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/leapday/leap/stats"
	"github.com/facebook/leapday/leapsectz"
)

// Runner drives repeated cycles through the kernel leap second state
// machine: arm, wait and monitor, probe the hrtimer, toggle mode. Cleanup
// on stop or interruption is guaranteed and idempotent.
type Runner struct {
	cfg      *Config
	clock    Clock
	probe    *Probe
	out      io.Writer
	counters *stats.Counters

	mode      Mode
	records   []*CycleRecord
	published []leapsectz.LeapSecond

	cleanupMu sync.Mutex
}

// NewRunner creates a Runner starting in insert mode.
func NewRunner(cfg *Config, clock Clock, out io.Writer, counters *stats.Counters) *Runner {
	return &Runner{
		cfg:      cfg,
		clock:    clock,
		probe:    NewProbe(clock),
		out:      out,
		counters: counters,
		mode:     Insert,
	}
}

// SetPublishedLeaps provides the tzdata leap table, used only to note
// when a computed boundary coincides with a real published leap second.
func (r *Runner) SetPublishedLeaps(ls []leapsectz.LeapSecond) {
	r.published = ls
}

// Run executes cycles until the iteration budget is spent or ctx is
// cancelled. Cancellation is a clean stop; the returned error is non-nil
// only for faults that should fail the process (arm failure, missing TAI
// support, gateway errors).
func (r *Runner) Run(ctx context.Context) error {
	if r.cfg.ReportTAI {
		if _, err := r.clock.TAI(); err != nil {
			return fmt.Errorf("%w: %v", ErrTAIUnsupported, err)
		}
	}
	defer r.Cleanup()
	for i := 0; r.cfg.Iterations < 0 || i < r.cfg.Iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		rec, err := r.cycle(ctx)
		if rec != nil {
			r.records = append(r.records, rec)
		}
		if err != nil {
			var armErr *ArmError
			if errors.As(err, &armErr) {
				r.counters.IncArmFailures()
				return err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return err
		}
		r.counters.IncCycles()
		r.mode = r.mode.Flip()
	}
	r.summary()
	return nil
}

// cycle runs one full traversal of the state machine.
func (r *Runner) cycle(ctx context.Context) (*CycleRecord, error) {
	now, err := r.clock.Realtime()
	if err != nil {
		return nil, fmt.Errorf("reading wall clock: %w", err)
	}
	boundary := NextBoundary(now)
	if leapsectz.Scheduled(r.published, boundary) {
		log.Debugf("boundary %s coincides with a published leap second", utcTime(boundary))
	}

	if r.cfg.SetTime {
		if err := r.clock.SetRealtime(boundary - 10); err != nil {
			return nil, fmt.Errorf("setting time before boundary: %w", err)
		}
		fmt.Fprintf(r.out, "Setting time to %s\n", utcTime(boundary-10))
	}

	// reset leftover state from the previous cycle, then arm
	if err := r.clock.ClearState(); err != nil {
		return nil, fmt.Errorf("resetting time state: %w", err)
	}
	if _, err := Arm(r.clock, r.mode); err != nil {
		return nil, err
	}

	if r.cfg.ReportTAI {
		fmt.Fprintf(r.out, "Using TAI time, no inconsistencies should be seen!\n")
	}
	fmt.Fprintf(r.out, "Scheduling leap second %s for %s\n", r.mode, utcTime(boundary))

	mon := &Monitor{
		Clock:     r.clock,
		Out:       r.out,
		Counters:  r.counters,
		ReportTAI: r.cfg.ReportTAI,
		Interval:  r.cfg.PollInterval,
		Lead:      r.cfg.LeadSeconds,
		Tail:      r.cfg.TailSeconds,
	}
	rec, err := mon.Watch(ctx, boundary, r.mode)
	if err != nil {
		return rec, err
	}

	defect, target, woke, err := r.probe.Check()
	if err != nil {
		return rec, err
	}
	rec.TimerDefect = defect
	if defect {
		r.counters.IncTimerDefects()
		fmt.Fprintf(r.out, "ERROR: hrtimer early expiration failure observed: woke at %d.%09d, deadline was %d.%09d\n",
			woke.Sec, woke.Nsec, target.Sec, target.Nsec)
	}

	fmt.Fprintf(r.out, "Leap complete\n\n")
	return rec, nil
}

// Cleanup resets the kernel leap state machine to neutral. Idempotent and
// callable from the signal path while a run is finishing.
func (r *Runner) Cleanup() {
	r.cleanupMu.Lock()
	defer r.cleanupMu.Unlock()
	if err := r.clock.ClearState(); err != nil {
		log.Errorf("Clearing kernel time state: %v", err)
	}
}

// Records returns the per-cycle records accumulated so far.
func (r *Runner) Records() []*CycleRecord {
	return r.records
}

// summary prints the per-cycle table and probe lateness stats.
func (r *Runner) summary() {
	if len(r.records) == 0 {
		return
	}
	table := tablewriter.NewWriter(r.out)
	table.SetHeader([]string{"cycle", "mode", "boundary (UTC)", "ticks", "states", "interference", "hrtimer defect"})
	for i, rec := range r.records {
		table.Append([]string{
			strconv.Itoa(i),
			rec.Mode.String(),
			utcTime(rec.Boundary),
			strconv.Itoa(rec.Ticks),
			rec.StatesSeen(),
			strconv.FormatBool(rec.Interference),
			strconv.FormatBool(rec.TimerDefect),
		})
	}
	table.Render()
	if r.probe.Checks() > 0 {
		mean, stddev := r.probe.Lateness()
		fmt.Fprintf(r.out, "hrtimer wake lateness over %d checks: mean %.0f ns, stddev %.0f ns\n",
			r.probe.Checks(), mean, stddev)
	}
}

func utcTime(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(time.ANSIC)
}
