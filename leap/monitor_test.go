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
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/facebook/leapday/leap/stats"
	"github.com/facebook/leapday/timex"
)

const testEpoch = int64(1700000000)

func newMonitor(f *fakeClock, out *bytes.Buffer) (*Monitor, *stats.Counters) {
	counters := stats.NewCounters()
	return &Monitor{
		Clock:    f,
		Out:      out,
		Counters: counters,
		Interval: 500 * time.Millisecond,
		Lead:     3,
		Tail:     2,
	}, counters
}

func TestWatchWindow(t *testing.T) {
	f := newFakeClock(testEpoch)
	out := &bytes.Buffer{}
	m, counters := newMonitor(f, out)

	_, err := Arm(f, Insert)
	require.NoError(t, err)
	boundary := f.boundary

	rec, err := m.Watch(context.Background(), boundary, Insert)
	require.NoError(t, err)

	// [B-3s, B+2s] inclusive at 0.5s spacing is 11 ticks, and the cadence
	// is carried by the monotonic source: one monotonic sleep per tick.
	require.Equal(t, 11, rec.Ticks)
	require.Equal(t, rec.Ticks, f.monoSleeps)
	require.Equal(t, int64(11), counters.Snapshot()["ticks"])

	// pending insert before the boundary, wait after; never an early exit
	require.Len(t, rec.Transitions, 2)
	require.Equal(t, timex.StateIns, rec.Transitions[0].State)
	require.Equal(t, boundary-3, rec.Transitions[0].At.Sec)
	require.Equal(t, timex.StateWait, rec.Transitions[1].State)
	require.Equal(t, "TIME_INS, TIME_WAIT", rec.StatesSeen())

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 11)
	require.Contains(t, lines[0], "TIME_INS")
	require.Contains(t, lines[10], "TIME_WAIT")
}

func TestWatchLeapInsertion(t *testing.T) {
	f := newFakeClock(testEpoch)
	f.fireLeap = true
	out := &bytes.Buffer{}
	m, _ := newMonitor(f, out)

	_, err := Arm(f, Insert)
	require.NoError(t, err)

	rec, err := m.Watch(context.Background(), f.boundary, Insert)
	require.NoError(t, err)
	// the inserted second repeats inside the window, so the wall clock
	// takes longer to leave it; the loop must ride the jump out
	require.Equal(t, 13, rec.Ticks)
	require.Equal(t, "TIME_INS, TIME_WAIT", rec.StatesSeen())
}

func TestWatchLeapDeletion(t *testing.T) {
	f := newFakeClock(testEpoch)
	f.fireLeap = true
	out := &bytes.Buffer{}
	m, _ := newMonitor(f, out)

	_, err := Arm(f, Delete)
	require.NoError(t, err)

	rec, err := m.Watch(context.Background(), f.boundary, Delete)
	require.NoError(t, err)
	// deletion skips a second, shortening the wall-clock walk
	require.Equal(t, 9, rec.Ticks)
	require.Equal(t, "TIME_DEL, TIME_WAIT", rec.StatesSeen())
}

func TestWatchSpuriousWake(t *testing.T) {
	f := newFakeClock(testEpoch)
	f.sleepErrs = []error{unix.EINTR, unix.EINTR, nil}
	out := &bytes.Buffer{}
	m, counters := newMonitor(f, out)

	_, err := Arm(f, Insert)
	require.NoError(t, err)
	boundary := f.boundary

	rec, err := m.Watch(context.Background(), boundary, Insert)
	require.NoError(t, err)
	require.Equal(t, 2, rec.SpuriousWakes)
	require.Equal(t, int64(2), counters.Snapshot()["spurious_wakes"])
	// re-sleeping to the same absolute deadline must not shorten the wait
	require.Equal(t, boundary-3, rec.Transitions[0].At.Sec)
	require.Equal(t, 11, rec.Ticks)
}

func TestWatchInterference(t *testing.T) {
	f := newFakeClock(testEpoch)
	f.clearOnWake = true
	out := &bytes.Buffer{}
	m, counters := newMonitor(f, out)

	_, err := Arm(f, Insert)
	require.NoError(t, err)
	boundary := f.boundary

	rec, err := m.Watch(context.Background(), boundary, Insert)
	require.NoError(t, err)
	require.True(t, rec.Interference)
	require.Equal(t, int64(1), counters.Snapshot()["interference"])
	// exactly one re-arm on top of the original request
	require.Equal(t, []timex.Status{unix.STA_INS, unix.STA_INS}, f.statusWrites)
	require.Equal(t, 11, rec.Ticks)
}

func TestWatchReportTAI(t *testing.T) {
	f := newFakeClock(testEpoch)
	out := &bytes.Buffer{}
	m, _ := newMonitor(f, out)
	m.ReportTAI = true

	_, err := Arm(f, Insert)
	require.NoError(t, err)

	rec, err := m.Watch(context.Background(), f.boundary, Insert)
	require.NoError(t, err)
	require.Equal(t, 11, rec.Ticks)
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 11)
	require.Contains(t, lines[0], " sec,")
	require.Contains(t, lines[0], " ns")
	require.Contains(t, lines[0], "TIME_INS")
}

func TestWatchCancelled(t *testing.T) {
	f := newFakeClock(testEpoch)
	out := &bytes.Buffer{}
	m, _ := newMonitor(f, out)

	_, err := Arm(f, Insert)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Watch(ctx, f.boundary, Insert)
	require.ErrorIs(t, err, context.Canceled)
}
