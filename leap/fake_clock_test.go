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
	"time"

	"golang.org/x/sys/unix"

	"github.com/facebook/leapday/timex"
)

// fakeClock emulates just enough of the kernel time subsystem to exercise
// the run loop without CAP_SYS_TIME or real seconds: a wall clock advanced
// by sleeps, a monotonic counter as ground truth for cadence, status bits
// and a leap transition that fires at the armed boundary.
type fakeClock struct {
	sec  int64
	nsec int64
	mono int64 // ns

	status   timex.Status
	boundary int64 // where the armed transition fires

	// knobs
	fireLeap     bool // step the wall clock at the boundary like a real kernel
	leapFired    bool
	failReadback bool    // swallow status writes so arm read-back fails
	clearOnWake  bool    // external interference: clear status on next wake
	earlyWakeNs  int64   // wake absolute sleeps this many ns early (hrtimer defect)
	sleepErrs    []error // queued results for SleepUntil before success
	taiErr       error

	// observations
	clearCalls   int
	setCalls     []int64
	statusWrites []timex.Status
	monoSleeps   int
}

func newFakeClock(sec int64) *fakeClock {
	return &fakeClock{sec: sec}
}

func (f *fakeClock) armed() bool {
	return f.status&(unix.STA_INS|unix.STA_DEL) != 0
}

func (f *fakeClock) deriveState() timex.State {
	switch {
	case f.status&unix.STA_INS != 0:
		if f.sec < f.boundary {
			return timex.StateIns
		}
		return timex.StateWait
	case f.status&unix.STA_DEL != 0:
		if f.sec < f.boundary {
			return timex.StateDel
		}
		return timex.StateWait
	}
	return timex.StateOK
}

// setWall moves the wall clock, firing the armed leap transition when the
// move crosses the boundary: insertion repeats a second, deletion skips
// one.
func (f *fakeClock) setWall(sec, nsec int64) {
	crossing := f.fireLeap && f.armed() && !f.leapFired && f.sec < f.boundary && sec >= f.boundary
	f.sec, f.nsec = sec, nsec
	if crossing {
		if f.status&unix.STA_INS != 0 {
			f.sec--
		} else {
			f.sec++
		}
		f.leapFired = true
	}
}

func (f *fakeClock) Realtime() (unix.Timespec, error) {
	return unix.Timespec{Sec: f.sec, Nsec: f.nsec}, nil
}

func (f *fakeClock) TAI() (unix.Timespec, error) {
	if f.taiErr != nil {
		return unix.Timespec{}, f.taiErr
	}
	// fixed TAI-UTC offset, enough for output checks
	return unix.Timespec{Sec: f.sec + 37, Nsec: f.nsec}, nil
}

func (f *fakeClock) SetRealtime(sec int64) error {
	f.setCalls = append(f.setCalls, sec)
	f.sec, f.nsec = sec, 0
	return nil
}

func (f *fakeClock) ReadState() (timex.State, *unix.Timex, error) {
	tx := &unix.Timex{
		Status: int32(f.status),
		Time:   unix.Timeval{Sec: f.sec, Usec: f.nsec / 1000},
		Tai:    37,
	}
	return f.deriveState(), tx, nil
}

func (f *fakeClock) SetStatus(status timex.Status) (timex.State, error) {
	f.statusWrites = append(f.statusWrites, status)
	if f.failReadback {
		return f.deriveState(), nil
	}
	f.status = status
	if f.armed() {
		f.boundary = NextBoundary(unix.Timespec{Sec: f.sec, Nsec: f.nsec})
		f.leapFired = false
	}
	return f.deriveState(), nil
}

func (f *fakeClock) ClearState() error {
	f.clearCalls++
	f.status = 0
	return nil
}

func (f *fakeClock) SleepUntil(ts unix.Timespec) error {
	if len(f.sleepErrs) > 0 {
		err := f.sleepErrs[0]
		f.sleepErrs = f.sleepErrs[1:]
		if err != nil {
			return err
		}
	}
	total := ts.Sec*timex.NsecPerSec + ts.Nsec - f.earlyWakeNs
	if delta := total - (f.sec*timex.NsecPerSec + f.nsec); delta > 0 {
		f.mono += delta
	}
	f.setWall(total/timex.NsecPerSec, total%timex.NsecPerSec)
	if f.clearOnWake {
		f.status = 0
		f.clearOnWake = false
	}
	return nil
}

func (f *fakeClock) SleepMonotonic(d time.Duration) error {
	f.monoSleeps++
	f.mono += d.Nanoseconds()
	total := f.sec*timex.NsecPerSec + f.nsec + d.Nanoseconds()
	f.setWall(total/timex.NsecPerSec, total%timex.NsecPerSec)
	return nil
}
