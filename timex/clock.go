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

package timex

import (
	"time"

	"golang.org/x/sys/unix"
)

// RealtimeNow reads CLOCK_REALTIME.
func RealtimeNow() (unix.Timespec, error) {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_REALTIME, &ts)
	return ts, err
}

// TAINow reads CLOCK_TAI. Returns an error on kernels without TAI support.
func TAINow() (unix.Timespec, error) {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_TAI, &ts)
	return ts, err
}

// SetRealtime steps CLOCK_REALTIME to the given second, zero nanoseconds.
// Requires CAP_SYS_TIME and is disruptive to every other consumer of wall
// time on the host.
func SetRealtime(sec int64) error {
	ts := unix.Timespec{Sec: sec}
	return unix.ClockSettime(unix.CLOCK_REALTIME, &ts)
}

// SleepUntil suspends until the absolute CLOCK_REALTIME deadline ts.
// Returns unix.EINTR if woken by a signal; the deadline stays valid so
// callers can re-sleep to the same absolute target even if the wall clock
// was stepped underneath them.
func SleepUntil(ts unix.Timespec) error {
	return unix.ClockNanosleep(unix.CLOCK_REALTIME, unix.TIMER_ABSTIME, &ts, nil)
}

// SleepMonotonic suspends for the given duration on CLOCK_MONOTONIC,
// insulated from wall clock jumps.
func SleepMonotonic(d time.Duration) error {
	ts := unix.NsecToTimespec(d.Nanoseconds())
	return unix.ClockNanosleep(unix.CLOCK_MONOTONIC, 0, &ts, nil)
}
