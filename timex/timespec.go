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
	"golang.org/x/sys/unix"
)

// NsecPerSec is one second in nanoseconds.
const NsecPerSec = int64(1000000000)

// InOrder reports whether a <= b.
// Equal seconds compare by the nanosecond remainder.
func InOrder(a, b unix.Timespec) bool {
	if a.Sec < b.Sec {
		return true
	}
	if a.Sec > b.Sec {
		return false
	}
	return a.Nsec <= b.Nsec
}

// AddNsec returns ts advanced by ns nanoseconds,
// keeping the nanosecond remainder in [0, 1e9).
func AddNsec(ts unix.Timespec, ns int64) unix.Timespec {
	ts.Nsec += ns
	for ts.Nsec >= NsecPerSec {
		ts.Nsec -= NsecPerSec
		ts.Sec++
	}
	return ts
}
