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
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/facebook/leapday/timex"
)

// SecondsPerDay is the length of a UTC day in seconds.
const SecondsPerDay = int64(86400)

// NextBoundary returns the start of the next UTC day (23:59:60 is where a
// leap second would go). This is a candidate insertion point: the kernel
// will fire the transition there whenever a request is armed, real leap
// second calendar or not.
func NextBoundary(now unix.Timespec) int64 {
	return now.Sec + (SecondsPerDay - now.Sec%SecondsPerDay)
}

// Arm requests a leap second insertion or deletion and verifies the
// request is reflected in the status read back from the kernel.
// A missing bit on read-back is an *ArmError.
func Arm(c Clock, mode Mode) (timex.State, error) {
	if _, err := c.SetStatus(mode.Bit()); err != nil {
		return timex.StateError, fmt.Errorf("requesting %s: %w", mode, err)
	}
	state, tx, err := c.ReadState()
	if err != nil {
		return state, fmt.Errorf("reading back status after %s request: %w", mode, err)
	}
	if timex.Status(tx.Status)&mode.Bit() == 0 {
		return state, &ArmError{Mode: mode, State: state, Status: timex.Status(tx.Status)}
	}
	return state, nil
}
