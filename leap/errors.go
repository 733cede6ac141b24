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

	"github.com/facebook/leapday/timex"
)

// ErrTAIUnsupported means CLOCK_TAI reads fail on this kernel,
// so --report-tai cannot be honored.
var ErrTAIUnsupported = errors.New("system does not support CLOCK_TAI")

// ArmError means a leap second request was not reflected in the status
// read back from the kernel. The fault likely recurs, so the run stops.
type ArmError struct {
	Mode   Mode
	State  timex.State
	Status timex.Status
}

func (e *ArmError) Error() string {
	return fmt.Sprintf("%s request not reflected in kernel status: state %s, status %s",
		e.Mode, e.State, e.Status)
}
