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

// Package timex is a thin gateway to the kernel time subsystem:
// adjtimex(2) state and status, clock_gettime(2)/clock_settime(2) and
// clock_nanosleep(2) on the clocks the leap second machinery touches.
package timex

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// State is the clock state returned by adjtimex(2),
// mirroring the kernel leap second state machine.
type State int

// man 2 adjtimex
const (
	StateOK    State = unix.TIME_OK
	StateIns   State = unix.TIME_INS
	StateDel   State = unix.TIME_DEL
	StateOOP   State = unix.TIME_OOP
	StateWait  State = unix.TIME_WAIT
	StateError State = unix.TIME_ERROR
)

func (s State) String() string {
	switch s {
	case StateOK:
		return "TIME_OK"
	case StateIns:
		return "TIME_INS"
	case StateDel:
		return "TIME_DEL"
	case StateOOP:
		return "TIME_OOP"
	case StateWait:
		return "TIME_WAIT"
	case StateError:
		return "TIME_ERROR"
	default:
		return fmt.Sprintf("TIME_UNKNOWN(%d)", int(s))
	}
}

// Desc returns a human explanation of the state, for the clockstate command.
func (s State) Desc() string {
	switch s {
	case StateOK:
		return "Clock synchronized, no leap second adjustment pending."
	case StateIns:
		return "A leap second will be added at the end of the UTC day."
	case StateDel:
		return "A leap second will be deleted at the end of the UTC day."
	case StateOOP:
		return "Insertion of a leap second is in progress."
	case StateWait:
		return "A leap-second insertion or deletion has been completed."
	case StateError:
		return "The system clock is not synchronized to a reliable server."
	default:
		return "State is not recognized."
	}
}

// Status is the bitmask status field of struct timex.
type Status int32

var statusBits = []struct {
	bit   Status
	label string
}{
	{unix.STA_PLL, "STA_PLL"},
	{unix.STA_PPSFREQ, "STA_PPSFREQ"},
	{unix.STA_PPSTIME, "STA_PPSTIME"},
	{unix.STA_FLL, "STA_FLL"},
	{unix.STA_INS, "STA_INS"},
	{unix.STA_DEL, "STA_DEL"},
	{unix.STA_UNSYNC, "STA_UNSYNC"},
	{unix.STA_FREQHOLD, "STA_FREQHOLD"},
	{unix.STA_PPSSIGNAL, "STA_PPSSIGNAL"},
	{unix.STA_PPSJITTER, "STA_PPSJITTER"},
	{unix.STA_PPSWANDER, "STA_PPSWANDER"},
	{unix.STA_PPSERROR, "STA_PPSERROR"},
	{unix.STA_CLOCKERR, "STA_CLOCKERR"},
	{unix.STA_NANO, "STA_NANO"},
	{unix.STA_MODE, "STA_MODE"},
	{unix.STA_CLK, "STA_CLK"},
}

func (status Status) String() string {
	if status == 0 {
		return "0"
	}
	var labels []string
	for _, item := range statusBits {
		if status&item.bit == item.bit {
			labels = append(labels, item.label)
		}
	}
	return strings.Join(labels, " | ")
}

// GetState reads the kernel clock state without modifying anything.
// The returned Timex buffer carries the rest of the adjtimex output
// (status bits, wall time, TAI offset).
func GetState() (State, *unix.Timex, error) {
	tx := &unix.Timex{}
	state, err := unix.Adjtimex(tx)
	return State(state), tx, err
}

// SetStatus replaces the kernel clock status bits.
func SetStatus(status Status) (State, error) {
	tx := &unix.Timex{Modes: unix.ADJ_STATUS, Status: int32(status)}
	state, err := unix.Adjtimex(tx)
	return State(state), err
}

// ClearState resets the kernel time_status and time_state to neutral.
// We have to call adjtimex three times here: kernels prior to
// 6b1859dba01c7 (included in 3.5 and -stable) had an issue with the
// state machine and wouldn't clear STA_INS/STA_DEL directly,
// and a non-zero maxerror can cause STA_UNSYNC to be set.
func ClearState() error {
	tx := &unix.Timex{Modes: unix.ADJ_STATUS, Status: unix.STA_PLL}
	if _, err := unix.Adjtimex(tx); err != nil {
		return fmt.Errorf("setting STA_PLL: %w", err)
	}
	tx = &unix.Timex{Modes: unix.ADJ_MAXERROR, Maxerror: 0}
	if _, err := unix.Adjtimex(tx); err != nil {
		return fmt.Errorf("clearing maxerror: %w", err)
	}
	tx = &unix.Timex{Modes: unix.ADJ_STATUS, Status: 0}
	if _, err := unix.Adjtimex(tx); err != nil {
		return fmt.Errorf("clearing status: %w", err)
	}
	return nil
}
