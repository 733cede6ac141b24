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
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/facebook/leapday/timex"
)

func TestNextBoundary(t *testing.T) {
	testCases := []struct {
		name string
		now  unix.Timespec
		want int64
	}{
		{"epoch", unix.Timespec{Sec: 0}, 86400},
		{"mid day", unix.Timespec{Sec: 1036800/2 + 100}, 604800},
		{"last second of day", unix.Timespec{Sec: 86399, Nsec: 999999999}, 86400},
		{"exactly midnight", unix.Timespec{Sec: 86400}, 172800},
		{"realistic epoch", unix.Timespec{Sec: 1700000000}, 1700006400},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextBoundary(tc.now)
			require.Equal(t, tc.want, got)
			require.Greater(t, got, tc.now.Sec)
			require.Zero(t, got%SecondsPerDay)
			require.LessOrEqual(t, got-tc.now.Sec, SecondsPerDay)
		})
	}
}

func TestModeFlip(t *testing.T) {
	require.Equal(t, Delete, Insert.Flip())
	require.Equal(t, Insert, Delete.Flip())
	require.Equal(t, timex.Status(unix.STA_INS), Insert.Bit())
	require.Equal(t, timex.Status(unix.STA_DEL), Delete.Bit())
	require.Equal(t, "insert", Insert.String())
	require.Equal(t, "delete", Delete.String())
}

func TestArm(t *testing.T) {
	f := newFakeClock(1700000000)
	state, err := Arm(f, Insert)
	require.NoError(t, err)
	require.Equal(t, timex.StateIns, state)
	require.Equal(t, []timex.Status{unix.STA_INS}, f.statusWrites)

	// read-back right after arming shows the pending insert
	st, tx, err := f.ReadState()
	require.NoError(t, err)
	require.Equal(t, timex.StateIns, st)
	require.NotZero(t, timex.Status(tx.Status)&unix.STA_INS)
}

func TestArmDelete(t *testing.T) {
	f := newFakeClock(1700000000)
	state, err := Arm(f, Delete)
	require.NoError(t, err)
	require.Equal(t, timex.StateDel, state)
	require.NotZero(t, f.status&unix.STA_DEL)
}

func TestArmFailure(t *testing.T) {
	f := newFakeClock(1700000000)
	f.failReadback = true
	_, err := Arm(f, Insert)
	require.Error(t, err)
	var armErr *ArmError
	require.True(t, errors.As(err, &armErr))
	require.Equal(t, Insert, armErr.Mode)
	require.Contains(t, armErr.Error(), "insert request not reflected")
}
