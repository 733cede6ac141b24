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

package leapsectz

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// firstLeap is the first UTC leap second, Saturday, July 1, 1972 00:00:00
const firstLeap = 78796800

func writeBody(buf *bytes.Buffer, version byte, hdr header) {
	buf.WriteString("TZif")
	buf.WriteByte(version)
	buf.Write(make([]byte, 15))
	_ = binary.Write(buf, binary.BigEndian, hdr)
}

func TestParseV1(t *testing.T) {
	buf := &bytes.Buffer{}
	writeBody(buf, 0, header{LeapCnt: 1})
	_ = binary.Write(buf, binary.BigEndian, uint32(firstLeap))
	_ = binary.Write(buf, binary.BigEndian, int32(1))

	ls, err := parse(buf)
	require.NoError(t, err)
	require.Len(t, ls, 1)
	require.Equal(t, uint64(firstLeap), ls[0].Tleap)
	require.Equal(t, int32(1), ls[0].Nleap)
	require.Equal(t, int64(firstLeap), ls[0].Time().Unix())
}

func TestParseV2(t *testing.T) {
	hdr := header{IsUtcCnt: 1, IsStdCnt: 1, LeapCnt: 1, TypeCnt: 1, CharCnt: 4}
	buf := &bytes.Buffer{}

	// v1 part, skipped wholesale
	writeBody(buf, '2', hdr)
	buf.Write(make([]byte, 6+4)) // one type record + "UTC\x00"
	_ = binary.Write(buf, binary.BigEndian, uint32(firstLeap))
	_ = binary.Write(buf, binary.BigEndian, int32(1))
	buf.Write(make([]byte, 2)) // UT/local + standard/wall indicators

	// v2 part carries the data
	writeBody(buf, '2', hdr)
	buf.Write(make([]byte, 6+4))
	_ = binary.Write(buf, binary.BigEndian, uint64(firstLeap))
	_ = binary.Write(buf, binary.BigEndian, int32(1))

	ls, err := parse(buf)
	require.NoError(t, err)
	require.Len(t, ls, 1)
	require.Equal(t, uint64(firstLeap), ls[0].Tleap)
	require.Equal(t, int32(1), ls[0].Nleap)
}

func TestParseErrors(t *testing.T) {
	_, err := parse(bytes.NewReader([]byte("not a tz file")))
	require.ErrorIs(t, err, errBadData)

	buf := &bytes.Buffer{}
	writeBody(buf, 0, header{})
	_, err = parse(buf)
	require.ErrorIs(t, err, errNoLeapSeconds)

	buf = &bytes.Buffer{}
	writeBody(buf, '9', header{})
	_, err = parse(buf)
	require.ErrorIs(t, err, errUnsupportedVersion)
}

func TestScheduled(t *testing.T) {
	ls := []LeapSecond{{Tleap: firstLeap, Nleap: 1}}
	require.True(t, Scheduled(ls, firstLeap))
	require.False(t, Scheduled(ls, firstLeap+86400))
}

func TestLatest(t *testing.T) {
	ls := []LeapSecond{
		{Tleap: firstLeap, Nleap: 1},
		{Tleap: firstLeap + 15768000 + 1, Nleap: 2}, // Jan 1, 1973
	}
	got := Latest(ls, time.Unix(firstLeap+2*15768000, 0))
	require.NotNil(t, got)
	require.Equal(t, int32(2), got.Nleap)

	require.Nil(t, Latest(ls, time.Unix(0, 0)))
}
