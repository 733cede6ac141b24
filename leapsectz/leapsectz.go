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

// Package leapsectz reads the leap second table from the system timezone
// database. The exerciser uses it to tell apart the artificial boundaries
// it forces from leap seconds actually published for that day.
package leapsectz

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"time"
)

// leapFile is the tzdata file carrying leap second records
const leapFile = "/usr/share/zoneinfo/right/UTC"

var errBadData = errors.New("malformed time zone information")
var errUnsupportedVersion = errors.New("unsupported time zone file version")
var errNoLeapSeconds = errors.New("no leap seconds information found")

// LeapSecond is one record of the tzdata leap table: the moment the
// correction applies and the total correction in effect after it.
type LeapSecond struct {
	Tleap uint64
	Nleap int32
}

// Time returns when the leap second event occurs.
func (l LeapSecond) Time() time.Time {
	return time.Unix(int64(l.Tleap)-int64(l.Nleap)+1, 0)
}

// header is the fixed part of a TZif body, RFC 8536 field order.
type header struct {
	IsUtcCnt uint32
	IsStdCnt uint32
	LeapCnt  uint32
	TimeCnt  uint32
	TypeCnt  uint32
	CharCnt  uint32
}

// Parse returns the leap second list from srcfile.
// Pass "" to use the default right/UTC file.
func Parse(srcfile string) ([]LeapSecond, error) {
	if srcfile == "" {
		srcfile = leapFile
	}
	f, err := os.Open(srcfile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

// Scheduled reports whether the table schedules a leap second event
// exactly at the given UTC second.
func Scheduled(ls []LeapSecond, sec int64) bool {
	for _, l := range ls {
		if l.Time().Unix() == sec {
			return true
		}
	}
	return false
}

// Latest returns the most recent leap second before now, or nil if the
// table has none.
func Latest(ls []LeapSecond, now time.Time) *LeapSecond {
	var res *LeapSecond
	for i := range ls {
		l := ls[i]
		if !l.Time().Before(now) {
			continue
		}
		if res == nil || l.Time().After(res.Time()) {
			res = &l
		}
	}
	return res
}

func parse(r io.Reader) ([]LeapSecond, error) {
	// a v1 file is a single body with 4-byte times; v2/v3 files append a
	// second body with 8-byte times, which is the one worth reading
	for part := 0; part < 2; part++ {
		var magic [4]byte
		if _, err := io.ReadFull(r, magic[:]); err != nil || string(magic[:]) != "TZif" {
			return nil, errBadData
		}
		var pad [16]byte
		if _, err := io.ReadFull(r, pad[:]); err != nil {
			return nil, errBadData
		}
		version := pad[0]
		if version != 0 && version != '2' && version != '3' {
			return nil, errUnsupportedVersion
		}

		var hdr header
		if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
			return nil, err
		}

		if version == 0 || part == 1 {
			return parseBody(r, &hdr, part == 1)
		}

		// skip the v1 body of a two-part file completely
		skip := int64(hdr.TimeCnt)*5 + int64(hdr.TypeCnt)*6 + int64(hdr.CharCnt) +
			int64(hdr.LeapCnt)*8 + int64(hdr.IsUtcCnt) + int64(hdr.IsStdCnt)
		if _, err := io.CopyN(io.Discard, r, skip); err != nil {
			return nil, errBadData
		}
	}
	return nil, errBadData
}

// parseBody reads the leap second records out of one TZif body, skipping
// the transition and zone type data in front of them.
func parseBody(r io.Reader, hdr *header, wide bool) ([]LeapSecond, error) {
	timeSize := int64(4)
	if wide {
		timeSize = 8
	}
	skip := int64(hdr.TimeCnt)*(timeSize+1) + int64(hdr.TypeCnt)*6 + int64(hdr.CharCnt)
	if _, err := io.CopyN(io.Discard, r, skip); err != nil {
		return nil, errBadData
	}

	ret := make([]LeapSecond, 0, hdr.LeapCnt)
	for i := uint32(0); i < hdr.LeapCnt; i++ {
		var l LeapSecond
		if wide {
			if err := binary.Read(r, binary.BigEndian, &l); err != nil {
				return nil, err
			}
		} else {
			var rec struct {
				T uint32
				N int32
			}
			if err := binary.Read(r, binary.BigEndian, &rec); err != nil {
				return nil, err
			}
			l = LeapSecond{Tleap: uint64(rec.T), Nleap: rec.N}
		}
		ret = append(ret, l)
	}
	if len(ret) == 0 {
		return nil, errNoLeapSeconds
	}
	return ret, nil
}
