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

	"github.com/shirou/gopsutil/process"
)

// timeSyncDaemons are processes known to fight us over the kernel clock
// status. Running the exerciser next to one of these turns every cycle
// into a detectable-but-unsynchronized race.
var timeSyncDaemons = map[string]bool{
	"chronyd":           true,
	"ntpd":              true,
	"systemd-timesyncd": true,
	"ptp4l":             true,
	"phc2sys":           true,
	"sptp":              true,
}

// RunningTimeSyncDaemons returns descriptions of time sync daemons
// currently running on the host, for the startup warning.
func RunningTimeSyncDaemons() ([]string, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	var found []string
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if timeSyncDaemons[name] {
			found = append(found, fmt.Sprintf("%s (pid %d)", name, p.Pid))
		}
	}
	return found, nil
}
