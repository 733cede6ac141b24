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

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/facebook/leapday/timex"
)

func init() {
	RootCmd.AddCommand(clockStateCmd)
	RootCmd.AddCommand(ntpTimeCmd)
}

// clockState reports system clock state via adjtimex(2)
func clockState() {
	state, _, err := timex.GetState()
	if err != nil {
		fmt.Printf("Error calling adjtimex(2): %s\n", err)
		return
	}
	fmt.Println(state.Desc())
}

// ntpTime prints data similar to 'ntptime' command output
func ntpTime() {
	state, tx, err := timex.GetState()
	if err != nil {
		fmt.Printf("Error calling adjtimex(2): %s\n", err)
		return
	}
	fmt.Printf("adjtimex() returns code %d (%s)\n", int(state), state)

	var offset float64
	if tx.Status&unix.STA_NANO != 0 {
		offset = float64(tx.Offset) / 1000.0 // ns -> us
	} else {
		offset = float64(tx.Offset)
	}

	fmt.Printf("  modes 0x%x,\n", tx.Modes)
	fmt.Printf("  offset %.3f us, frequency %.3f ppm, interval %d s\n", offset, float64(tx.Freq)/65536.0, tx.Shift)
	fmt.Printf("  maximum error %d us, estimated error %d us,\n", tx.Maxerror, tx.Esterror)
	fmt.Printf("  status 0x%x (%s),\n", tx.Status, timex.Status(tx.Status))
	fmt.Printf("  time constant %d, precision %d.000 us, tolerance %d ppm,\n", tx.Constant, tx.Precision, tx.Tolerance/65535)
	fmt.Printf("  TAI offset %d s\n", tx.Tai)
}

var clockStateCmd = &cobra.Command{
	Use:   "clockstate",
	Short: "Print kernel clock state with description.",
	Long: `Print kernel clock state with description.
Useful for checking if kernel noticed leap second. Uses adjtimex(2) to get info.`,
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		clockState()
	},
}

var ntpTimeCmd = &cobra.Command{
	Use:   "ntptime",
	Short: "Print OS kernel output that is similar to ntp_gettime() and ntp_adjtime() output of 'ntptime' utility.",
	Long:  "'ntptime' utility is a part of ntp package. This command produces similar output.",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ntpTime()
	},
}
