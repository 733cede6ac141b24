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
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/leapday/leapsectz"
)

var leapsFileFlag string

func init() {
	RootCmd.AddCommand(leapsCmd)
	leapsCmd.Flags().StringVarP(&leapsFileFlag, "file", "f", "", "tzdata file to read, defaults to the system right/UTC")
}

var leapsCmd = &cobra.Command{
	Use:   "leaps",
	Short: "List leap seconds published in the system tzdata",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		ls, err := leapsectz.Parse(leapsFileFlag)
		if err != nil {
			log.Fatal(err)
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"#", "time (UTC)", "TAI-UTC (s)"})
		for i, l := range ls {
			table.Append([]string{
				fmt.Sprintf("%d", i+1),
				l.Time().UTC().Format(time.ANSIC),
				fmt.Sprintf("%d", l.Nleap+10),
			})
		}
		table.Render()
	},
}
