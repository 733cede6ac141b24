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
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/facebook/leapday/leap"
	"github.com/facebook/leapday/leap/stats"
	"github.com/facebook/leapday/leapsectz"
)

var (
	runSetTimeFlag    bool
	runIterationsFlag int
	runReportTAIFlag  bool
	runConfigFlag     string
	runMonPortFlag    int
	runIntervalFlag   time.Duration
)

func init() {
	RootCmd.AddCommand(runCmd)
	defaults := leap.DefaultConfig()
	runCmd.Flags().BoolVarP(&runSetTimeFlag, "set-time", "s", defaults.SetTime, "set the clock close to midnight before each cycle to speed up testing")
	runCmd.Flags().IntVarP(&runIterationsFlag, "iterations", "i", defaults.Iterations, "number of leap second cycles to run, negative for unbounded")
	runCmd.Flags().BoolVarP(&runReportTAIFlag, "report-tai", "t", defaults.ReportTAI, "print CLOCK_TAI readings while polling")
	runCmd.Flags().StringVarP(&runConfigFlag, "config", "c", "", "path to a config file")
	runCmd.Flags().IntVar(&runMonPortFlag, "monitoring-port", defaults.MonitoringPort, "port to start monitoring http server on, 0 to disable")
	runCmd.Flags().DurationVar(&runIntervalFlag, "poll-interval", defaults.PollInterval, "cadence of the clock state polling loop")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Schedule leap seconds and watch the kernel take them",
	Long: `Schedule a leap second for the next UTC midnight via adjtimex(2), poll the
clock state through the transition and verify timers do not expire early.
Requires CAP_SYS_TIME. Do not run on a production host: with --set-time it
steps the system clock, and either way it inserts real leap seconds.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ConfigureVerbosity()

		setFlags := make(map[string]bool)
		cmd.Flags().Visit(func(f *pflag.Flag) {
			setFlags[f.Name] = true
		})
		cfg, err := leap.PrepareConfig(runConfigFlag, runSetTimeFlag, runIterationsFlag, runReportTAIFlag, runMonPortFlag, runIntervalFlag, setFlags)
		if err != nil {
			log.Fatal(err)
		}
		if err := runLeapDay(cfg); err != nil {
			log.Fatal(err)
		}
	},
}

func runLeapDay(cfg *leap.Config) error {
	warnAboutDaemons()
	published := logPublishedLeaps()

	counters := stats.NewCounters()
	if cfg.MonitoringPort != 0 {
		server := stats.NewServer(cfg.MonitoringPort, counters)
		go server.Start()
	}

	runner := leap.NewRunner(cfg, leap.SystemClock{}, os.Stdout, counters)
	runner.SetPublishedLeaps(published)

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, unix.SIGINT, unix.SIGTERM, unix.SIGQUIT)
	go func() {
		sig := <-sigch
		log.Infof("received %s, clearing leap second flags", sig)
		runner.Cleanup()
		os.Exit(0)
	}()

	if cfg.Iterations < 0 {
		fmt.Println("This runs continuously. Press ctrl-c to stop")
	} else {
		fmt.Printf("Running for %d iterations. Press ctrl-c to stop\n", cfg.Iterations)
	}
	return runner.Run(context.Background())
}

// warnAboutDaemons flags time sync daemons that will fight the exerciser
// over the kernel clock state.
func warnAboutDaemons() {
	daemons, err := leap.RunningTimeSyncDaemons()
	if err != nil {
		log.Debugf("checking for time sync daemons: %v", err)
		return
	}
	if len(daemons) != 0 {
		log.Warningf("time sync daemon(s) running: %s. They may clear leap flags mid-cycle, stop them first.", strings.Join(daemons, ", "))
	}
}

// logPublishedLeaps reports the latest leap second from the system tzdata,
// just for operator context. The exerciser schedules its own. Missing or
// unreadable tzdata is fine, the table is purely informational.
func logPublishedLeaps() []leapsectz.LeapSecond {
	ls, err := leapsectz.Parse("")
	if err != nil {
		log.Debugf("reading leap second tzdata: %v", err)
		return nil
	}
	if l := leapsectz.Latest(ls, time.Now()); l != nil {
		log.Infof("latest published leap second was %s", l.Time().UTC().Format(time.ANSIC))
	}
	return ls
}
