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
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"
)

// Config controls a run. Immutable once prepared.
type Config struct {
	// SetTime steps the wall clock to boundary-10s before arming each
	// cycle. Speeds up transition cadence enormously, and is just as
	// disruptive to every other consumer of wall time on the host.
	SetTime bool `yaml:"set_time"`
	// Iterations is the number of cycles to run; negative means unbounded.
	Iterations int `yaml:"iterations"`
	// ReportTAI prints CLOCK_TAI readings in polling lines instead of the
	// calendar form. Requires kernel TAI support.
	ReportTAI bool `yaml:"report_tai"`
	// MonitoringPort serves counters over http when non-zero.
	MonitoringPort int `yaml:"monitoring_port"`
	// PollInterval is the cadence of the status polling loop.
	PollInterval time.Duration `yaml:"poll_interval"`
	// LeadSeconds and TailSeconds bound the observation window around the
	// boundary.
	LeadSeconds int64 `yaml:"lead_seconds"`
	TailSeconds int64 `yaml:"tail_seconds"`
}

// DefaultConfig returns the config matching an unflagged run: unbounded
// iterations, 0.5s polling, a window from 3s before to 2s after the
// boundary, no monitoring server.
func DefaultConfig() *Config {
	return &Config{
		Iterations:   -1,
		PollInterval: 500 * time.Millisecond,
		LeadSeconds:  3,
		TailSeconds:  2,
	}
}

// ReadConfig reads config from a YAML file.
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(cData, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if c.Iterations == 0 {
		return fmt.Errorf("iterations must be positive, or negative for unbounded")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.LeadSeconds <= 0 {
		return fmt.Errorf("lead seconds must be positive")
	}
	if c.TailSeconds < 0 {
		return fmt.Errorf("tail seconds must not be negative")
	}
	if c.LeadSeconds >= SecondsPerDay {
		return fmt.Errorf("lead seconds must be under a day")
	}
	if c.MonitoringPort < 0 || c.MonitoringPort > 65535 {
		return fmt.Errorf("monitoring port %d out of range", c.MonitoringPort)
	}
	return nil
}

// PrepareConfig prepares the final config based on defaults, the on-disk
// config and CLI flags, and validates the result.
func PrepareConfig(cfgPath string, setTime bool, iterations int, reportTAI bool, monitoringPort int, interval time.Duration, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if setFlags["set-time"] {
		if cfgPath != "" {
			warn("set-time")
		}
		cfg.SetTime = setTime
	}
	if setFlags["iterations"] {
		if cfgPath != "" {
			warn("iterations")
		}
		cfg.Iterations = iterations
	}
	if setFlags["report-tai"] {
		if cfgPath != "" {
			warn("report-tai")
		}
		cfg.ReportTAI = reportTAI
	}
	if setFlags["monitoring-port"] {
		if cfgPath != "" {
			warn("monitoring-port")
		}
		cfg.MonitoringPort = monitoringPort
	}
	if setFlags["poll-interval"] {
		if cfgPath != "" {
			warn("poll-interval")
		}
		cfg.PollInterval = interval
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}
