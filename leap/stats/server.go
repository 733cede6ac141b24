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

package stats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server exposes Counters over http.
type Server struct {
	counters *Counters
	port     int
	registry *prometheus.Registry
}

// NewServer creates a monitoring server for the given counters.
func NewServer(port int, counters *Counters) *Server {
	s := &Server{counters: counters, port: port, registry: prometheus.NewRegistry()}
	for _, m := range []struct {
		name string
		help string
		v    *int64
	}{
		{"leapday_cycles_total", "Completed leap second cycles", &counters.cycles},
		{"leapday_ticks_total", "Polling lines emitted", &counters.ticks},
		{"leapday_arm_failures_total", "Leap requests not reflected on read-back", &counters.armFailures},
		{"leapday_interference_total", "Pending requests cleared by an external actor", &counters.interference},
		{"leapday_spurious_wakes_total", "Deadline sleeps interrupted before the deadline", &counters.spuriousWakes},
		{"leapday_timer_defects_total", "Observed hrtimer early expirations", &counters.timerDefects},
	} {
		v := m.v
		s.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: m.name, Help: m.help},
			func() float64 { return float64(atomic.LoadInt64(v)) },
		))
	}
	return s
}

// Start runs the http server. Blocks, so usually invoked as a goroutine.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", s.port)
	log.Infof("Starting http monitoring server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Failed to start listener: %v", err)
	}
}

// handleRequest serves the counters as JSON.
func (s *Server) handleRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.counters.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}
