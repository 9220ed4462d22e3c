// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records what the update engine does.
type Metrics interface {
	IncChecks(trigger, outcome string)
	ObserveCheckDuration(outcome string, durationSeconds float64)
	IncInvalidationWarning(step string)
}

// Noop implements Metrics without emitting anything.
type Noop struct{}

func (Noop) IncChecks(string, string)             {}
func (Noop) ObserveCheckDuration(string, float64) {}
func (Noop) IncInvalidationWarning(string)        {}

// Prom implements Metrics backed by Prometheus collectors.
type Prom struct {
	checks       *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	invalidation *prometheus.CounterVec
}

// NewProm registers the collectors on reg, or on the default registerer
// when reg is nil.
func NewProm(namespace string, reg prometheus.Registerer) *Prom {
	p := &Prom{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Update checks by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "check_duration_seconds",
			Help:      "Update check duration by outcome",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
		invalidation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalidation_warnings_total",
			Help:      "Cache invalidation step failures by step",
		}, []string{"step"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(p.checks, p.duration, p.invalidation)
	return p
}

func (p *Prom) IncChecks(trigger, outcome string) {
	p.checks.WithLabelValues(trigger, outcome).Inc()
}

func (p *Prom) ObserveCheckDuration(outcome string, durationSeconds float64) {
	p.duration.WithLabelValues(outcome).Observe(durationSeconds)
}

func (p *Prom) IncInvalidationWarning(step string) {
	p.invalidation.WithLabelValues(step).Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
