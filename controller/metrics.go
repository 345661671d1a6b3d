// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package controller

import (
	"errors"
	"time"

	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are shared by every controller of a process.
type Metrics struct {
	steps    *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration metric.Averager
}

func NewMetrics(r prometheus.Registerer) (*Metrics, error) {
	duration, err := metric.NewAverager(
		"",
		"controller_step_duration",
		"time spent in a lifecycle step",
		r,
	)
	if err != nil {
		return nil, err
	}
	m := &Metrics{
		duration: duration,
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "controller",
			Name:      "steps",
			Help:      "number of completed lifecycle steps",
		}, []string{"step"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "controller",
			Name:      "step_failures",
			Help:      "number of failed lifecycle steps",
		}, []string{"step", "stage"}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.steps),
		r.Register(m.failures),
	)
	return m, errs.Err
}

func (m *Metrics) observe(step string, d time.Duration, err error) {
	m.duration.Observe(float64(d))
	if err == nil {
		m.steps.WithLabelValues(step).Inc()
		return
	}
	stage := "unknown"
	var se *StepError
	if errors.As(err, &se) {
		stage = string(se.Stage)
	}
	m.failures.WithLabelValues(step, stage).Inc()
}
