// Copyright (C) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pebble

import (
	"github.com/ava-labs/avalanchego/utils/metric"
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	getLatency metric.Averager

	writes  prometheus.Counter
	deletes prometheus.Counter
}

func newMetrics() (*prometheus.Registry, *metrics, error) {
	r := prometheus.NewRegistry()
	getLatency, err := metric.NewAverager(
		"",
		"pebble_read_latency",
		"time spent waiting for db get",
		r,
	)
	if err != nil {
		return nil, nil, err
	}
	m := &metrics{
		getLatency: getLatency,
		writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pebble",
			Name:      "writes",
			Help:      "number of keys written",
		}),
		deletes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pebble",
			Name:      "deletes",
			Help:      "number of keys deleted",
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.writes),
		r.Register(m.deletes),
	)
	return r, m, errs.Err
}
