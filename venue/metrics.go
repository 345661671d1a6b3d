// Copyright (C) 2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package venue

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/erstate/ledger"
)

type metrics struct {
	accepted *prometheus.CounterVec
	rejected *prometheus.CounterVec
	slot     prometheus.Gauge
}

func newMetrics(v ledger.Venue, r prometheus.Registerer) (*metrics, error) {
	labels := prometheus.Labels{"venue": v.String()}
	m := &metrics{
		accepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "venue",
			Name:        "accepted_txs",
			Help:        "number of accepted transactions",
			ConstLabels: labels,
		}, []string{"op"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "venue",
			Name:        "rejected_txs",
			Help:        "number of rejected transactions",
			ConstLabels: labels,
		}, []string{"op"}),
		slot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "venue",
			Name:        "slot",
			Help:        "current slot",
			ConstLabels: labels,
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		r.Register(m.accepted),
		r.Register(m.rejected),
		r.Register(m.slot),
	)
	return m, errs.Err
}

func (m *metrics) observe(op ledger.Operation, err error) {
	if err != nil {
		m.rejected.WithLabelValues(op.String()).Inc()
		return
	}
	m.accepted.WithLabelValues(op.String()).Inc()
}
