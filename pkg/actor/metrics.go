// Copyright 2021 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package actor

import (
	"github.com/DrAugus/actor-framework/pkg/workerpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	mailboxEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actor",
			Subsystem: "mailbox",
			Name:      "enqueued_total",
			Help:      "The number of envelopes pushed into mailboxes.",
		}, []string{"system", "priority"})
	liveActors = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "actor",
			Subsystem: "system",
			Name:      "number_of_actors",
			Help:      "The number of live actors in an actor system.",
		}, []string{"system"})
	pendingRequests = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "actor",
			Subsystem: "request",
			Name:      "number_of_pending_requests",
			Help:      "The number of requests waiting for a response.",
		}, []string{"system"})
	requestOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "actor",
			Subsystem: "request",
			Name:      "outcome_total",
			Help:      "The number of finished requests by outcome.",
		}, []string{"system", "outcome"})
	activeStreams = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "actor",
			Subsystem: "stream",
			Name:      "number_of_streams",
			Help:      "The number of registered streams.",
		}, []string{"system"})
)

// systemMetrics holds the metrics of one system, with the labels applied.
type systemMetrics struct {
	name            string
	enqueuedRegular prometheus.Counter
	enqueuedUrgent  prometheus.Counter
	actors          prometheus.Gauge
	pending         prometheus.Gauge
	outcomes        *prometheus.CounterVec
	streams         prometheus.Gauge
}

func newSystemMetrics(name string) *systemMetrics {
	return &systemMetrics{
		name:            name,
		enqueuedRegular: mailboxEnqueued.WithLabelValues(name, Regular.String()),
		enqueuedUrgent:  mailboxEnqueued.WithLabelValues(name, Urgent.String()),
		actors:          liveActors.WithLabelValues(name),
		pending:         pendingRequests.WithLabelValues(name),
		outcomes:        requestOutcomes.MustCurryWith(prometheus.Labels{"system": name}),
		streams:         activeStreams.WithLabelValues(name),
	}
}

func (m *systemMetrics) close() {
	labels := prometheus.Labels{"system": m.name}
	mailboxEnqueued.DeletePartialMatch(labels)
	liveActors.DeletePartialMatch(labels)
	pendingRequests.DeletePartialMatch(labels)
	requestOutcomes.DeletePartialMatch(labels)
	activeStreams.DeletePartialMatch(labels)
}

// InitMetrics registers all metrics in this file and the metrics of the
// worker pool.
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(mailboxEnqueued)
	registry.MustRegister(liveActors)
	registry.MustRegister(pendingRequests)
	registry.MustRegister(requestOutcomes)
	registry.MustRegister(activeStreams)
	workerpool.InitMetrics(registry)
}
