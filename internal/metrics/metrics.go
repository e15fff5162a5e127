/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

const namespace = "ns_migrator"

// InitializeMigratorMetrics registers the migrator collectors on the
// controller-runtime registry served at /metrics.
func InitializeMigratorMetrics() {
	metrics.Registry.MustRegister(
		runsTotal,
		resourcesTotal,
		namespaceDeletionsTotal,
		watchReconnectsTotal,
		runDuration,
	)
}

var (
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of finished migration runs by resulting phase",
		}, []string{"result"},
	)
)

var (
	resourcesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resources_total",
			Help:      "Number of ledger entries recorded by kind and outcome",
		}, []string{"kind", "outcome"},
	)
)

var (
	namespaceDeletionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "namespace_deletions_total",
			Help:      "Number of source namespaces deleted after migration",
		},
	)
)

var (
	watchReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_reconnects_total",
			Help:      "Number of times the request watch stream was re-established",
		},
	)
)

var (
	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of migration runs",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)
)

// ObserveRun records a finished run with its resulting phase and duration.
func ObserveRun(result string, duration time.Duration) {
	runsTotal.With(prometheus.Labels{"result": result}).Inc()
	runDuration.Observe(duration.Seconds())
}

// ObserveResource records one ledger entry.
func ObserveResource(kind, outcome string) {
	resourcesTotal.With(prometheus.Labels{
		"kind":    kind,
		"outcome": outcome,
	}).Inc()
}

// ObserveNamespaceDeletion records a deleted source namespace.
func ObserveNamespaceDeletion() {
	namespaceDeletionsTotal.Inc()
}

// ObserveWatchReconnect records a re-established watch stream.
func ObserveWatchReconnect() {
	watchReconnectsTotal.Inc()
}
