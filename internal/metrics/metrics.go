// Package metrics provides Prometheus metrics for managed processes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	linesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procmux",
		Subsystem: "proc",
		Name:      "lines_total",
		Help:      "Lines received from managed processes",
	}, []string{"proc", "source"})

	bytesReadTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procmux",
		Subsystem: "proc",
		Name:      "bytes_read_total",
		Help:      "Bytes read from managed process output streams",
	}, []string{"proc", "source"})

	bytesWrittenTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procmux",
		Subsystem: "proc",
		Name:      "bytes_written_total",
		Help:      "Bytes written to managed process stdin",
	}, []string{"proc"})

	spawnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procmux",
		Subsystem: "proc",
		Name:      "spawns_total",
		Help:      "Successful process launches",
	}, []string{"proc"})

	exitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "procmux",
		Subsystem: "proc",
		Name:      "exits_total",
		Help:      "Process exits, by outcome",
	}, []string{"proc", "outcome"})

	running = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "procmux",
		Subsystem: "proc",
		Name:      "running",
		Help:      "Number of currently running managed processes",
	})
)

// AddLine records one received line.
func AddLine(proc, source string) {
	linesTotal.WithLabelValues(proc, source).Inc()
}

// AddBytesRead records bytes read from a process stream.
func AddBytesRead(proc, source string, n int) {
	bytesReadTotal.WithLabelValues(proc, source).Add(float64(n))
}

// AddBytesWritten records bytes written to a process stdin.
func AddBytesWritten(proc string, n int) {
	bytesWrittenTotal.WithLabelValues(proc).Add(float64(n))
}

// ProcStarted records a successful launch.
func ProcStarted(proc string) {
	spawnsTotal.WithLabelValues(proc).Inc()
	running.Inc()
}

// ProcExited records a reaped process. outcome is "ok", "error" or "signal".
func ProcExited(proc string, code int, signaled bool) {
	outcome := "ok"
	switch {
	case signaled:
		outcome = "signal"
	case code != 0:
		outcome = "error"
	}
	exitsTotal.WithLabelValues(proc, outcome).Inc()
	running.Dec()
}

// DeleteProc removes all per-process series, for processes that are gone
// for good.
func DeleteProc(proc string) {
	linesTotal.DeletePartialMatch(prometheus.Labels{"proc": proc})
	bytesReadTotal.DeletePartialMatch(prometheus.Labels{"proc": proc})
	bytesWrittenTotal.DeleteLabelValues(proc)
	spawnsTotal.DeleteLabelValues(proc)
	exitsTotal.DeletePartialMatch(prometheus.Labels{"proc": proc})
}
