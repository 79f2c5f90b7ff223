// Package metrics provides Prometheus metrics for process executors.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for executor runs.
const (
	OutcomeExited      = "exited"
	OutcomeStopped     = "stopped"
	OutcomeFailed      = "failed" // output read failed after spawn
	OutcomeSpawnFailed = "spawn_failed"
)

var (
	executorRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nodeexec",
		Subsystem: "executor",
		Name:      "running",
		Help:      "Number of child processes currently running",
	}, []string{"node"})

	executorRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nodeexec",
		Subsystem: "executor",
		Name:      "runs_total",
		Help:      "Total executor runs by outcome",
	}, []string{"node", "outcome"})

	executorOutputLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nodeexec",
		Subsystem: "executor",
		Name:      "output_lines_total",
		Help:      "Total non-blank output lines captured",
	}, []string{"node"})

	executorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nodeexec",
		Subsystem: "executor",
		Name:      "duration_seconds",
		Help:      "Wall time from spawn to termination",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"node"})

	// Local cache for API access.
	nodeCache   = make(map[string]*NodeStats)
	nodeCacheMu sync.RWMutex
)

// NodeStats holds aggregate executor counters for a node.
type NodeStats struct {
	Running     int
	Runs        int
	Failures    int
	OutputLines int
	LastExit    int
}

// ExecutorStarted records a spawned child process.
func ExecutorStarted(node string) {
	executorRunning.WithLabelValues(node).Inc()
	updateCache(node, func(s *NodeStats) { s.Running++ })
}

// ExecutorFinished records a terminated executor. Spawn failures never
// incremented the running gauge, so it is only decremented for real runs.
func ExecutorFinished(node, outcome string, exitCode int, elapsed time.Duration) {
	if outcome != OutcomeSpawnFailed {
		executorRunning.WithLabelValues(node).Dec()
		executorDuration.WithLabelValues(node).Observe(elapsed.Seconds())
	}
	executorRuns.WithLabelValues(node, outcome).Inc()

	updateCache(node, func(s *NodeStats) {
		if outcome != OutcomeSpawnFailed {
			s.Running--
		}
		s.Runs++
		if outcome != OutcomeExited || exitCode != 0 {
			s.Failures++
		}
		s.LastExit = exitCode
	})
}

// OutputLine records one captured output line.
func OutputLine(node string) {
	executorOutputLines.WithLabelValues(node).Inc()
	updateCache(node, func(s *NodeStats) { s.OutputLines++ })
}

// DeleteNodeMetrics removes all metrics for a node.
func DeleteNodeMetrics(node string) {
	executorRunning.DeleteLabelValues(node)
	executorOutputLines.DeleteLabelValues(node)
	executorDuration.DeleteLabelValues(node)
	executorRuns.DeletePartialMatch(prometheus.Labels{"node": node})

	nodeCacheMu.Lock()
	delete(nodeCache, node)
	nodeCacheMu.Unlock()
}

// GetNodeStats returns current counters for a node.
func GetNodeStats(node string) *NodeStats {
	nodeCacheMu.RLock()
	defer nodeCacheMu.RUnlock()
	if s, ok := nodeCache[node]; ok {
		dup := *s
		return &dup
	}
	return nil
}

// GetAllNodeStats returns counters for every node seen so far.
func GetAllNodeStats() map[string]*NodeStats {
	nodeCacheMu.RLock()
	defer nodeCacheMu.RUnlock()
	result := make(map[string]*NodeStats, len(nodeCache))
	for node, s := range nodeCache {
		dup := *s
		result[node] = &dup
	}
	return result
}

func updateCache(node string, update func(*NodeStats)) {
	nodeCacheMu.Lock()
	defer nodeCacheMu.Unlock()
	s, ok := nodeCache[node]
	if !ok {
		s = &NodeStats{}
		nodeCache[node] = s
	}
	update(s)
}
