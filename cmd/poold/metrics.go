// metrics.go - Metrics collection for the pool daemon
package main

import (
	"sync"
	"time"
)

// Metrics tracks daemon counters and timings. All methods are safe for
// concurrent use by the API handlers.
type Metrics struct {
	mu sync.RWMutex

	txAccepted     int64
	txRejected     int64
	blocksImported int64
	blocksRejected int64

	importLatencies []time.Duration
	startTime       time.Time
}

// NewMetrics creates a metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// TxAccepted records an admitted transaction.
func (m *Metrics) TxAccepted() {
	m.mu.Lock()
	m.txAccepted++
	m.mu.Unlock()
}

// TxRejected records a rejected transaction.
func (m *Metrics) TxRejected() {
	m.mu.Lock()
	m.txRejected++
	m.mu.Unlock()
}

// BlockImported records a successful import and its validation latency.
func (m *Metrics) BlockImported(latency time.Duration) {
	m.mu.Lock()
	m.blocksImported++
	m.importLatencies = append(m.importLatencies, latency)
	// Keep only the last 1000 samples.
	if len(m.importLatencies) > 1000 {
		m.importLatencies = m.importLatencies[len(m.importLatencies)-1000:]
	}
	m.mu.Unlock()
}

// BlockRejected records a failed import.
func (m *Metrics) BlockRejected() {
	m.mu.Lock()
	m.blocksRejected++
	m.mu.Unlock()
}

// Snapshot returns the current values for the metrics endpoint.
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avgImport time.Duration
	if n := len(m.importLatencies); n > 0 {
		var total time.Duration
		for _, d := range m.importLatencies {
			total += d
		}
		avgImport = total / time.Duration(n)
	}
	return map[string]interface{}{
		"tx_accepted":       m.txAccepted,
		"tx_rejected":       m.txRejected,
		"blocks_imported":   m.blocksImported,
		"blocks_rejected":   m.blocksRejected,
		"import_latency_ms": avgImport.Milliseconds(),
		"uptime_seconds":    int64(time.Since(m.startTime).Seconds()),
	}
}
