package link

import (
	"sync/atomic"
	"time"
)

// Metrics contains atomic counters for a Session.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// ExchangeCount indicates the number of frames written to the link.
	ExchangeCount atomic.Uint64
	// RetryCount indicates the number of exchange retries.
	RetryCount atomic.Uint64
	// ErrorCount indicates the number of exchanges that failed for good.
	ErrorCount atomic.Uint64
	// DroppedFrameCount indicates the number of malformed frames discarded.
	DroppedFrameCount atomic.Uint64
	// DrainedByteCount indicates the number of stale bytes discarded before exchanges.
	DrainedByteCount atomic.Uint64
	// ReconnectCount indicates the number of successful reconnects.
	ReconnectCount atomic.Uint64

	lastSuccess atomic.Int64
}

// LastSuccess returns when an exchange last completed, or the zero time.
func (m *Metrics) LastSuccess() time.Time {
	ns := m.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}
	}

	return time.Unix(0, ns)
}

func (m *Metrics) incExchangeCount() {
	m.ExchangeCount.Add(1)
}

func (m *Metrics) incRetryCount() {
	m.RetryCount.Add(1)
}

func (m *Metrics) incErrorCount() {
	m.ErrorCount.Add(1)
}

func (m *Metrics) addDroppedFrameCount(n uint64) {
	m.DroppedFrameCount.Add(n)
}

func (m *Metrics) addDrainedByteCount(n int) {
	m.DrainedByteCount.Add(uint64(n))
}

func (m *Metrics) incReconnectCount() {
	m.ReconnectCount.Add(1)
}

func (m *Metrics) markSuccess() {
	m.lastSuccess.Store(time.Now().UnixNano())
}
