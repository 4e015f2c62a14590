package metrics

// Round-trip statistics for CIP requests

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// Metric is the outcome of one request.
type Metric struct {
	Timestamp   time.Time `json:"timestamp"`
	Operation   string    `json:"operation"`
	Target      string    `json:"target"`
	ServiceCode string    `json:"service_code"`
	Connected   bool      `json:"connected"`
	Success     bool      `json:"success"`
	RTTMs       float64   `json:"rtt_ms"`
	Status      uint8     `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// Sink collects metrics and keeps a running summary. When a Writer is
// attached every metric is also written out as it is recorded.
type Sink struct {
	mu      sync.RWMutex
	metrics []Metric
	summary *Summary
	writer  *Writer
}

// Summary contains aggregated statistics.
type Summary struct {
	TotalOperations int
	SuccessfulOps   int
	FailedOps       int
	TimeoutCount    int
	StatusErrors    int
	MinRTT          float64
	MaxRTT          float64
	AvgRTT          float64
	P50RTT          float64
	P90RTT          float64
	P95RTT          float64
	P99RTT          float64
	RTTBuckets      map[string]int
	ByOperation     map[string]*OperationStats
}

// OperationStats are the statistics of one operation name.
type OperationStats struct {
	Count   int
	Success int
	Failed  int
	MinRTT  float64
	MaxRTT  float64
	AvgRTT  float64
	SumRTT  float64
}

func newSummary() *Summary {
	return &Summary{
		RTTBuckets:  make(map[string]int),
		ByOperation: make(map[string]*OperationStats),
	}
}

// NewSink creates a sink. w may be nil.
func NewSink(w *Writer) *Sink {
	return &Sink{summary: newSummary(), writer: w}
}

// Record adds a metric. A nil sink ignores it.
func (s *Sink) Record(m Metric) error {
	if s == nil {
		return nil
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = append(s.metrics, m)
	s.updateSummary(m)
	if s.writer != nil {
		return s.writer.WriteMetric(m)
	}
	return nil
}

// Metrics returns a copy of all recorded metrics.
func (s *Sink) Metrics() []Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Metric, len(s.metrics))
	copy(out, s.metrics)
	return out
}

// Summary returns a copy of the aggregated statistics with percentiles.
func (s *Sink) Summary() *Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := *s.summary
	summary.RTTBuckets = make(map[string]int)
	summary.ByOperation = make(map[string]*OperationStats, len(s.summary.ByOperation))
	for op, stats := range s.summary.ByOperation {
		copied := *stats
		summary.ByOperation[op] = &copied
	}

	rtts := make([]float64, 0, len(s.metrics))
	for _, m := range s.metrics {
		if m.Success && m.RTTMs > 0 {
			rtts = append(rtts, m.RTTMs)
			incrementBucket(summary.RTTBuckets, m.RTTMs)
		}
	}
	p := computePercentiles(rtts)
	summary.P50RTT, summary.P90RTT, summary.P95RTT, summary.P99RTT = p[0], p[1], p[2], p[3]
	return &summary
}

func (s *Sink) updateSummary(m Metric) {
	s.summary.TotalOperations++
	if m.Success {
		s.summary.SuccessfulOps++
	} else {
		s.summary.FailedOps++
		switch {
		case strings.Contains(m.Error, "deadline exceeded") || strings.Contains(m.Error, "timeout"):
			s.summary.TimeoutCount++
		case m.Status != 0:
			s.summary.StatusErrors++
		}
	}

	if m.Success && m.RTTMs > 0 {
		if s.summary.MinRTT == 0 || m.RTTMs < s.summary.MinRTT {
			s.summary.MinRTT = m.RTTMs
		}
		if m.RTTMs > s.summary.MaxRTT {
			s.summary.MaxRTT = m.RTTMs
		}
		total := s.summary.AvgRTT * float64(s.summary.SuccessfulOps-1)
		s.summary.AvgRTT = (total + m.RTTMs) / float64(s.summary.SuccessfulOps)
	}

	stats, ok := s.summary.ByOperation[m.Operation]
	if !ok {
		stats = &OperationStats{}
		s.summary.ByOperation[m.Operation] = stats
	}
	stats.Count++
	if !m.Success {
		stats.Failed++
		return
	}
	stats.Success++
	if m.RTTMs > 0 {
		if stats.MinRTT == 0 || m.RTTMs < stats.MinRTT {
			stats.MinRTT = m.RTTMs
		}
		if m.RTTMs > stats.MaxRTT {
			stats.MaxRTT = m.RTTMs
		}
		stats.SumRTT += m.RTTMs
		stats.AvgRTT = stats.SumRTT / float64(stats.Success)
	}
}

func incrementBucket(buckets map[string]int, value float64) {
	switch {
	case value < 1:
		buckets["lt_1ms"]++
	case value < 5:
		buckets["1_5ms"]++
	case value < 10:
		buckets["5_10ms"]++
	case value < 50:
		buckets["10_50ms"]++
	case value < 100:
		buckets["50_100ms"]++
	case value < 500:
		buckets["100_500ms"]++
	default:
		buckets["gt_500ms"]++
	}
}

func computePercentiles(values []float64) [4]float64 {
	var result [4]float64
	if len(values) == 0 {
		return result
	}
	sort.Float64s(values)
	result[0] = percentile(values, 0.50)
	result[1] = percentile(values, 0.90)
	result[2] = percentile(values, 0.95)
	result[3] = percentile(values, 0.99)
	return result
}

func percentile(sorted []float64, p float64) float64 {
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
