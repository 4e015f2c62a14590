package metrics

// Metrics output (CSV/JSON) and summary formatting

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{
	"timestamp",
	"operation",
	"target",
	"service_code",
	"connected",
	"success",
	"rtt_ms",
	"status",
	"error",
}

// Writer streams metrics to a CSV file, or to JSON lines when the path ends
// in .json or .jsonl.
type Writer struct {
	file      *os.File
	csvWriter *csv.Writer
	encoder   *json.Encoder
}

// NewWriter creates path and writes the CSV header if needed.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create metrics file: %w", err)
	}
	w := &Writer{file: file}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl":
		w.encoder = json.NewEncoder(file)
	default:
		w.csvWriter = csv.NewWriter(file)
		if err := w.csvWriter.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("write CSV header: %w", err)
		}
		w.csvWriter.Flush()
	}
	return w, nil
}

// WriteMetric writes a single metric.
func (w *Writer) WriteMetric(m Metric) error {
	if w.encoder != nil {
		if err := w.encoder.Encode(m); err != nil {
			return fmt.Errorf("write JSON record: %w", err)
		}
		return nil
	}
	record := []string{
		m.Timestamp.Format(time.RFC3339Nano),
		m.Operation,
		m.Target,
		m.ServiceCode,
		strconv.FormatBool(m.Connected),
		strconv.FormatBool(m.Success),
		formatRTT(m.RTTMs),
		strconv.Itoa(int(m.Status)),
		m.Error,
	}
	if err := w.csvWriter.Write(record); err != nil {
		return fmt.Errorf("write CSV record: %w", err)
	}
	w.csvWriter.Flush()
	return w.csvWriter.Error()
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if w.csvWriter != nil {
		w.csvWriter.Flush()
	}
	return w.file.Close()
}

// formatRTT formats RTT value for CSV (empty string if 0)
func formatRTT(rtt float64) string {
	if rtt == 0 {
		return ""
	}
	return fmt.Sprintf("%.3f", rtt)
}

// FormatSummary formats a summary for human-readable output.
func FormatSummary(summary *Summary) string {
	var b strings.Builder
	if summary.TotalOperations == 0 {
		return "No operations recorded\n"
	}
	total := float64(summary.TotalOperations)
	fmt.Fprintf(&b, "Total Operations: %d\n", summary.TotalOperations)
	fmt.Fprintf(&b, "Successful: %d (%.1f%%)\n", summary.SuccessfulOps, float64(summary.SuccessfulOps)/total*100)
	fmt.Fprintf(&b, "Failed: %d (%.1f%%)\n", summary.FailedOps, float64(summary.FailedOps)/total*100)
	if summary.TimeoutCount > 0 {
		fmt.Fprintf(&b, "Timeouts: %d\n", summary.TimeoutCount)
	}
	if summary.StatusErrors > 0 {
		fmt.Fprintf(&b, "Error status replies: %d\n", summary.StatusErrors)
	}

	if summary.SuccessfulOps > 0 {
		b.WriteString("\nRTT Statistics:\n")
		fmt.Fprintf(&b, "  Min: %.3f ms\n", summary.MinRTT)
		fmt.Fprintf(&b, "  Max: %.3f ms\n", summary.MaxRTT)
		fmt.Fprintf(&b, "  Avg: %.3f ms\n", summary.AvgRTT)
		fmt.Fprintf(&b, "  P50: %.3f ms  P90: %.3f ms  P95: %.3f ms  P99: %.3f ms\n",
			summary.P50RTT, summary.P90RTT, summary.P95RTT, summary.P99RTT)
		if len(summary.RTTBuckets) > 0 {
			fmt.Fprintf(&b, "  Buckets: <1ms=%d 1-5ms=%d 5-10ms=%d 10-50ms=%d 50-100ms=%d 100-500ms=%d >500ms=%d\n",
				summary.RTTBuckets["lt_1ms"],
				summary.RTTBuckets["1_5ms"],
				summary.RTTBuckets["5_10ms"],
				summary.RTTBuckets["10_50ms"],
				summary.RTTBuckets["50_100ms"],
				summary.RTTBuckets["100_500ms"],
				summary.RTTBuckets["gt_500ms"],
			)
		}
	}

	if len(summary.ByOperation) > 0 {
		ops := make([]string, 0, len(summary.ByOperation))
		for op := range summary.ByOperation {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		b.WriteString("\nPer-Operation Statistics:\n")
		for _, op := range ops {
			stats := summary.ByOperation[op]
			fmt.Fprintf(&b, "  %s: %d ops (%d success, %d failed)", op, stats.Count, stats.Success, stats.Failed)
			if stats.Success > 0 {
				fmt.Fprintf(&b, " - RTT: min=%.3fms, max=%.3fms, avg=%.3fms", stats.MinRTT, stats.MaxRTT, stats.AvgRTT)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
