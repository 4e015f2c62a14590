package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// ReadMetricsCSV reads a file produced by Writer back into metrics. Unknown
// columns are ignored; the operation, success and rtt_ms columns are required.
func ReadMetricsCSV(path string) ([]Metric, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open metrics CSV: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, name := range []string{"operation", "success", "rtt_ms"} {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("CSV missing required column: %s", name)
		}
	}
	field := func(record []string, name string) string {
		if idx, ok := col[name]; ok && idx < len(record) {
			return record[idx]
		}
		return ""
	}

	var metrics []Metric
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV row %d: %w", row, err)
		}
		m := Metric{
			Operation:   field(record, "operation"),
			Target:      field(record, "target"),
			ServiceCode: field(record, "service_code"),
			Connected:   field(record, "connected") == "true",
			Success:     field(record, "success") == "true",
			Error:       field(record, "error"),
		}
		if t, err := time.Parse(time.RFC3339Nano, field(record, "timestamp")); err == nil {
			m.Timestamp = t
		}
		if v, err := strconv.ParseFloat(field(record, "rtt_ms"), 64); err == nil {
			m.RTTMs = v
		}
		if v, err := strconv.ParseUint(field(record, "status"), 10, 8); err == nil {
			m.Status = uint8(v)
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}
