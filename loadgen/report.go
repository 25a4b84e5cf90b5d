package loadgen

import (
	"fmt"
	"os"
	"time"
)

// Summary is the per-run line reported to the operator and appended to the
// results CSV.
type Summary struct {
	Clients      int
	Requests     uint64
	Success      uint64
	Errors       uint64
	Throughput   float64
	AvgLatencyMS float64
}

// Summarize derives the report line from a run result.
func Summarize(res Result, clients int, d time.Duration) Summary {
	return Summary{
		Clients:      clients,
		Requests:     res.Requests,
		Success:      res.Success,
		Errors:       res.Errors,
		Throughput:   res.Throughput(d),
		AvgLatencyMS: res.AvgLatencyMS(),
	}
}

// AppendCSV appends the summary to path, writing the header first when the
// file is new or empty.
func AppendCSV(path string, s Summary) error {
	writeHeader := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		writeHeader = false
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("loadgen: open %s: %w", path, err)
	}
	defer f.Close()

	if writeHeader {
		if _, err := fmt.Fprintln(f, "clients,throughput,avg_latency_ms"); err != nil {
			return fmt.Errorf("loadgen: write header: %w", err)
		}
	}
	if _, err := fmt.Fprintf(f, "%d,%g,%g\n", s.Clients, s.Throughput, s.AvgLatencyMS); err != nil {
		return fmt.Errorf("loadgen: append row: %w", err)
	}
	return nil
}
