package metrics

import (
	"time"

	"github.com/minhtran2412/loadscope/internal/logdata"
)

// MetricPoint is one time bin of aggregated traffic. Points are recomputed
// on every query and never persisted.
type MetricPoint struct {
	Timestamp    time.Time `json:"timestamp"` // bin start
	RequestCount int       `json:"request_count"`
	Bytes        int64     `json:"bytes"`
}

// Rollup holds the trailing-window scalar summaries shown as the
// dashboard's "current state": request rate (req/s), error rate (fraction
// of 4xx/5xx responses) and throughput (bytes/s).
type Rollup struct {
	RequestRate float64 `json:"request_rate"`
	ErrorRate   float64 `json:"error_rate"`
	Throughput  float64 `json:"throughput"`
}

// rollupWindow is the trailing span the scalar rollups cover. Anchored to
// the newest record timestamp, not the wall clock, so accelerated replay
// still reports meaningful rates.
const rollupWindow = 60 * time.Second

// Series bins records into a gap-free MetricPoint sequence covering the
// buffer's full timestamp span. Bins with no records are zero-filled.
// Records need not be time-ordered; each lands in the bin its own
// timestamp falls into. A non-positive bin width or an empty input yields
// nil.
func Series(records []logdata.Record, bin time.Duration) []MetricPoint {
	if len(records) == 0 || bin <= 0 {
		return nil
	}

	minTS, maxTS := records[0].Timestamp, records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp.Before(minTS) {
			minTS = r.Timestamp
		}
		if r.Timestamp.After(maxTS) {
			maxTS = r.Timestamp
		}
	}

	start := minTS.Truncate(bin)
	end := maxTS.Truncate(bin)
	n := int(end.Sub(start)/bin) + 1

	points := make([]MetricPoint, n)
	for i := range points {
		points[i].Timestamp = start.Add(time.Duration(i) * bin)
	}
	for _, r := range records {
		i := int(r.Timestamp.Truncate(bin).Sub(start) / bin)
		points[i].RequestCount++
		points[i].Bytes += r.Bytes
	}
	return points
}

// Rollups computes the trailing-window summaries over records. The window
// ends at the newest record timestamp; an empty input yields zeroes, the
// "waiting for data" state.
func Rollups(records []logdata.Record) Rollup {
	if len(records) == 0 {
		return Rollup{}
	}

	latest := records[0].Timestamp
	for _, r := range records[1:] {
		if r.Timestamp.After(latest) {
			latest = r.Timestamp
		}
	}
	cutoff := latest.Add(-rollupWindow)

	var recent, errors int
	var bytes int64
	// Half-open window: a record sitting exactly at the cutoff is out.
	for _, r := range records {
		if !r.Timestamp.After(cutoff) {
			continue
		}
		recent++
		bytes += r.Bytes
		if r.IsError() {
			errors++
		}
	}

	roll := Rollup{
		RequestRate: float64(recent) / rollupWindow.Seconds(),
		Throughput:  float64(bytes) / rollupWindow.Seconds(),
	}
	if recent > 0 {
		roll.ErrorRate = float64(errors) / float64(recent)
	}
	return roll
}
