// Package analytics keeps a bounded in-memory record of recent chat
// turns: round-trip latency, server inference time, derived network
// time, and the outcomes of external run log attempts. Records older
// than the horizon fall off on every read; nothing is persisted.
package analytics

import (
	"sync"
	"time"

	"github.com/remacdev/chatbot/pkg/runlog"
)

// Horizon bounds how far back records are kept.
const Horizon = 6 * time.Hour

// SeriesWindow caps how many trailing points the chart series return.
const SeriesWindow = 200

// Throughput windows shown in the analytics panel.
const (
	ThroughputShort = time.Minute
	ThroughputLong  = 5 * time.Minute
)

// Record is one chat turn. Timing fields are nil on failed turns, which
// still count toward totals and throughput.
type Record struct {
	Timestamp        time.Time `json:"timestamp"`
	LatencySeconds   *float64  `json:"latency_seconds,omitempty"`
	InferenceSeconds *float64  `json:"inference_seconds,omitempty"`
	NetworkSeconds   *float64  `json:"network_seconds,omitempty"`
	Err              string    `json:"error,omitempty"`
}

// Summary is the headline view over the retained records. Pointer fields
// are nil when no record carried the underlying value.
type Summary struct {
	Count        int      `json:"count"`
	LastLatency  *float64 `json:"last_latency,omitempty"`
	AvgLatency   *float64 `json:"avg_latency,omitempty"`
	AvgInference *float64 `json:"avg_inference,omitempty"`
	AvgNetwork   *float64 `json:"avg_network,omitempty"`
}

// Ring is a per-session analytics store. Safe for concurrent use.
type Ring struct {
	mu      sync.Mutex
	horizon time.Duration
	records []Record
	runlogs []runlog.Outcome
}

// NewRing builds a Ring with the standard six hour horizon.
func NewRing() *Ring {
	return &Ring{horizon: Horizon}
}

// Record appends one turn record.
func (r *Ring) Record(rec Record) {
	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()
}

// RecordError appends a failed-turn record. Failed turns carry no
// timings but count toward totals and throughput.
func (r *Ring) RecordError(ts time.Time, msg string) {
	r.Record(Record{Timestamp: ts, Err: msg})
}

// RecordRunLog appends the outcome of one run log attempt.
func (r *Ring) RecordRunLog(o runlog.Outcome) {
	r.mu.Lock()
	r.runlogs = append(r.runlogs, o)
	r.mu.Unlock()
}

// Prune drops records older than the horizon. Every read prunes
// implicitly; this is for callers that want to bound memory without
// reading anything.
func (r *Ring) Prune(now time.Time) {
	r.mu.Lock()
	r.pruneLocked(now)
	r.mu.Unlock()
}

func (r *Ring) pruneLocked(now time.Time) {
	cutoff := now.Add(-r.horizon)

	kept := r.records[:0]
	for _, rec := range r.records {
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	r.records = kept

	keptLogs := r.runlogs[:0]
	for _, o := range r.runlogs {
		if !o.Time.Before(cutoff) {
			keptLogs = append(keptLogs, o)
		}
	}
	r.runlogs = keptLogs
}

// Summary prunes, then reduces the retained records. Averages cover only
// records that carried the field, so failed turns inflate Count without
// dragging the means down.
func (r *Ring) Summary(now time.Time) Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)

	s := Summary{Count: len(r.records)}
	var latencies, inferences, networks []float64
	for _, rec := range r.records {
		if rec.LatencySeconds != nil {
			latencies = append(latencies, *rec.LatencySeconds)
		}
		if rec.InferenceSeconds != nil {
			inferences = append(inferences, *rec.InferenceSeconds)
		}
		if rec.NetworkSeconds != nil {
			networks = append(networks, *rec.NetworkSeconds)
		}
	}
	if len(latencies) > 0 {
		last := latencies[len(latencies)-1]
		s.LastLatency = &last
	}
	s.AvgLatency = mean(latencies)
	s.AvgInference = mean(inferences)
	s.AvgNetwork = mean(networks)
	return s
}

// Throughput reports requests per minute over the trailing window.
func (r *Ring) Throughput(now time.Time, window time.Duration) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)

	cutoff := now.Add(-window)
	count := 0
	for _, rec := range r.records {
		if !rec.Timestamp.Before(cutoff) {
			count++
		}
	}
	return float64(count) / window.Minutes()
}

// Series returns the trailing chart points in arrival order: latencies
// and inference times of the records that carried them, each capped at
// the last n points.
func (r *Ring) Series(now time.Time, n int) (latencies, inferences []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)

	for _, rec := range r.records {
		if rec.LatencySeconds != nil {
			latencies = append(latencies, *rec.LatencySeconds)
		}
		if rec.InferenceSeconds != nil {
			inferences = append(inferences, *rec.InferenceSeconds)
		}
	}
	return tail(latencies, n), tail(inferences, n)
}

// RunLogOutcomes returns the retained run log outcomes, oldest first.
func (r *Ring) RunLogOutcomes(now time.Time) []runlog.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruneLocked(now)

	out := make([]runlog.Outcome, len(r.runlogs))
	copy(out, r.runlogs)
	return out
}

// Reset drops everything, run log outcomes included.
func (r *Ring) Reset() {
	r.mu.Lock()
	r.records = nil
	r.runlogs = nil
	r.mu.Unlock()
}

// NetworkSeconds derives time spent on the wire: round trip minus
// inference, floored at zero since skewed server clocks can report more
// inference than the whole round trip took. Unknown inference means the
// whole round trip counts as network.
func NetworkSeconds(latency float64, inference *float64) float64 {
	if inference == nil {
		return latency
	}
	if n := latency - *inference; n > 0 {
		return n
	}
	return 0
}

func mean(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	m := sum / float64(len(vals))
	return &m
}

func tail(vals []float64, n int) []float64 {
	if n <= 0 || len(vals) <= n {
		return vals
	}
	return vals[len(vals)-n:]
}
