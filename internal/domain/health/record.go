package health

import (
	"encoding/json"
	"math"
)

// Record is the report for a single dependency. A Record is built wholesale
// from one backend response and never modified afterwards.
type Record struct {
	// Status is the raw status string; may be empty.
	Status string `json:"status,omitempty"`
	// LatencyMS is the probe latency, nil when absent.
	LatencyMS *float64 `json:"latency_ms,omitempty"`
	// Error is the probe error text, nil when absent.
	Error *string `json:"error,omitempty"`
	// Details is arbitrary JSON, nil when absent or falsy.
	Details json.RawMessage `json:"details,omitempty"`
	// Timestamp is when the backend ran the probe, if it said.
	Timestamp string `json:"timestamp,omitempty"`
}

// Class returns the status class of r. A nil record is Unknown.
func (r *Record) Class() Class {
	if r == nil {
		return Unknown
	}
	return Classify(r.Status)
}

// HasLatency reports whether a latency should be displayed. Zero is treated
// the same as absent.
func (r *Record) HasLatency() bool {
	if r == nil || r.LatencyMS == nil {
		return false
	}
	v := *r.LatencyMS
	return v != 0 && !math.IsNaN(v)
}

// RoundedLatency returns the latency rounded to the nearest millisecond,
// halves rounding up.
func (r *Record) RoundedLatency() int64 {
	if !r.HasLatency() {
		return 0
	}
	return int64(math.Floor(*r.LatencyMS + 0.5))
}

// Map holds the records of the known services. A missing or nil entry means
// the backend reported nothing usable for that service.
type Map map[ServiceID]*Record

// Get returns the record for id, or nil.
func (m Map) Get(id ServiceID) *Record {
	if m == nil {
		return nil
	}
	return m[id]
}

// Reported returns how many known services carry a record.
func (m Map) Reported() int {
	n := 0
	for _, s := range services {
		if m.Get(s.ID) != nil {
			n++
		}
	}
	return n
}
