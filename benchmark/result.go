package benchmark

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidResult is returned when a serialized result lacks required fields
var ErrInvalidResult = errors.New("invalid benchmark result")

// Result is the outcome of one target execution: which target ran, what it
// measured and when it finished. It serializes to an object with exactly the
// fields target_id, metrics and timestamp.
type Result struct {
	TargetID  string    `json:"target_id"`
	Metrics   *Metrics  `json:"metrics"`
	Timestamp time.Time `json:"timestamp"`
}

// NewResult stamps metrics with the current UTC time
func NewResult(targetID string, metrics *Metrics) *Result {
	return NewResultAt(targetID, metrics, time.Now())
}

// NewResultAt builds a result with an explicit timestamp. The metrics are
// copied so later changes by the caller don't leak into the record.
func NewResultAt(targetID string, metrics *Metrics, ts time.Time) *Result {
	return &Result{
		TargetID:  targetID,
		Metrics:   metrics.Clone(),
		Timestamp: ts.UTC(),
	}
}

// ToJSON renders the result as indented JSON
func (r *Result) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ParseResult decodes a result and checks its required fields
func ParseResult(data []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.TargetID == "" {
		return nil, fmt.Errorf("%w: missing target_id", ErrInvalidResult)
	}
	if r.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: missing timestamp", ErrInvalidResult)
	}
	if r.Metrics == nil {
		r.Metrics = NewMetrics()
	}
	r.Timestamp = r.Timestamp.UTC()
	return &r, nil
}
