// Package runlog records chain invocations and answers aggregate queries
// over them: counts, failure totals, latency, and token usage grouped by
// template, model, or time bucket.
package runlog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Record is a single recorded invocation.
type Record struct {
	ID               string    `json:"id,omitempty"`
	Template         string    `json:"template"`
	Model            string    `json:"model,omitempty"`
	LatencyMs        int64     `json:"latency_ms"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	OK               bool      `json:"ok"`
	At               time.Time `json:"at"`
}

// Recorder accepts invocation records. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Store records invocations and serves aggregate queries over them.
type Store interface {
	Recorder
	Summarize(ctx context.Context, q Query) ([]Summary, error)
}

// Query filters and groups records for aggregation.
type Query struct {
	Template string
	Model    string
	From     time.Time
	To       time.Time
	GroupBy  string // "template", "model", "day", "hour"
	Limit    int
}

// Summary is a bucketed aggregate (e.g. per template or per day).
type Summary struct {
	Key              string  `json:"key"`
	Invocations      int64   `json:"invocations"`
	Failures         int64   `json:"failures"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
}

// matches reports whether rec passes the query's filters.
func (q Query) matches(rec Record) bool {
	if q.Template != "" && rec.Template != q.Template {
		return false
	}
	if q.Model != "" && rec.Model != q.Model {
		return false
	}
	if !q.From.IsZero() && rec.At.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && rec.At.After(q.To) {
		return false
	}
	return true
}

// bucket returns the grouping key for rec under the query's GroupBy.
func (q Query) bucket(rec Record) string {
	switch q.GroupBy {
	case "template":
		return rec.Template
	case "model":
		return rec.Model
	case "day":
		return rec.At.Format("2006-01-02")
	case "hour":
		return rec.At.Format("2006-01-02-15")
	default:
		return "all"
	}
}

// summarize filters and aggregates records in memory. Shared by the
// memory and redis stores.
func summarize(records []Record, q Query) []Summary {
	agg := make(map[string]*Summary)
	for _, rec := range records {
		if !q.matches(rec) {
			continue
		}
		k := q.bucket(rec)
		s := agg[k]
		if s == nil {
			s = &Summary{Key: k}
			agg[k] = s
		}
		s.Invocations++
		if !rec.OK {
			s.Failures++
		}
		s.AvgLatencyMs = (s.AvgLatencyMs*float64(s.Invocations-1) + float64(rec.LatencyMs)) / float64(s.Invocations)
		s.PromptTokens += int64(rec.PromptTokens)
		s.CompletionTokens += int64(rec.CompletionTokens)
	}
	out := make([]Summary, 0, len(agg))
	for _, s := range agg {
		out = append(out, *s)
	}
	// Busiest buckets first, matching the SQL store's ordering.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Invocations != out[j].Invocations {
			return out[i].Invocations > out[j].Invocations
		}
		return out[i].Key < out[j].Key
	})
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Memory is an in-process Store holding a bounded slice of records.
type Memory struct {
	mu      sync.RWMutex
	max     int
	records []Record
}

// NewMemory creates an in-memory store that keeps at most max records
// (0 = unbounded).
func NewMemory(max int) *Memory {
	return &Memory{max: max, records: make([]Record, 0, 256)}
}

// Record implements Recorder.
func (m *Memory) Record(ctx context.Context, rec Record) error {
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	if m.max > 0 && len(m.records) > m.max {
		m.records = m.records[len(m.records)-m.max:]
	}
	return nil
}

// Summarize implements Store.
func (m *Memory) Summarize(ctx context.Context, q Query) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return summarize(m.records, q), nil
}

var _ Store = (*Memory)(nil)
