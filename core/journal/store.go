// Package journal persists the messages processed by the engine so a session
// can be inspected or replayed later.
package journal

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/dispatchmap/core/events"
)

// ErrClosed is returned by Append on a closed store.
var ErrClosed = errors.New("journal: store closed")

// Record captures one reduced message and the phase it led to.
type Record struct {
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      string          `json:"kind"`
	Message   events.Envelope `json:"message"`
	Phase     string          `json:"phase"`
	Status    string          `json:"status,omitempty"`
}

// NewRecord wraps m for storage.
func NewRecord(seq int64, ts time.Time, m events.Message, phase, status string) (Record, error) {
	env, err := events.Marshal(m)
	if err != nil {
		return Record{}, err
	}
	return Record{Seq: seq, Timestamp: ts, Kind: m.Kind(), Message: env, Phase: phase, Status: status}, nil
}

// Decode restores the message carried by r.
func (r Record) Decode() (events.Message, error) {
	return events.Unmarshal(r.Message)
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start time.Time
	End   time.Time
	Kind  string
	// AfterSeq skips records with Seq <= AfterSeq.
	AfterSeq int64
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	return r.Seq > q.AfterSeq
}

// Store persists Records and supports querying them back in order.
// Sequence numbers grow across runs sharing a store: a writer resumes after
// LastSeq.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	// LastSeq returns the highest sequence number stored, 0 when empty.
	LastSeq(ctx context.Context) (int64, error)
	Close() error
}

func maxSeq(recs []Record) int64 {
	var last int64
	for _, r := range recs {
		last = max(last, r.Seq)
	}
	return last
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) LastSeq(context.Context) (int64, error)         { return 0, nil }
func (NopStore) Close() error                                   { return nil }
