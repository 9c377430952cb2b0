package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/dispatchmap/core/events"
)

func TestLastSeqSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	backends := []struct {
		name string
		open func() (Store, error)
	}{
		{"jsonl", func() (Store, error) { return NewJSONLStore(filepath.Join(dir, "j.jsonl")) }},
		{"rotating", func() (Store, error) { return NewRotatingJSONLStore(filepath.Join(dir, "r.jsonl"), 1, 2, 1) }},
		{"sqlite", func() (Store, error) { return NewSQLiteStore(filepath.Join(dir, "j.db")) }},
	}
	ctx := context.Background()
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			// each run resumes after the stored sequence
			kinds := [][]events.Message{
				{events.RequestTrip{}, events.FinishTrip{}},
				{events.ReRequestTrip{}},
			}
			for run, msgs := range kinds {
				store, err := b.open()
				if err != nil {
					t.Fatalf("open run %d: %v", run, err)
				}
				last, err := store.LastSeq(ctx)
				if err != nil {
					t.Fatalf("last seq: %v", err)
				}
				for _, m := range msgs {
					last++
					if err := store.Append(ctx, sample(t, last, time.Now(), m)); err != nil {
						t.Fatalf("append: %v", err)
					}
				}
				if err := store.Close(); err != nil {
					t.Fatalf("close: %v", err)
				}
			}

			store, err := b.open()
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			defer func() { _ = store.Close() }()
			if last, err := store.LastSeq(ctx); err != nil || last != 3 {
				t.Fatalf("expected last seq 3, got %d (%v)", last, err)
			}
			recs, err := store.Query(ctx, Query{})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			want := []string{events.KindRequestTrip, events.KindFinishTrip, events.KindReRequestTrip}
			if len(recs) != len(want) {
				t.Fatalf("expected %d records, got %d", len(want), len(recs))
			}
			for i, r := range recs {
				if r.Kind != want[i] || r.Seq != int64(i+1) {
					t.Fatalf("record %d: seq %d kind %s", i, r.Seq, r.Kind)
				}
			}
		})
	}
}

func TestNopStoreLastSeq(t *testing.T) {
	if last, err := (NopStore{}).LastSeq(context.Background()); err != nil || last != 0 {
		t.Fatalf("unexpected %d %v", last, err)
	}
}
