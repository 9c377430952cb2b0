package engine

import (
	"context"
	"fmt"

	"github.com/kilianp07/dispatchmap/core/dispatch"
	"github.com/kilianp07/dispatchmap/core/journal"
)

// Replay rebuilds a state by reducing the journaled messages on top of
// initial. Commands are not executed: their results are in the journal.
// visit, when not nil, is called after each record.
func Replay(ctx context.Context, initial dispatch.State, store journal.Store, q journal.Query, visit func(journal.Record, dispatch.State)) (dispatch.State, error) {
	recs, err := store.Query(ctx, q)
	if err != nil {
		return initial, fmt.Errorf("query journal: %w", err)
	}
	s := initial
	for _, rec := range recs {
		m, err := rec.Decode()
		if err != nil {
			return s, fmt.Errorf("record %d: %w", rec.Seq, err)
		}
		s, _ = dispatch.Reduce(s, m)
		if visit != nil {
			visit(rec, s)
		}
	}
	return s, nil
}
