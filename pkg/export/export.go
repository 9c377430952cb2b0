// Package export writes journal records in exchange formats.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/dispatchmap/core/journal"
)

// WriteJSON writes the records to w as a JSON array.
func WriteJSON(w io.Writer, recs []journal.Record) error {
	if recs == nil {
		recs = []journal.Record{}
	}
	return json.NewEncoder(w).Encode(recs)
}

// WriteCSV writes one row per record. The message body is kept as raw JSON
// in the last column.
func WriteCSV(w io.Writer, recs []journal.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"seq", "timestamp", "kind", "phase", "status", "data"}); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			strconv.FormatInt(r.Seq, 10),
			r.Timestamp.UTC().Format(time.RFC3339Nano),
			r.Kind,
			r.Phase,
			r.Status,
			string(r.Message.Data),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
