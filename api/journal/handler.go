// Package journal exposes the message journal over HTTP.
package journal

import (
	"net/http"
	"strconv"
	"time"

	corejournal "github.com/kilianp07/dispatchmap/core/journal"
	"github.com/kilianp07/dispatchmap/pkg/export"
)

// NewHandler returns an HTTP handler serving GET /api/journal. Requests must
// include an Authorization header with "Bearer <token>" when token is
// non-empty. Supported filters: start and end (RFC3339), kind, after_seq.
// format=csv returns CSV instead of JSON.
func NewHandler(store corejournal.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		write, ctype := export.WriteJSON, "application/json"
		if r.URL.Query().Get("format") == "csv" {
			write, ctype = export.WriteCSV, "text/csv"
		}
		w.Header().Set("Content-Type", ctype)
		if err := write(w, records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func parseQuery(r *http.Request) (corejournal.Query, error) {
	v := r.URL.Query()
	q := corejournal.Query{Kind: v.Get("kind")}
	if s := v.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.Start = t
	}
	if s := v.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.End = t
	}
	if s := v.Get("after_seq"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return q, err
		}
		q.AfterSeq = n
	}
	return q, nil
}
