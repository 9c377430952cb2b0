// Package state serves the current render model.
package state

import (
	"encoding/json"
	"net/http"

	"github.com/kilianp07/dispatchmap/core/dispatch"
)

// Source provides the latest render model. engine.Engine satisfies it.
type Source interface {
	Current() dispatch.RenderModel
}

// NewHandler returns an HTTP handler exposing the render model via GET /api/state.
func NewHandler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if err := json.NewEncoder(w).Encode(src.Current()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}
