// Package vehicles lists the cabs currently drawn for the viewer.
package vehicles

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/kilianp07/dispatchmap/api/state"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/render"
)

// Entry is one visible cab.
type Entry struct {
	ID         string       `json:"id"`
	Position   model.LatLon `json:"position"`
	Style      render.Style `json:"style"`
	Assigned   bool         `json:"assigned"`
	DistanceKm *float64     `json:"distance_km,omitempty"`
}

// NewHandler returns an HTTP handler serving GET /api/vehicles. Optional
// filters: style, and near=<lat>,<lon> with radius_km which also sorts the
// result by distance.
func NewHandler(src state.Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		near, radius, err := parseNear(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		style := render.Style(r.URL.Query().Get("style"))

		rm := src.Current()
		markers := rm.Others
		if rm.Assigned != nil {
			markers = append([]render.Marker{*rm.Assigned}, markers...)
		}
		entries := make([]Entry, 0, len(markers))
		for i, m := range markers {
			if style != "" && m.Style != style {
				continue
			}
			e := Entry{ID: m.ID, Position: m.Position, Style: m.Style, Assigned: rm.Assigned != nil && i == 0}
			if near != nil {
				d := near.DistanceKm(m.Position)
				if radius > 0 && d > radius {
					continue
				}
				e.DistanceKm = &d
			}
			entries = append(entries, e)
		}
		if near != nil {
			sort.SliceStable(entries, func(i, j int) bool { return *entries[i].DistanceKm < *entries[j].DistanceKm })
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
}

func parseNear(r *http.Request) (*model.LatLon, float64, error) {
	v := r.URL.Query()
	var radius float64
	if s := v.Get("radius_km"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 {
			return nil, 0, fmt.Errorf("invalid radius_km %q", s)
		}
		radius = f
	}
	s := v.Get("near")
	if s == "" {
		return nil, radius, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, 0, fmt.Errorf("near must be <lat>,<lon>")
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	p := model.LatLon{Lat: lat, Lon: lon}
	if err1 != nil || err2 != nil || !p.Valid() {
		return nil, 0, fmt.Errorf("invalid near %q", s)
	}
	return &p, radius, nil
}
