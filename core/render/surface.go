// Package render describes what a map surface draws and computes the
// incremental operations needed to move it from one scene to the next.
package render

import "github.com/kilianp07/dispatchmap/core/model"

// Style tags how a marker should be drawn.
type Style string

const (
	StyleSelf        Style = "self"
	StyleAssigned    Style = "assigned"
	StyleOnTrip      Style = "on_trip"
	StyleAllocated   Style = "allocated"
	StylePendingTrip Style = "pending_trip"
)

// Marker is a point on the map.
type Marker struct {
	ID       string       `json:"id"`
	Position model.LatLon `json:"position"`
	Style    Style        `json:"style"`
	Label    string       `json:"label,omitempty"`
}

// Line is a segment drawn between two points.
type Line struct {
	ID   string       `json:"id"`
	From model.LatLon `json:"from"`
	To   model.LatLon `json:"to"`
}

// Scene is everything a surface shows at one point in time.
type Scene struct {
	Markers []Marker `json:"markers"`
	Lines   []Line   `json:"lines"`
	Status  string   `json:"status"`
}

// Surface draws markers, lines and a status line. Lines and markers share
// one id space; Remove deletes either.
type Surface interface {
	Upsert(id string, pos model.LatLon, style Style)
	Remove(id string)
	SetStatusText(text string)
	DrawLine(id string, from, to model.LatLon)
}
