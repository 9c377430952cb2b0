package model

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// LatLon is a WGS84 coordinate pair in decimal degrees.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinates are finite and within range.
func (p LatLon) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Point returns the orb representation (lon, lat).
func (p LatLon) Point() orb.Point { return orb.Point{p.Lon, p.Lat} }

// FromPoint converts an orb point back to a LatLon.
func FromPoint(pt orb.Point) LatLon { return LatLon{Lat: pt.Lat(), Lon: pt.Lon()} }

// DistanceKm returns the great-circle distance between p and q.
func (p LatLon) DistanceKm(q LatLon) float64 {
	return geo.DistanceHaversine(p.Point(), q.Point()) / 1000
}

func (p LatLon) String() string { return fmt.Sprintf("(%.5f, %.5f)", p.Lat, p.Lon) }
