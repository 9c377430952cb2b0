package surface

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/render"
)

// GeoJSON keeps the drawn scene as GeoJSON features. Markers become
// points, lines become two-point line strings and the status text is an
// extra member of the collection.
type GeoJSON struct {
	mu       sync.RWMutex
	features map[string]*geojson.Feature
	status   string
}

func NewGeoJSON() *GeoJSON {
	return &GeoJSON{features: make(map[string]*geojson.Feature)}
}

func (g *GeoJSON) Upsert(id string, pos model.LatLon, style render.Style) {
	f := geojson.NewFeature(pos.Point())
	f.ID = id
	f.Properties["id"] = id
	f.Properties["kind"] = "marker"
	f.Properties["style"] = string(style)
	g.mu.Lock()
	g.features[id] = f
	g.mu.Unlock()
}

func (g *GeoJSON) Remove(id string) {
	g.mu.Lock()
	delete(g.features, id)
	g.mu.Unlock()
}

func (g *GeoJSON) DrawLine(id string, from, to model.LatLon) {
	f := geojson.NewFeature(orb.LineString{from.Point(), to.Point()})
	f.ID = id
	f.Properties["id"] = id
	f.Properties["kind"] = "line"
	f.Properties["length_km"] = from.DistanceKm(to)
	g.mu.Lock()
	g.features[id] = f
	g.mu.Unlock()
}

func (g *GeoJSON) SetStatusText(text string) {
	g.mu.Lock()
	g.status = text
	g.mu.Unlock()
}

// FeatureCollection returns a copy of the current scene ordered by id.
func (g *GeoJSON) FeatureCollection() *geojson.FeatureCollection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.features))
	for id := range g.features {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fc := geojson.NewFeatureCollection()
	for _, id := range ids {
		f := *g.features[id]
		f.Properties = f.Properties.Clone()
		fc.Append(&f)
	}
	fc.ExtraMembers = geojson.Properties{"status": g.status}
	return fc
}

// ServeHTTP writes the feature collection.
func (g *GeoJSON) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(g.FeatureCollection())
}
