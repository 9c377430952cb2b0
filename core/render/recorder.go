package render

import (
	"sync"

	"github.com/kilianp07/dispatchmap/core/model"
)

// Recorder is an in-memory Surface. It keeps the ops it received and the
// resulting scene, which makes it useful in tests and for snapshotting.
type Recorder struct {
	mu      sync.Mutex
	Ops     []Op
	markers map[string]Marker
	lines   map[string]Line
	status  string
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{markers: map[string]Marker{}, lines: map[string]Line{}}
}

func (r *Recorder) Upsert(id string, pos model.LatLon, style Style) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, Op{Kind: OpUpsert, ID: id, Position: pos, Style: style})
	r.markers[id] = Marker{ID: id, Position: pos, Style: style}
}

func (r *Recorder) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, Op{Kind: OpRemove, ID: id})
	delete(r.markers, id)
	delete(r.lines, id)
}

func (r *Recorder) SetStatusText(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, Op{Kind: OpStatus, Text: text})
	r.status = text
}

func (r *Recorder) DrawLine(id string, from, to model.LatLon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Ops = append(r.Ops, Op{Kind: OpLine, ID: id, Position: from, To: to})
	r.lines[id] = Line{ID: id, From: from, To: to}
}

// Marker returns the marker currently drawn under id.
func (r *Recorder) Marker(id string) (Marker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.markers[id]
	return m, ok
}

// Line returns the line currently drawn under id.
func (r *Recorder) Line(id string) (Line, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lines[id]
	return l, ok
}

// Status returns the last status text.
func (r *Recorder) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Len returns the number of markers drawn.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.markers)
}
