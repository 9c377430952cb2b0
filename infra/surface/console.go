// Package surface holds render.Surface implementations: a log console, a
// GeoJSON document served over HTTP and a websocket relay for browsers.
package surface

import (
	"fmt"
	"io"
	"sync"

	"github.com/kilianp07/dispatchmap/core/logger"
	"github.com/kilianp07/dispatchmap/core/model"
	"github.com/kilianp07/dispatchmap/core/render"
)

// Console logs every surface call and prints status text changes to out.
type Console struct {
	log logger.Logger
	mu  sync.Mutex
	out io.Writer
}

// NewConsole returns a console surface. out may be nil.
func NewConsole(log logger.Logger, out io.Writer) *Console {
	return &Console{log: logger.OrNop(log), out: out}
}

func (c *Console) Upsert(id string, pos model.LatLon, style render.Style) {
	c.log.Debugw("upsert marker", map[string]any{"id": id, "lat": pos.Lat, "lon": pos.Lon, "style": string(style)})
}

func (c *Console) Remove(id string) {
	c.log.Debugw("remove", map[string]any{"id": id})
}

func (c *Console) DrawLine(id string, from, to model.LatLon) {
	c.log.Debugw("draw line", map[string]any{"id": id, "from": from.String(), "to": to.String()})
}

func (c *Console) SetStatusText(text string) {
	c.log.Infof("status: %s", text)
	if c.out == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "» %s\n", text)
}
