package surface

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/kilianp07/dispatchmap/core/factory"
	"github.com/kilianp07/dispatchmap/core/render"
	"github.com/kilianp07/dispatchmap/infra/logger"
)

// Built is a configured surface. Surfaces that serve HTTP set Pattern and
// Handler.
type Built struct {
	render.Surface
	Pattern string
	Handler http.Handler
}

// Close releases the surface if it holds connections.
func (b Built) Close() {
	if c, ok := b.Surface.(interface{ Close() }); ok {
		c.Close()
	}
}

type mountConf struct {
	Path string `json:"path"`
}

func decodeMount(conf map[string]any, def string) (string, error) {
	var c mountConf
	if err := factory.Decode(conf, &c); err != nil {
		return "", err
	}
	if c.Path == "" {
		c.Path = def
	}
	if c.Path[0] != '/' {
		return "", fmt.Errorf("path %q must start with /", c.Path)
	}
	return c.Path, nil
}

var registry = factory.NewRegistry[Built]()

func init() {
	_ = registry.Register("console", func(conf map[string]any) (Built, error) {
		var c struct {
			Quiet bool `json:"quiet"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return Built{}, err
		}
		var out io.Writer = os.Stdout
		if c.Quiet {
			out = nil
		}
		return Built{Surface: NewConsole(logger.New("console"), out)}, nil
	})
	_ = registry.Register("geojson", func(conf map[string]any) (Built, error) {
		path, err := decodeMount(conf, "/map.geojson")
		if err != nil {
			return Built{}, err
		}
		g := NewGeoJSON()
		return Built{Surface: g, Pattern: "GET " + path, Handler: g}, nil
	})
	_ = registry.Register("relay", func(conf map[string]any) (Built, error) {
		path, err := decodeMount(conf, "/ws")
		if err != nil {
			return Built{}, err
		}
		r := NewRelay(logger.New("relay"))
		return Built{Surface: r, Pattern: "GET " + path, Handler: r}, nil
	})
}

// New builds the surface described by mc.
func New(mc factory.ModuleConfig) (Built, error) {
	return registry.Create(mc)
}

// Kinds lists the registered surface types.
func Kinds() []string { return registry.Names() }
