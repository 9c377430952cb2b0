package factory

import (
	"errors"
	"testing"
	"time"
)

type relayConf struct {
	Path    string        `json:"path"`
	Buffer  int           `json:"buffer"`
	Timeout time.Duration `json:"timeout"`
	Rooms   []string      `json:"rooms"`
}

type relay struct{ conf relayConf }

func newRelayRegistry(t *testing.T) *Registry[*relay] {
	t.Helper()
	reg := NewRegistry[*relay]()
	err := reg.Register("relay", func(conf map[string]any) (*relay, error) {
		var c relayConf
		if err := Decode(conf, &c); err != nil {
			return nil, err
		}
		if c.Path == "" {
			return nil, errors.New("path is required")
		}
		return &relay{conf: c}, nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func TestRegistryCreate(t *testing.T) {
	reg := newRelayRegistry(t)
	r, err := reg.Create(ModuleConfig{Type: "relay", Conf: map[string]any{"path": "/ws", "buffer": 16}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.conf.Path != "/ws" || r.conf.Buffer != 16 {
		t.Fatalf("unexpected conf %+v", r.conf)
	}
	if !reg.Has("relay") || reg.Has("console") {
		t.Fatalf("unexpected Has results for %v", reg.Names())
	}
}

func TestRegistryErrors(t *testing.T) {
	reg := newRelayRegistry(t)
	if err := reg.Register("relay", func(map[string]any) (*relay, error) { return nil, nil }); err == nil {
		t.Fatal("expected duplicate error")
	}
	if err := reg.Register("nil", nil); err == nil {
		t.Fatal("expected nil factory error")
	}
	if _, err := reg.Create(ModuleConfig{Type: "console"}); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType got %v", err)
	}
	if _, err := reg.Create(ModuleConfig{Type: "relay"}); err == nil {
		t.Fatal("expected factory error to surface")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry[int]()
	for _, n := range []string{"socketio", "mqtt", "replay"} {
		if err := reg.Register(n, func(map[string]any) (int, error) { return 0, nil }); err != nil {
			t.Fatalf("register %s: %v", n, err)
		}
	}
	got := reg.Names()
	if len(got) != 3 || got[0] != "mqtt" || got[1] != "replay" || got[2] != "socketio" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestDecodeStringValues(t *testing.T) {
	var c relayConf
	in := map[string]any{"path": "/ws", "buffer": "8", "timeout": "1500ms", "rooms": "admin,drivers"}
	if err := Decode(in, &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.Buffer != 8 || c.Timeout != 1500*time.Millisecond {
		t.Fatalf("unexpected %+v", c)
	}
	if len(c.Rooms) != 2 || c.Rooms[1] != "drivers" {
		t.Fatalf("unexpected rooms %v", c.Rooms)
	}
}
