package journal

import "fmt"

// Options selects and configures a Store.
type Options struct {
	// Backend is "jsonl", "rotating", "sqlite" or "none".
	Backend    string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open builds the store described by o.
func Open(o Options) (Store, error) {
	switch o.Backend {
	case "", "none":
		return NopStore{}, nil
	case "jsonl":
		return NewJSONLStore(o.Path)
	case "rotating":
		return NewRotatingJSONLStore(o.Path, o.MaxSizeMB, o.MaxBackups, o.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(o.Path)
	default:
		return nil, fmt.Errorf("journal: unknown backend %q", o.Backend)
	}
}
