package render

import (
	"fmt"

	"github.com/kilianp07/dispatchmap/core/model"
)

// OpKind enumerates surface operations.
type OpKind string

const (
	OpUpsert OpKind = "upsert"
	OpRemove OpKind = "remove"
	OpStatus OpKind = "status"
	OpLine   OpKind = "line"
)

// Op is one surface call.
type Op struct {
	Kind     OpKind       `json:"op"`
	ID       string       `json:"id,omitempty"`
	Position model.LatLon `json:"position,omitempty"`
	Style    Style        `json:"style,omitempty"`
	To       model.LatLon `json:"to,omitempty"`
	Text     string       `json:"text,omitempty"`
}

func (o Op) String() string {
	switch o.Kind {
	case OpUpsert:
		return fmt.Sprintf("upsert %s %s %s", o.ID, o.Position, o.Style)
	case OpRemove:
		return "remove " + o.ID
	case OpStatus:
		return fmt.Sprintf("status %q", o.Text)
	case OpLine:
		return fmt.Sprintf("line %s %s->%s", o.ID, o.Position, o.To)
	default:
		return string(o.Kind)
	}
}

// Diff returns the operations turning prev into next. Removals come first,
// then marker upserts, line draws and the status text, each in next's order.
func Diff(prev, next Scene) []Op {
	var ops []Op
	nextMarkers := make(map[string]struct{}, len(next.Markers))
	for _, m := range next.Markers {
		nextMarkers[m.ID] = struct{}{}
	}
	nextLines := make(map[string]struct{}, len(next.Lines))
	for _, l := range next.Lines {
		nextLines[l.ID] = struct{}{}
	}
	for _, m := range prev.Markers {
		if _, ok := nextMarkers[m.ID]; !ok {
			ops = append(ops, Op{Kind: OpRemove, ID: m.ID})
		}
	}
	for _, l := range prev.Lines {
		if _, ok := nextLines[l.ID]; !ok {
			ops = append(ops, Op{Kind: OpRemove, ID: l.ID})
		}
	}

	prevMarkers := make(map[string]Marker, len(prev.Markers))
	for _, m := range prev.Markers {
		prevMarkers[m.ID] = m
	}
	for _, m := range next.Markers {
		if old, ok := prevMarkers[m.ID]; ok && old.Position == m.Position && old.Style == m.Style {
			continue
		}
		ops = append(ops, Op{Kind: OpUpsert, ID: m.ID, Position: m.Position, Style: m.Style})
	}
	prevLines := make(map[string]Line, len(prev.Lines))
	for _, l := range prev.Lines {
		prevLines[l.ID] = l
	}
	for _, l := range next.Lines {
		if old, ok := prevLines[l.ID]; ok && old == l {
			continue
		}
		ops = append(ops, Op{Kind: OpLine, ID: l.ID, Position: l.From, To: l.To})
	}
	if prev.Status != next.Status {
		ops = append(ops, Op{Kind: OpStatus, Text: next.Status})
	}
	return ops
}

// Apply replays ops on s.
func Apply(s Surface, ops []Op) {
	for _, op := range ops {
		switch op.Kind {
		case OpUpsert:
			s.Upsert(op.ID, op.Position, op.Style)
		case OpRemove:
			s.Remove(op.ID)
		case OpStatus:
			s.SetStatusText(op.Text)
		case OpLine:
			s.DrawLine(op.ID, op.Position, op.To)
		}
	}
}
