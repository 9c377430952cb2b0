package dispatch

import (
	"fmt"

	"github.com/kilianp07/dispatchmap/core/model"
)

// Op identifies a gateway command.
type Op int

const (
	OpRequestTrip Op = iota + 1
	OpReRequestTrip
	OpUpdateLocation
	OpAllocate
	OpFinishTrip
	OpFetchNearby
)

func (o Op) String() string {
	switch o {
	case OpRequestTrip:
		return "request_trip"
	case OpReRequestTrip:
		return "re_request_trip"
	case OpUpdateLocation:
		return "update_location"
	case OpAllocate:
		return "allocate"
	case OpFinishTrip:
		return "finish_trip"
	case OpFetchNearby:
		return "fetch_nearby"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Command is a side effect requested by the reducer. The executor answers
// every command with the matching result message.
type Command struct {
	Op       Op
	Position model.LatLon
	TripID   model.ID
	RadiusKm float64
	// Fleet asks for every engaged cab instead of those around Position.
	Fleet bool
}

func (c Command) String() string {
	switch c.Op {
	case OpRequestTrip, OpUpdateLocation:
		return fmt.Sprintf("%s %s", c.Op, c.Position)
	case OpFetchNearby:
		if c.Fleet {
			return fmt.Sprintf("%s fleet", c.Op)
		}
		return fmt.Sprintf("%s %s r=%.1fkm", c.Op, c.Position, c.RadiusKm)
	default:
		return fmt.Sprintf("%s trip=%s", c.Op, c.TripID)
	}
}
