package dispatch

import (
	"fmt"

	"github.com/kilianp07/dispatchmap/core/events"
	"github.com/kilianp07/dispatchmap/core/model"
)

const (
	TextNoLocation         = "Error: My location not set."
	TextRequesting         = "Requesting trip..."
	TextRequestedFmt       = "Trip Requested (ID: %s). Waiting for allocation."
	TextUnexpected         = "An unexpected error occurred."
	TextReRequesting       = "Re-requesting trip..."
	TextNoCancelledTrip    = "Error: No cancelled trip ID found."
	TextLocationUpdated    = "Location updated successfully!"
	TextPickLocationFirst  = "Error: Please click on the map to set your location first."
	TextUpdateUnexpected   = "An unexpected error occurred while updating location."
	TextTripFinished       = "Trip completed! You can now request a new trip."
	TextNoActiveTrip       = "Error: No active trip ID found."
	TextTripActive         = "Error: You already have an active trip."
	TextOnTheWayFmt        = "Cab %s is on the way!"
	TextInvalidLocation    = "Error: Invalid location."
	TextPassengerOnly      = "Error: Only passengers can request trips."
	TextOperatorOnly       = "Error: Only operators can allocate trips."
	TextTripNotPendingFmt  = "Error: Trip %s is not pending."
	TextAllocatingFmt      = "Allocating a cab to trip %s..."
	TextAllocationSentFmt  = "Allocation requested for trip %s. Waiting for confirmation."
	TextAllocatedFmt       = "Cab %s allocated to trip %s."
	TextNewTripRequestFmt  = "New trip request (ID: %s)."
	FinishLabel            = "Finish My Trip"
	FinishingLabel         = "Finishing..."
	defaultRequestFailure  = "Could not request trip."
	defaultFinishFailure   = "Could not finish trip."
	defaultUpdateFailure   = "Could not update location."
	defaultAllocateFailure = "Could not allocate trip."
)

// failureText renders a command failure. Rejections show the backend's
// message; anything else shows the generic text.
func failureText(ce *events.CommandError, fallback, generic string) string {
	if ce != nil && ce.Kind == events.ErrRejected {
		msg := ce.Message
		if msg == "" {
			msg = fallback
		}
		return "Error: " + msg
	}
	return generic
}

func onTheWayText(self *model.LatLon, v model.Vehicle) string {
	text := fmt.Sprintf(TextOnTheWayFmt, v.ID)
	if self != nil {
		text += fmt.Sprintf(" (%.2f km away)", self.DistanceKm(v.Position))
	}
	return text
}
