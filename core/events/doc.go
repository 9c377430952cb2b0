// Package events defines the messages consumed by the dispatch reducer.
//
// Messages form a closed set:
//   - channel events: LocationUpdate, TripAllocated, NewTripRequest,
//     Connected, Disconnected and Unknown
//   - user intents: PickLocation, RequestTrip, ReRequestTrip,
//     UpdateLocation, AllocateVehicle, FinishTrip
//   - command results: RequestTripResult, ReRequestTripResult,
//     UpdateLocationResult, AllocateResult, FinishTripResult, NearbyResult
//
// Decode parses the backend wire format of channel events. Marshal and
// Unmarshal wrap any message in an Envelope for the journal.
package events
