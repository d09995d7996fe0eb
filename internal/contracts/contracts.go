package contracts

import (
	"encoding/json"

	"github.com/AuraReaper/voom/internal/models"
)

// Message types exchanged over the websocket connections. Names follow the
// client contract: drivers send driver.cmd.* messages, the core fans out
// trip.event.* and driver.cmd.* notifications.
const (
	// driver -> core
	DriverCmdLocation     = "driver.cmd.location"
	DriverCmdTripAccept   = "driver.cmd.trip_accept"
	DriverCmdTripDecline  = "driver.cmd.trip_decline"
	DriverCmdTripStart    = "driver.cmd.trip_start"
	DriverCmdTripComplete = "driver.cmd.trip_complete"
	DriverCmdTripCancel   = "driver.cmd.trip_cancel"

	// core -> driver
	DriverCmdRegister    = "driver.cmd.register"
	DriverCmdTripRequest = "driver.cmd.trip_request"

	// rider -> core
	RiderCmdLocation   = "rider.cmd.location"
	RiderCmdTripCancel = "rider.cmd.trip_cancel"

	// core -> rider
	TripEventDriverAssigned        = "trip.event.driver_assigned"
	TripEventNoDriversFound        = "trip.event.no_drivers_found"
	TripEventStatusUpdate          = "trip.event.status_update"
	TripEventDriverLocation        = "trip.event.driver_location"
	TripEventPaymentSessionCreated = "trip.event.payment_session_created"
	RiderEventNearbyDrivers        = "rider.event.nearby_drivers"
)

// WSMessage is the wire envelope for every websocket message.
type WSMessage struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// InboundMessage is the decode-side envelope; Data stays raw until the type
// is known.
type InboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// LocationUpdate is the payload of driver.cmd.location and rider.cmd.location.
type LocationUpdate struct {
	Location models.Coordinate `json:"location"`
}

// DriverTripResponse is the payload of driver.cmd.trip_accept and
// driver.cmd.trip_decline.
type DriverTripResponse struct {
	TripID  string         `json:"tripID"`
	RiderID string         `json:"riderID"`
	Driver  *models.Driver `json:"driver,omitempty"`
}

// TripRequestOffer is pushed to the candidate driver on assignment.
type TripRequestOffer struct {
	TripID      string            `json:"tripID"`
	RiderID     string            `json:"riderID"`
	Pickup      models.Coordinate `json:"pickup"`
	Destination models.Coordinate `json:"destination"`
	Fare        *models.RideFare  `json:"fare"`
}

// TripStatusUpdate is fanned out to both parties on every transition.
type TripStatusUpdate struct {
	TripID string            `json:"tripID"`
	Status models.TripStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
	Driver *models.Driver    `json:"driver,omitempty"`
}

// NearbyDriver is one entry of the rider.event.nearby_drivers snapshot.
type NearbyDriver struct {
	Geohash        string            `json:"geohash"`
	DriverID       string            `json:"driverID"`
	Name           string            `json:"name"`
	CarPlate       string            `json:"carPlate"`
	ProfilePicture string            `json:"profilePicture"`
	Location       models.Coordinate `json:"location"`
}

// DriverLocationUpdate relays an in-trip driver position to the paired rider.
type DriverLocationUpdate struct {
	TripID   string            `json:"tripID"`
	DriverID string            `json:"driverID"`
	Location models.Coordinate `json:"location"`
}

// PaymentSessionCreated notifies the rider that payment can start.
type PaymentSessionCreated struct {
	TripID    string  `json:"tripID"`
	SessionID string  `json:"sessionID"`
	Amount    float64 `json:"amount"`
}
