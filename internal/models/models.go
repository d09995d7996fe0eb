package models

import "time"

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// TripStatus enumerates the trip state machine.
type TripStatus string

const (
	StatusPreviewed      TripStatus = "previewed"
	StatusRequested      TripStatus = "requested"
	StatusDriverAssigned TripStatus = "driver_assigned"
	StatusAccepted       TripStatus = "accepted"
	StatusInProgress     TripStatus = "in_progress"
	StatusCompleted      TripStatus = "completed"
	StatusCancelled      TripStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s TripStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Cancellation reasons carried on the final status update.
const (
	CancelReasonRider             = "rider_cancelled"
	CancelReasonDriver            = "driver_cancelled"
	CancelReasonDisconnect        = "disconnected"
	CancelReasonNoDriverAvailable = "no_driver_available"
)

// Driver is a registered driver profile plus its live spatial state.
type Driver struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	PackageSlug    string     `json:"packageSlug"`
	CarPlate       string     `json:"carPlate"`
	ProfilePicture string     `json:"profilePicture"`
	Location       Coordinate `json:"location"`
	Geohash        string     `json:"geohash"`
}

// Route is a path between pickup and destination produced by the routing
// collaborator. Geometry is ordered pickup -> destination.
type Route struct {
	Geometry []Coordinate `json:"geometry"`
	Distance float64      `json:"distance"` // meters
	Duration float64      `json:"duration"` // seconds
}

// RideFare is one package-tier quote for a previewed route. Fares expire
// after the configured TTL and must still be valid when the rider starts
// the trip.
type RideFare struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userID"`
	PackageSlug string    `json:"packageSlug"`
	TotalPrice  float64   `json:"totalPriceInINR"`
	Route       *Route    `json:"route,omitempty"`
	CreatedAt   time.Time `json:"-"`
}

// Trip is the central entity. The trip lifecycle owns it for its whole life;
// everything else holds only the ID.
type Trip struct {
	ID             string     `json:"id"`
	RiderID        string     `json:"riderID"`
	DriverID       string     `json:"driverID,omitempty"`
	Pickup         Coordinate `json:"pickup"`
	Destination    Coordinate `json:"destination"`
	Fare           *RideFare  `json:"selectedFare"`
	Status         TripStatus `json:"status"`
	CancelReason   string     `json:"cancelReason,omitempty"`
	PaymentSession string     `json:"paymentSession,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}
