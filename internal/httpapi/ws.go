package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/AuraReaper/voom/internal/contracts"
	"github.com/AuraReaper/voom/internal/models"
	"github.com/AuraReaper/voom/internal/trip"
)

// handleDriverWS is the driver's bidirectional stream. Connecting registers
// the driver profile and replays any in-flight trip; inbound messages are
// location updates and accept/decline/cancel trip events.
func (s *Server) handleDriverWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userID is required")
		return
	}
	packageSlug := query.Get("packageSlug")
	if packageSlug == "" {
		writeError(w, http.StatusBadRequest, "packageSlug is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "actor_id", userID, "error", err)
		return
	}

	driver := s.pool.Register(userID, packageSlug)
	session := s.sessions.Register(userID, conn)
	defer func() {
		s.sessions.Unregister(userID, session)
		s.locations.OnDisconnect(context.Background(), userID)
	}()

	_ = s.sessions.Send(userID, contracts.WSMessage{Type: contracts.DriverCmdRegister, Data: driver})
	s.lifecycle.Replay(userID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("driver ws closed", "actor_id", userID, "error", err)
			}
			return
		}
		s.handleDriverMessage(r.Context(), userID, raw)
	}
}

func (s *Server) handleDriverMessage(ctx context.Context, driverID string, raw []byte) {
	var msg contracts.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Warn("malformed driver message", "actor_id", driverID, "error", err)
		return
	}

	switch msg.Type {
	case contracts.DriverCmdLocation:
		var upd contracts.LocationUpdate
		if err := json.Unmarshal(msg.Data, &upd); err != nil {
			s.logger.Warn("malformed location update", "actor_id", driverID, "error", err)
			return
		}
		s.locations.OnDriverUpdate(ctx, driverID, upd.Location)

	case contracts.DriverCmdTripAccept, contracts.DriverCmdTripDecline:
		var resp contracts.DriverTripResponse
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			s.logger.Warn("malformed trip response", "actor_id", driverID, "error", err)
			return
		}
		var err error
		if msg.Type == contracts.DriverCmdTripAccept {
			err = s.lifecycle.Accept(ctx, resp.TripID, driverID)
		} else {
			err = s.lifecycle.Decline(ctx, resp.TripID, driverID)
		}
		if err != nil && !errors.Is(err, trip.ErrStaleTransition) {
			s.logger.Warn("trip response rejected", "actor_id", driverID, "trip_id", resp.TripID, "error", err)
		}

	case contracts.DriverCmdTripStart, contracts.DriverCmdTripComplete:
		var resp contracts.DriverTripResponse
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			return
		}
		var err error
		if msg.Type == contracts.DriverCmdTripStart {
			err = s.lifecycle.Start(ctx, resp.TripID, driverID)
		} else {
			err = s.lifecycle.Complete(ctx, resp.TripID, driverID)
		}
		if err != nil && !errors.Is(err, trip.ErrStaleTransition) {
			s.logger.Warn("trip progress rejected", "actor_id", driverID, "trip_id", resp.TripID, "type", msg.Type, "error", err)
		}

	case contracts.DriverCmdTripCancel:
		var resp contracts.DriverTripResponse
		if err := json.Unmarshal(msg.Data, &resp); err != nil {
			return
		}
		if err := s.lifecycle.Cancel(ctx, resp.TripID, driverID, models.CancelReasonDriver); err != nil &&
			!errors.Is(err, trip.ErrStaleTransition) {
			s.logger.Warn("driver cancel rejected", "actor_id", driverID, "trip_id", resp.TripID, "error", err)
		}

	default:
		s.logger.Debug("unknown driver message type", "actor_id", driverID, "type", msg.Type)
	}
}

// handleRiderWS is the rider's stream: inbound location updates and cancels,
// outbound nearby-driver snapshots and trip events.
func (s *Server) handleRiderWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userID is required")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "actor_id", userID, "error", err)
		return
	}

	session := s.sessions.Register(userID, conn)
	defer func() {
		s.sessions.Unregister(userID, session)
		s.locations.OnDisconnect(context.Background(), userID)
	}()

	s.lifecycle.Replay(userID)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("rider ws closed", "actor_id", userID, "error", err)
			}
			return
		}
		s.handleRiderMessage(r.Context(), userID, raw)
	}
}

func (s *Server) handleRiderMessage(ctx context.Context, riderID string, raw []byte) {
	var msg contracts.InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Warn("malformed rider message", "actor_id", riderID, "error", err)
		return
	}

	switch msg.Type {
	case contracts.RiderCmdLocation:
		var upd contracts.LocationUpdate
		if err := json.Unmarshal(msg.Data, &upd); err != nil {
			return
		}
		s.locations.OnRiderUpdate(ctx, riderID, upd.Location)

	case contracts.RiderCmdTripCancel:
		var req struct {
			TripID string `json:"tripID"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return
		}
		if err := s.lifecycle.Cancel(ctx, req.TripID, riderID, models.CancelReasonRider); err != nil &&
			!errors.Is(err, trip.ErrStaleTransition) {
			s.logger.Warn("rider cancel rejected", "actor_id", riderID, "trip_id", req.TripID, "error", err)
		}

	default:
		s.logger.Debug("unknown rider message type", "actor_id", riderID, "type", msg.Type)
	}
}
