package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AuraReaper/voom/internal/models"
	"github.com/AuraReaper/voom/internal/trip"
)

type previewTripRequest struct {
	UserID      string            `json:"userID"`
	Pickup      models.Coordinate `json:"pickup"`
	Destination models.Coordinate `json:"destination"`
}

type startTripRequest struct {
	RideFareID string `json:"rideFareID"`
	UserID     string `json:"userID"`
}

func (s *Server) handlePreviewTrip(w http.ResponseWriter, r *http.Request) {
	var req previewTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	route, fares, err := s.trips.Preview(r.Context(), req.UserID, req.Pickup, req.Destination)
	if err != nil {
		s.writeTripError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "request valid",
		"data": map[string]any{
			"route":     route,
			"rideFares": fares,
		},
	})
}

func (s *Server) handleStartTrip(w http.ResponseWriter, r *http.Request) {
	var req startTripRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := s.trips.Start(r.Context(), req.RideFareID, req.UserID)
	if err != nil {
		s.writeTripError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"tripID": t.ID,
		"status": t.Status,
	})
}

func (s *Server) writeTripError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, trip.ErrQuoteExpired):
		writeError(w, http.StatusGone, "fare quote expired, preview again")
	case errors.Is(err, trip.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("trip request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
