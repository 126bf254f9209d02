package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tjusucks/parkops/internal/domain"
)

// StatReader is the minimal interface needed to serve real-time stats.
type StatReader interface {
	GetRealTimeStat(ctx context.Context, rideID int64) (domain.TrafficStat, error)
	GetAllRealTimeStats(ctx context.Context) ([]domain.TrafficStat, error)
}

// GateNotifier is the minimal interface needed to apply gate events.
type GateNotifier interface {
	OnRideEntry(ctx context.Context, rideID int64) error
	OnRideExit(ctx context.Context, rideID int64) error
}

// HandleRideStats routes /rides/{id}/stats/realtime, /rides/{id}/entries
// and /rides/{id}/exits.
func HandleRideStats(stats StatReader, gates GateNotifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rideID, tail, ok := parseRidePath(r.URL.Path)
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if rideID <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidID, domain.ErrInvalidID.Error())
			return
		}

		switch tail {
		case "stats/realtime":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
				return
			}
			stat, err := stats.GetRealTimeStat(r.Context(), rideID)
			if err != nil {
				switch {
				case errors.Is(err, domain.ErrRideNotFound):
					writeError(w, http.StatusNotFound, codeRideNotFound, err.Error())
				case errors.Is(err, domain.ErrInvalidCapacity):
					writeError(w, http.StatusUnprocessableEntity, codeInvalidCapacity, err.Error())
				case errors.Is(err, domain.ErrInvalidCycleDuration):
					writeError(w, http.StatusUnprocessableEntity, codeInvalidCycle, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}
			writeJSON(w, http.StatusOK, statResponseFrom(stat))
			return
		case "entries":
			handleGateEvent(w, r, rideID, gates.OnRideEntry)
			return
		case "exits":
			handleGateEvent(w, r, rideID, gates.OnRideExit)
			return
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
	}
}

// HandleAllStats returns an HTTP handler for GET /stats/realtime.
func HandleAllStats(stats StatReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		all, err := stats.GetAllRealTimeStats(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		resp := make([]statResponse, 0, len(all))
		for _, stat := range all {
			resp = append(resp, statResponseFrom(stat))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGateEvent(w http.ResponseWriter, r *http.Request, rideID int64, apply func(context.Context, int64) error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		return
	}

	if err := apply(r.Context(), rideID); err != nil {
		switch {
		case errors.Is(err, domain.ErrRideNotOperating):
			writeError(w, http.StatusConflict, codeRideNotOperating, err.Error())
		case errors.Is(err, domain.ErrInvalidCapacity):
			writeError(w, http.StatusUnprocessableEntity, codeInvalidCapacity, err.Error())
		case errors.Is(err, domain.ErrInvalidCycleDuration):
			writeError(w, http.StatusUnprocessableEntity, codeInvalidCycle, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	// Gate events are applied to the live snapshot only; the durable row
	// catches up on the next reconciliation pass.
	w.WriteHeader(http.StatusAccepted)
}

type statResponse struct {
	RideID       int64     `json:"ride_id"`
	RecordTime   time.Time `json:"record_time"`
	VisitorCount int       `json:"visitor_count"`
	QueueLength  int       `json:"queue_length"`
	WaitingTime  int       `json:"waiting_time"`
	IsCrowded    bool      `json:"is_crowded"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func statResponseFrom(stat domain.TrafficStat) statResponse {
	return statResponse{
		RideID:       stat.RideID,
		RecordTime:   stat.RecordTime,
		VisitorCount: stat.VisitorCount,
		QueueLength:  stat.QueueLength,
		WaitingTime:  stat.WaitingTime,
		IsCrowded:    stat.IsCrowded,
		UpdatedAt:    stat.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// parseRidePath splits /rides/{id}/... into the ride ID and the rest of
// the path.
func parseRidePath(path string) (int64, string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "rides" {
		return 0, "", false
	}
	rideID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, "", false
	}
	return rideID, strings.Join(parts[2:], "/"), true
}
