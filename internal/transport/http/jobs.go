package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/tjusucks/parkops/internal/app"
	"github.com/tjusucks/parkops/internal/clock"
	"github.com/tjusucks/parkops/internal/domain"
)

// PassRunner is the minimal interface needed to trigger a
// reconciliation pass on demand.
type PassRunner interface {
	RunAll(ctx context.Context, recordTime time.Time) (app.PassSummary, error)
	RunOne(ctx context.Context, rideID int64, recordTime time.Time) error
}

// SnapshotArchiver is the minimal interface needed to trigger retention.
type SnapshotArchiver interface {
	ArchiveOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// HandleReconcile returns an HTTP handler for POST /stats/reconcile. It
// runs one pass for the current interval, covering every operating ride
// or a single ride when the body names one, and reports the outcome.
func HandleReconcile(runner PassRunner, clk clock.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req reconcileRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		recordTime := domain.QuantizeRecordTime(clk.Now())

		if req.RideID != 0 {
			if req.RideID < 0 {
				writeError(w, http.StatusBadRequest, codeInvalidID, domain.ErrInvalidID.Error())
				return
			}
			summary := app.PassSummary{Total: 1}
			if err := runner.RunOne(r.Context(), req.RideID, recordTime); err != nil {
				if errors.Is(err, domain.ErrRideNotFound) {
					writeError(w, http.StatusNotFound, codeRideNotFound, err.Error())
					return
				}
				summary.Failed = 1
			} else {
				summary.Processed = 1
			}
			writeJSON(w, http.StatusOK, reconcileResponse{
				RecordTime: recordTime,
				Total:      summary.Total,
				Processed:  summary.Processed,
				Failed:     summary.Failed,
			})
			return
		}

		summary, err := runner.RunAll(r.Context(), recordTime)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, reconcileResponse{
			RecordTime: recordTime,
			Total:      summary.Total,
			Processed:  summary.Processed,
			Failed:     summary.Failed,
		})
	}
}

// HandleArchive returns an HTTP handler for POST /stats/archive.
func HandleArchive(archiver SnapshotArchiver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req archiveRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		cutoff, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidCutoff, "invalid before timestamp")
			return
		}

		removed, err := archiver.ArchiveOlderThan(r.Context(), cutoff)
		if err != nil {
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, archiveResponse{
			Before:  cutoff,
			Removed: removed,
		})
	}
}

type reconcileRequest struct {
	RideID int64 `json:"ride_id,omitempty"`
}

type reconcileResponse struct {
	RecordTime time.Time `json:"record_time"`
	Total      int       `json:"total"`
	Processed  int       `json:"processed"`
	Failed     int       `json:"failed"`
}

type archiveRequest struct {
	Before string `json:"before"`
}

type archiveResponse struct {
	Before  time.Time `json:"before"`
	Removed int       `json:"removed"`
}
