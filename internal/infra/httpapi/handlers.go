package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"bloodbridge_bot/internal/app"
	"bloodbridge_bot/internal/domain/blood"
	idb "bloodbridge_bot/internal/infra/database"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func createRequestHandler(svc *app.MatchingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body CreateRequestRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if body.City == "" {
			writeError(w, http.StatusBadRequest, "missing_city", "city is required")
			return
		}

		req, err := svc.CreateRequest(r.Context(), app.CreateRequestParams{
			PatientName:    body.PatientName,
			BloodGroup:     body.BloodGroup,
			City:           body.City,
			HospitalName:   body.HospitalName,
			RequesterPhone: body.RequesterPhone,
			Latitude:       body.Latitude,
			Longitude:      body.Longitude,
		})
		if err != nil {
			if errors.Is(err, blood.ErrInvalidGroup) {
				writeError(w, http.StatusBadRequest, "invalid_blood_group", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusCreated, RequestResponse{
			ID:         req.ID,
			ShortCode:  req.ShortCode,
			BloodGroup: string(req.BloodGroup),
			City:       req.City,
			Status:     string(req.Status),
			Type:       string(req.Type),
		})
	}
}

func getRequestHandler(svc *app.MatchingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		req, accepted, err := svc.RequestStatus(r.Context(), id)
		if err != nil {
			if errors.Is(err, idb.ErrRequestNotFound) {
				writeError(w, http.StatusNotFound, "request_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, RequestResponse{
			ID:                req.ID,
			ShortCode:         req.ShortCode,
			BloodGroup:        string(req.BloodGroup),
			City:              req.City,
			Status:            string(req.Status),
			Type:              string(req.Type),
			AcceptedResponses: accepted,
		})
	}
}

func escalateRequestHandler(svc *app.MatchingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		if err := svc.EscalateRequest(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, idb.ErrRequestNotFound):
				writeError(w, http.StatusNotFound, "request_not_found", err.Error())
			case errors.Is(err, app.ErrRequestNotActive):
				writeError(w, http.StatusConflict, "request_not_active", err.Error())
			case errors.Is(err, app.ErrNoEligibleDonors):
				writeError(w, http.StatusNotFound, "no_eligible_donors", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func closeRequestHandler(svc *app.MatchingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		if err := svc.CloseRequest(r.Context(), id); err != nil {
			if errors.Is(err, app.ErrRequestNotActive) {
				writeError(w, http.StatusConflict, "request_not_active", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func populateBridgeHandler(svc *app.BridgeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		var body PopulateBridgeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if body.Count < 1 {
			writeError(w, http.StatusBadRequest, "invalid_count", "count must be positive")
			return
		}

		added, err := svc.Populate(r.Context(), id, body.Latitude, body.Longitude, body.Count)
		if err != nil {
			if errors.Is(err, idb.ErrBridgeNotFound) {
				writeError(w, http.StatusNotFound, "bridge_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, PopulateBridgeResponse{MembersAdded: added})
	}
}

func requestTransfusionHandler(svc *app.BridgeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}
		if err := svc.RequestTransfusion(r.Context(), id); err != nil {
			switch {
			case errors.Is(err, idb.ErrBridgeNotFound):
				writeError(w, http.StatusNotFound, "bridge_not_found", err.Error())
			case errors.Is(err, app.ErrDuplicateActiveBridgeRequest):
				writeError(w, http.StatusConflict, "bridge_request_outstanding", err.Error())
			case errors.Is(err, app.ErrNoEligibleMembers):
				writeError(w, http.StatusConflict, "no_eligible_members", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// runJobHandler triggers one scheduled job out of band, for operators.
func runJobHandler(engagement *app.EngagementService, bridges *app.BridgeService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		name := chi.URLParam(r, "name")
		switch name {
		case "eligibility-sweep":
			err = engagement.SweepEligibleDonors(r.Context())
		case "bridge-due":
			err = bridges.TriggerDueBridgeRequests(r.Context())
		case "inactive-nudge":
			err = engagement.NudgeInactiveDonors(r.Context())
		default:
			writeError(w, http.StatusNotFound, "unknown_job", "no job named "+name)
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "job_failed", err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
