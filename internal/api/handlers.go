/**
 * @description
 * HTTP handlers for the ops API: manual redemption triggers, stop signals,
 * and the gift-code list. Redemption runs are long; trigger endpoints start
 * the run in the background and answer 202.
 */

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/app"
	"github.com/storage3mohitraj444362-commits/wos-redemption-service/internal/store"
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// Handlers carries the dependencies for the ops endpoints.
type Handlers struct {
	Orchestrator *app.Orchestrator
	Trigger      *app.Trigger
	Codes        store.CodeRepository
	Roster       store.RosterRepository
	Stops        *app.StopRegistry
	Logger       *slog.Logger
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type triggerRedemptionRequest struct {
	Code       string `json:"code"`
	AllianceID *int64 `json:"alliance_id,omitempty"`
}

// TriggerRedemptionHandler starts an orchestration run for one alliance or,
// when alliance_id is omitted, for every enabled alliance. Duplicate
// triggers for a pair already in flight are tolerated as no-ops.
func (h *Handlers) TriggerRedemptionHandler(w http.ResponseWriter, r *http.Request) {
	var req triggerRedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if !codePattern.MatchString(req.Code) {
		writeError(w, http.StatusBadRequest, "code must be alphanumeric")
		return
	}

	if req.AllianceID != nil {
		allianceID := *req.AllianceID
		go func() {
			if err := h.Orchestrator.Run(context.Background(), allianceID, req.Code, true); err != nil {
				h.Logger.Error("manual redemption run failed",
					"alliance_id", allianceID, "code", req.Code, "error", err)
			}
		}()
		writeJSON(w, http.StatusAccepted, map[string]any{"code": req.Code, "alliance_id": allianceID})
		return
	}

	go h.Trigger.Dispatch(context.Background(), req.Code)
	writeJSON(w, http.StatusAccepted, map[string]any{"code": req.Code})
}

type stopRedemptionRequest struct {
	AllianceID int64 `json:"alliance_id"`
}

// StopRedemptionHandler sets the stop signal for an alliance. In-flight
// driver runs finish their current attempt; no new members are started.
func (h *Handlers) StopRedemptionHandler(w http.ResponseWriter, r *http.Request) {
	var req stopRedemptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.Stops.Stop(req.AllianceID)
	h.Logger.Info("stop signal set", "alliance_id", req.AllianceID)
	writeJSON(w, http.StatusOK, map[string]any{"alliance_id": req.AllianceID, "stopped": true})
}

// ListCodesHandler returns every known gift code.
func (h *Handlers) ListCodesHandler(w http.ResponseWriter, r *http.Request) {
	codes, err := h.Codes.ListCodes(r.Context())
	if err != nil {
		h.Logger.Error("failed to list codes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list codes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"codes": codes})
}

type submitCodeRequest struct {
	Code string `json:"code"`
}

// SubmitCodeHandler accepts an operator-submitted code, validates it against
// the discovery feed, and dispatches it across enabled alliances.
func (h *Handlers) SubmitCodeHandler(w http.ResponseWriter, r *http.Request) {
	var req submitCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if !codePattern.MatchString(req.Code) {
		writeError(w, http.StatusBadRequest, "code must be alphanumeric")
		return
	}

	go func() {
		if err := h.Trigger.SubmitCode(context.Background(), req.Code); err != nil {
			h.Logger.Error("submitted code dispatch failed", "code", req.Code, "error", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"code": req.Code})
}
