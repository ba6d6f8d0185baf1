// Package httpapi exposes the sync server's HTTP surface: the batch sync
// endpoint behind bearer auth and an unauthenticated health probe.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/edgemed/edgemed/internal/common"
	"github.com/edgemed/edgemed/internal/logging"
	"github.com/edgemed/edgemed/internal/models"
	"github.com/edgemed/edgemed/internal/server/auth"
)

// SyncProcessor applies one batch and reports per-item outcomes.
type SyncProcessor interface {
	ProcessBatch(ctx context.Context, req *models.SyncRequest) *models.SyncResponse
}

type contextKey string

const deviceIDKey contextKey = "device_id"

// Handler carries the dependencies of the HTTP surface.
type Handler struct {
	service  SyncProcessor
	secret   []byte
	validate *validator.Validate
	log      logging.Logger
}

func NewHandler(service SyncProcessor, secret []byte, log logging.Logger) *Handler {
	return &Handler{
		service:  service,
		secret:   secret,
		validate: validator.New(),
		log:      log.With("component", "http-api"),
	}
}

// Router builds the route table. Only the health probe skips auth.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/health", h.Health).Methods(http.MethodGet)
	r.Handle("/v1/sync", h.authenticate(http.HandlerFunc(h.Sync))).Methods(http.MethodPost)
	return r
}

// authenticate verifies the bearer token and stashes the device identity in
// the request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthHeaderName)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		deviceID, err := auth.GetDeviceIDFromToken(token, h.secret)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), deviceIDKey, deviceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Version: common.SchemaVersion})
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req models.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tokenDevice, _ := r.Context().Value(deviceIDKey).(string)
	if tokenDevice != req.DeviceID {
		writeError(w, http.StatusForbidden, "device id does not match token")
		return
	}

	resp := h.service.ProcessBatch(r.Context(), &req)

	h.log.Info(r.Context(), "batch processed",
		"device_id", req.DeviceID, "synced", len(resp.Synced), "failed", len(resp.Failed), "timing_ms", resp.TimingMS)

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, msg string) {
	writeJSON(w, statusCode, map[string]string{"error": msg})
}
