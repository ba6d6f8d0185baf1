// Package api exposes the agent's loopback HTTP surface: extraction,
// validated saves into the encrypted queue, queue inspection and a manual
// sync trigger. It binds to localhost only and is never exposed to the
// network.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/edgemed/edgemed/internal/agent/queue"
	agentsync "github.com/edgemed/edgemed/internal/agent/sync"
	"github.com/edgemed/edgemed/internal/common"
	"github.com/edgemed/edgemed/internal/logging"
	"github.com/edgemed/edgemed/internal/models"
	"github.com/edgemed/edgemed/internal/validate"
)

// Extractor produces structured records from note text and can re-extract
// individual fields during repair.
type Extractor interface {
	Extract(noteText, locale string) *models.ClinicalRecord
	validate.Extractor
}

// Syncer triggers one immediate queue drain.
type Syncer interface {
	SyncBatch(ctx context.Context) (*agentsync.BatchResult, error)
}

// Options configure the local API handler.
type Options struct {
	Mode          models.Mode
	StoreRawNotes bool
	ModelInfo     models.ModelInfo
}

// Handler carries the dependencies of the local HTTP API.
type Handler struct {
	queue     *queue.Manager
	syncer    Syncer
	extractor Extractor
	validate  *validator.Validate
	log       logging.Logger
	opts      Options
}

func NewHandler(q *queue.Manager, syncer Syncer, extractor Extractor, log logging.Logger, opts Options) *Handler {
	return &Handler{
		queue:     q,
		syncer:    syncer,
		extractor: extractor,
		validate:  validator.New(),
		log:       log.With("component", "local-api"),
		opts:      opts,
	}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/local/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/local/extract", h.Extract).Methods(http.MethodPost)
	r.HandleFunc("/local/save", h.Save).Methods(http.MethodPost)
	r.HandleFunc("/local/queue", h.QueueStatus).Methods(http.MethodGet)
	r.HandleFunc("/local/records", h.Records).Methods(http.MethodGet)
	r.HandleFunc("/local/sync/trigger", h.TriggerSync).Methods(http.MethodPost)
	r.HandleFunc("/local/sync/attempts", h.SyncAttempts).Methods(http.MethodGet)
	return r
}

// ExtractRequest is the body of POST /local/extract and /local/save.
type ExtractRequest struct {
	NoteID   string `json:"note_id"`
	NoteText string `json:"note_text" validate:"required,min=10"`
	Locale   string `json:"locale"`
}

// ExtractResponse carries one structured extraction result.
type ExtractResponse struct {
	NoteID    string                `json:"note_id,omitempty"`
	Record    models.ClinicalRecord `json:"record"`
	Flags     models.Flags          `json:"flags"`
	ModelInfo models.ModelInfo      `json:"model_info"`
	TimingMS  int64                 `json:"timing_ms"`
}

// SaveResponse confirms that a note was persisted into the queue.
type SaveResponse struct {
	NoteID         string        `json:"note_id"`
	IdempotencyKey string        `json:"idempotency_key"`
	Status         models.Status `json:"status"`
	Flags          models.Flags  `json:"flags"`
}

// QueueStatusResponse summarizes queue contents without exposing payloads.
type QueueStatusResponse struct {
	Counts map[models.Status]int  `json:"counts"`
	Items  []models.QueueItemMeta `json:"items"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Version: common.SchemaVersion})
}

func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeExtractRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	record, flags := h.process(r.Context(), req)

	writeJSON(w, http.StatusOK, ExtractResponse{
		NoteID:    req.NoteID,
		Record:    *record,
		Flags:     flags,
		ModelInfo: h.opts.ModelInfo,
		TimingMS:  time.Since(start).Milliseconds(),
	})
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeExtractRequest(w, r)
	if !ok {
		return
	}
	if req.NoteID == "" {
		req.NoteID = uuid.NewString()
	}

	record, flags := h.process(r.Context(), req)

	payload := &models.NotePayload{Record: *record, Flags: flags}
	if h.opts.StoreRawNotes {
		payload.RawNoteText = &req.NoteText
	}

	idempotencyKey, err := h.queue.Enqueue(r.Context(), req.NoteID, payload, h.opts.Mode)
	if err != nil {
		h.log.Error(r.Context(), "enqueue failed", "note_id", req.NoteID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save note")
		return
	}

	writeJSON(w, http.StatusCreated, SaveResponse{
		NoteID:         req.NoteID,
		IdempotencyKey: idempotencyKey,
		Status:         models.StatusQueued,
		Flags:          flags,
	})
}

func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queue.StatusCounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read queue")
		return
	}
	items, err := h.queue.AllMetadata(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read queue")
		return
	}
	writeJSON(w, http.StatusOK, QueueStatusResponse{Counts: counts, Items: items})
}

func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	items, err := h.queue.AllDecrypted(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read records")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncer.SyncBatch(r.Context())
	if err != nil {
		h.log.Error(r.Context(), "manual sync failed", "error", err)
		writeError(w, http.StatusBadGateway, "sync failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) SyncAttempts(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.queue.RecentAttempts(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read attempts")
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

// process runs extraction and the validate-and-repair loop for one request.
func (h *Handler) process(ctx context.Context, req *ExtractRequest) (*models.ClinicalRecord, models.Flags) {
	record := h.extractor.Extract(req.NoteText, req.Locale)
	return validate.ValidateAndRepair(ctx, h.log, record, req.NoteText, h.extractor, req.Locale, validate.MaxRepairAttempts)
}

func (h *Handler) decodeExtractRequest(w http.ResponseWriter, r *http.Request) (*ExtractRequest, bool) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, msg string) {
	writeJSON(w, statusCode, map[string]string{"error": msg})
}
