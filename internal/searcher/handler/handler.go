package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/reader"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/posindex/pkg/logger"
)

// Lookuper answers the three lookup shapes.
type Lookuper interface {
	Document(ctx context.Context, name string) (reader.DocumentInfo, error)
	Term(ctx context.Context, raw string) (reader.TermInfo, error)
	TermInDocument(ctx context.Context, raw, name string) (reader.TermDocumentInfo, error)
}

type Handler struct {
	lookups Lookuper
	logger  *slog.Logger
}

func New(l Lookuper) *Handler {
	return &Handler{
		lookups: l,
		logger:  slog.Default().With("component", "lookup-handler"),
	}
}

// Register mounts the lookup routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/documents/{name}", h.Document)
	mux.HandleFunc("GET /api/v1/terms/{term}", h.Term)
	mux.HandleFunc("GET /api/v1/terms/{term}/documents/{name}", h.TermInDocument)
}

func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	info, err := h.lookups.Document(r.Context(), r.PathValue("name"))
	h.respond(w, r, info, err)
}

func (h *Handler) Term(w http.ResponseWriter, r *http.Request) {
	info, err := h.lookups.Term(r.Context(), r.PathValue("term"))
	h.respond(w, r, info, err)
}

func (h *Handler) TermInDocument(w http.ResponseWriter, r *http.Request) {
	info, err := h.lookups.TermInDocument(r.Context(), r.PathValue("term"), r.PathValue("name"))
	h.respond(w, r, info, err)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err == nil {
		h.writeJSON(w, http.StatusOK, data)
		return
	}
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("lookup failed", "path", r.URL.Path, "error", err)
	} else {
		log.Debug("lookup miss", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
