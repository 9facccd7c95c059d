package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/akimixu/mksearch/internal/history"
	"github.com/akimixu/mksearch/internal/searchservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *searchservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *searchservice.Service) *Handler {
	return &Handler{svc: svc}
}

// Search handles POST /api/search. The run proceeds in the background and
// streams its events on /api/events.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "search", invalid(err))
		return
	}
	ticket, err := h.svc.Search(searchservice.Request(req))
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusAccepted, SearchAccepted(ticket))
}

// StopSearch handles POST /api/search/stop.
func (h *Handler) StopSearch(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, StopResponse{Stopped: h.svc.Stop()})
}

// SearchState handles GET /api/search/state.
func (h *Handler) SearchState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.State())
}

// OpenFile handles POST /api/open.
func (h *Handler) OpenFile(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, "open", invalid(err))
		return
	}
	loc, err := h.svc.Open(searchservice.OpenRequest(req))
	if err != nil {
		writeError(w, "open", err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

// ListHistory handles GET /api/history.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.svc.History(limit)
	if err != nil {
		writeError(w, "history", err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Searches: entries})
}

// ClearHistory handles DELETE /api/history.
func (h *Handler) ClearHistory(w http.ResponseWriter, _ *http.Request) {
	if err := h.svc.ClearHistory(); err != nil {
		writeError(w, "clear history", err)
		return
	}
	slog.Info("history cleared")
	w.WriteHeader(http.StatusNoContent)
}
