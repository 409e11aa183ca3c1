package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type RevisionHandler struct {
	svc *service.RevisionService
}

func NewRevisionHandler(svc *service.RevisionService) *RevisionHandler {
	return &RevisionHandler{svc: svc}
}

func writeRevisionError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrStatementEmpty),
		errors.Is(err, service.ErrSpaceIDEmpty),
		errors.Is(err, service.ErrConfidenceRange),
		errors.Is(err, service.ErrInvalidFactType),
		errors.Is(err, service.ErrSelfSupersession),
		errors.Is(err, service.ErrDecisionTarget):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFactNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadySuperseded),
		errors.Is(err, service.ErrAlreadyLinked),
		errors.Is(err, service.ErrCycleDetected):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, service.ErrResolverTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, service.ErrResolver):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// CheckConflicts reports how a candidate collides with the corpus without
// writing anything.
func (h *RevisionHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	var req createFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	report, err := h.svc.CheckConflicts(r.Context(), req.toFact(chi.URLParam(r, "space")))
	if err != nil {
		writeRevisionError(w, err, "failed to check conflicts")
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Revise runs the full belief-revision pipeline for one candidate fact.
func (h *RevisionHandler) Revise(w http.ResponseWriter, r *http.Request) {
	var req createFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.svc.Revise(r.Context(), req.toFact(chi.URLParam(r, "space")))
	if err != nil {
		writeRevisionError(w, err, "failed to revise")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type supersedeRequest struct {
	OldFactID string `json:"old_fact_id"`
	NewFactID string `json:"new_fact_id"`
	Reason    string `json:"reason,omitempty"`
}

// Supersede manually replaces one fact with another.
func (h *RevisionHandler) Supersede(w http.ResponseWriter, r *http.Request) {
	var req supersedeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	oldID, err := uuid.Parse(req.OldFactID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid old_fact_id")
		return
	}
	newID, err := uuid.Parse(req.NewFactID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid new_fact_id")
		return
	}

	if err := h.svc.Supersede(r.Context(), chi.URLParam(r, "space"), oldID, newID, req.Reason); err != nil {
		writeRevisionError(w, err, "failed to supersede fact")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type historyResponse struct {
	Events []domain.RevisionEvent `json:"events"`
	Count  int                    `json:"count"`
}

// History returns the revision events recorded for a fact, oldest first.
func (h *RevisionHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fact id")
		return
	}

	events, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeRevisionError(w, err, "failed to get history")
		return
	}
	if events == nil {
		events = []domain.RevisionEvent{}
	}

	writeJSON(w, http.StatusOK, historyResponse{Events: events, Count: len(events)})
}

type chainResponse struct {
	Chain []domain.Fact `json:"chain"`
	Count int           `json:"count"`
}

// Chain returns the full supersession chain a fact belongs to.
func (h *RevisionHandler) Chain(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fact id")
		return
	}

	chain, err := h.svc.GetSupersessionChain(r.Context(), chi.URLParam(r, "space"), id)
	if err != nil {
		writeRevisionError(w, err, "failed to get chain")
		return
	}

	writeJSON(w, http.StatusOK, chainResponse{Chain: chain, Count: len(chain)})
}

type ingestRequest struct {
	Content    string              `json:"content"`
	Candidates []createFactRequest `json:"candidates"`
}

type ingestResponse struct {
	Results []service.IngestResult `json:"results"`
	Count   int                    `json:"count"`
}

// candidateExtractor adapts pre-extracted candidates from the request body
// to the extraction callback seam.
type candidateExtractor []createFactRequest

func (c candidateExtractor) Extract(ctx context.Context, memorySpaceID string, content string) ([]domain.Fact, error) {
	facts := make([]domain.Fact, 0, len(c))
	for _, req := range c {
		facts = append(facts, *req.toFact(memorySpaceID))
	}
	return facts, nil
}

// Ingest feeds externally extracted candidates through the revision
// pipeline. Extraction itself happens outside this service; the request
// carries its output.
func (h *RevisionHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Candidates) == 0 {
		writeError(w, http.StatusBadRequest, "candidates are required")
		return
	}

	results, err := h.svc.IngestExtracted(r.Context(), candidateExtractor(req.Candidates), chi.URLParam(r, "space"), req.Content)
	if err != nil {
		writeRevisionError(w, err, "failed to ingest candidates")
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{Results: results, Count: len(results)})
}
