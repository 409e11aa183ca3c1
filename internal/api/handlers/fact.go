package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type FactHandler struct {
	svc *service.FactService
}

func NewFactHandler(svc *service.FactService) *FactHandler {
	return &FactHandler{svc: svc}
}

type createFactRequest struct {
	Statement  string   `json:"statement"`
	Type       string   `json:"type,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Predicate  string   `json:"predicate,omitempty"`
	Object     string   `json:"object,omitempty"`
	Confidence int      `json:"confidence"`
	SourceType string   `json:"source_type,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

func (req *createFactRequest) toFact(memorySpaceID string) *domain.Fact {
	return &domain.Fact{
		MemorySpaceID: memorySpaceID,
		Statement:     req.Statement,
		Type:          domain.FactType(req.Type),
		Subject:       req.Subject,
		Predicate:     req.Predicate,
		Object:        req.Object,
		Confidence:    req.Confidence,
		SourceType:    req.SourceType,
		Tags:          req.Tags,
	}
}

func writeFactError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrStatementEmpty),
		errors.Is(err, service.ErrSpaceIDEmpty),
		errors.Is(err, service.ErrConfidenceRange),
		errors.Is(err, service.ErrInvalidFactType),
		errors.Is(err, service.ErrEmptyPatch):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrFactNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *FactHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f := req.toFact(chi.URLParam(r, "space"))
	if err := h.svc.Store(r.Context(), f); err != nil {
		writeFactError(w, err, "failed to store fact")
		return
	}

	writeJSON(w, http.StatusCreated, f)
}

func (h *FactHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fact id")
		return
	}

	f, err := h.svc.Get(r.Context(), chi.URLParam(r, "space"), id)
	if err != nil {
		writeFactError(w, err, "failed to get fact")
		return
	}

	writeJSON(w, http.StatusOK, f)
}

type updateFactRequest struct {
	Statement  *string   `json:"statement,omitempty"`
	Type       *string   `json:"type,omitempty"`
	Object     *string   `json:"object,omitempty"`
	Confidence *int      `json:"confidence,omitempty"`
	SourceType *string   `json:"source_type,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
}

func (h *FactHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid fact id")
		return
	}

	var req updateFactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := domain.FactPatch{
		Statement:  req.Statement,
		Object:     req.Object,
		Confidence: req.Confidence,
		SourceType: req.SourceType,
		Tags:       req.Tags,
	}
	if req.Type != nil {
		t := domain.FactType(*req.Type)
		patch.Type = &t
	}

	f, err := h.svc.Update(r.Context(), chi.URLParam(r, "space"), id, patch)
	if err != nil {
		writeFactError(w, err, "failed to update fact")
		return
	}

	writeJSON(w, http.StatusOK, f)
}

func parseFilter(r *http.Request) (domain.FactFilter, error) {
	var filter domain.FactFilter
	q := r.URL.Query()

	if typeStr := q.Get("type"); typeStr != "" {
		if !domain.ValidFactType(typeStr) {
			return filter, service.ErrInvalidFactType
		}
		t := domain.FactType(typeStr)
		filter.Type = &t
	}
	filter.Subject = q.Get("subject")
	if tags := q.Get("tags"); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			if t := strings.TrimSpace(tag); t != "" {
				filter.Tags = append(filter.Tags, t)
			}
		}
	}
	if mc := q.Get("min_confidence"); mc != "" {
		v, err := strconv.Atoi(mc)
		if err != nil {
			return filter, service.ErrConfidenceRange
		}
		filter.MinConfidence = v
	}
	if v, err := strconv.ParseBool(q.Get("include_superseded")); err == nil {
		filter.IncludeSuperseded = v
	}
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}
	return filter, nil
}

type listFactsResponse struct {
	Facts []domain.Fact `json:"facts"`
	Count int           `json:"count"`
}

func (h *FactHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	space := chi.URLParam(r, "space")
	facts, err := h.svc.List(r.Context(), space, filter)
	if err != nil {
		writeFactError(w, err, "failed to list facts")
		return
	}
	if facts == nil {
		facts = []domain.Fact{}
	}

	writeJSON(w, http.StatusOK, listFactsResponse{Facts: facts, Count: len(facts)})
}

type countFactsResponse struct {
	Count int `json:"count"`
}

func (h *FactHandler) Count(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.svc.Count(r.Context(), chi.URLParam(r, "space"), filter)
	if err != nil {
		writeFactError(w, err, "failed to count facts")
		return
	}

	writeJSON(w, http.StatusOK, countFactsResponse{Count: n})
}

type searchFactsResponse struct {
	Facts []domain.Fact `json:"facts"`
	Query string        `json:"query"`
	Count int           `json:"count"`
}

func (h *FactHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter is required")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	facts, err := h.svc.Search(r.Context(), chi.URLParam(r, "space"), query, filter)
	if err != nil {
		writeFactError(w, err, "failed to search facts")
		return
	}
	if facts == nil {
		facts = []domain.Fact{}
	}

	writeJSON(w, http.StatusOK, searchFactsResponse{Facts: facts, Query: query, Count: len(facts)})
}

func (h *FactHandler) BySubject(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	facts, err := h.svc.QueryBySubject(r.Context(), chi.URLParam(r, "space"), subject)
	if err != nil {
		writeFactError(w, err, "failed to query facts")
		return
	}
	if facts == nil {
		facts = []domain.Fact{}
	}

	writeJSON(w, http.StatusOK, listFactsResponse{Facts: facts, Count: len(facts)})
}

func (h *FactHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.svc.Export(r.Context(), chi.URLParam(r, "space"), filter)
	if err != nil {
		writeFactError(w, err, "failed to export facts")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type invalidateSpaceResponse struct {
	Invalidated int64 `json:"invalidated"`
}

func (h *FactHandler) InvalidateSpace(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.InvalidateSpace(r.Context(), chi.URLParam(r, "space"))
	if err != nil {
		writeFactError(w, err, "failed to invalidate space")
		return
	}

	writeJSON(w, http.StatusOK, invalidateSpaceResponse{Invalidated: n})
}
