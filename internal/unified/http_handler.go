package unified

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/virodata/poxbase/internal/domain"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Lister executes the typed queries the engine builds.
type Lister interface {
	List(ctx context.Context, plan *SelectPlan, query domain.RecordQuery, limit, offset int) ([][]any, int, error)
}

// Handler serves the unified record API: record listing plus the model,
// filter and column discovery endpoints.
type Handler struct {
	engine *Engine
	lister Lister
}

// NewHTTPHandler wires the engine and its query executor into an HTTP handler.
func NewHTTPHandler(engine *Engine, lister Lister) http.Handler {
	return &Handler{engine: engine, lister: lister}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case strings.HasSuffix(path, "/models"):
		h.handleModels(w, r)
	case strings.HasSuffix(path, "/filters"):
		h.handleFilters(w, r)
	case strings.HasSuffix(path, "/columns"):
		h.handleColumns(w, r)
	default:
		h.handleList(w, r)
	}
}

type modelInfo struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

func (h *Handler) handleModels(w http.ResponseWriter, _ *http.Request) {
	models := h.engine.Registry().Models()
	out := make([]modelInfo, len(models))
	for i, m := range models {
		out[i] = modelInfo{Value: m.Name, Label: m.Label}
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": out})
}

func (h *Handler) handleFilters(w http.ResponseWriter, r *http.Request) {
	model, ok := h.requireModel(w, r)
	if !ok {
		return
	}
	filters, err := h.engine.Filters(model)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"model": model, "filters": filters})
}

type columnInfo struct {
	Path  string           `json:"path"`
	Label string           `json:"label"`
	Kind  domain.FieldKind `json:"kind"`
}

func (h *Handler) handleColumns(w http.ResponseWriter, r *http.Request) {
	model, ok := h.requireModel(w, r)
	if !ok {
		return
	}
	columns, err := h.engine.Columns(model)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]columnInfo, len(columns))
	for i, col := range columns {
		out[i] = columnInfo{Path: col.Path, Label: col.Label, Kind: col.Kind}
	}
	writeJSON(w, http.StatusOK, map[string]any{"model": model, "columns": out})
}

type listResponse struct {
	Count    int              `json:"count"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Results  []map[string]any `json:"results"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	model, ok := h.requireModel(w, r)
	if !ok {
		return
	}
	params := r.URL.Query()

	plan, err := h.engine.Plan(model)
	if err != nil {
		h.writeError(w, err)
		return
	}

	query, dropped, err := h.engine.BuildQuery(model, params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	for _, d := range dropped {
		log.Printf("[UNIFIED] dropped filter %s=%q for model %s: %s", d.Key, d.Value, model, d.Reason)
	}

	page, pageSize, err := parsePagination(params)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, total, err := h.lister.List(r.Context(), plan, query, pageSize, (page-1)*pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}

	results := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		record, err := plan.Render(row)
		if err != nil {
			h.writeError(w, &domain.QueryExecutionError{Err: err})
			return
		}
		results = append(results, record)
	}

	writeJSON(w, http.StatusOK, listResponse{
		Count:    total,
		Page:     page,
		PageSize: pageSize,
		Results:  results,
	})
}

func (h *Handler) requireModel(w http.ResponseWriter, r *http.Request) (string, bool) {
	model := strings.TrimSpace(r.URL.Query().Get(paramModel))
	if model == "" {
		http.Error(w, "model parameter is required", http.StatusBadRequest)
		return "", false
	}
	if _, err := h.engine.Registry().Resolve(model); err != nil {
		h.writeError(w, err)
		return "", false
	}
	return model, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrUnknownModel) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var qErr *domain.QueryExecutionError
	if errors.As(err, &qErr) {
		log.Printf("[UNIFIED] query failed: %v", err)
		http.Error(w, "query execution failed", http.StatusInternalServerError)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func parsePagination(params map[string][]string) (page, pageSize int, err error) {
	page = 1
	pageSize = defaultPageSize
	if raw := first(params, paramPage); raw != "" {
		parsed, convErr := strconv.Atoi(raw)
		if convErr != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
		page = parsed
	}
	if raw := first(params, paramPageSize); raw != "" {
		parsed, convErr := strconv.Atoi(raw)
		if convErr != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("page_size must be a positive integer")
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		pageSize = parsed
	}
	return page, pageSize, nil
}

func first(params map[string][]string, key string) string {
	values := params[key]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
