package export

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/virodata/poxbase/internal/domain"
)

// Handler serves CSV downloads of filtered unified results.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a GET endpoint.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	params := r.URL.Query()
	model := strings.TrimSpace(params.Get("model"))
	if model == "" {
		http.Error(w, "model parameter is required", http.StatusBadRequest)
		return
	}

	if err := h.service.Validate(model); err != nil {
		if errors.Is(err, domain.ErrUnknownModel) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var columns []string
	if raw := strings.TrimSpace(params.Get("columns")); raw != "" {
		columns = strings.Split(raw, ",")
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", model+"_export.csv"))

	// Headers are committed once streaming starts; a mid-stream failure
	// truncates the download but still gets logged.
	if err := h.service.Stream(r.Context(), w, model, params, columns); err != nil {
		log.Printf("[EXPORT] stream failed for model %s: %v", model, err)
	}
}
