// Package records serves the auxiliary read endpoints over the record store:
// per-model counts and host occurrence points as GeoJSON.
package records

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/virodata/poxbase/internal/repository"
)

// StatsHandler reports per-model record counts.
type StatsHandler struct {
	records repository.RecordRepository
}

func NewStatsHandler(records repository.RecordRepository) http.Handler {
	return &StatsHandler{records: records}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	counts, err := h.records.CountByModel(r.Context())
	if err != nil {
		log.Printf("[STATS] count failed: %v", err)
		http.Error(w, "failed to load record counts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"counts": counts})
}

// GeoJSONHandler renders hosts with coordinates as a FeatureCollection.
type GeoJSONHandler struct {
	records repository.RecordRepository
}

func NewGeoJSONHandler(records repository.RecordRepository) http.Handler {
	return &GeoJSONHandler{records: records}
}

type geoFeature struct {
	Type       string         `json:"type"`
	Geometry   geoPoint       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type featureCollection struct {
	Type     string       `json:"type"`
	Features []geoFeature `json:"features"`
}

func (h *GeoJSONHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	points, err := h.records.HostPoints(r.Context())
	if err != nil {
		log.Printf("[GEOJSON] host points failed: %v", err)
		http.Error(w, "failed to load host points", http.StatusInternalServerError)
		return
	}

	collection := featureCollection{
		Type:     "FeatureCollection",
		Features: make([]geoFeature, 0, len(points)),
	}
	for _, p := range points {
		collection.Features = append(collection.Features, geoFeature{
			Type: "Feature",
			// GeoJSON positions are longitude first.
			Geometry: geoPoint{Type: "Point", Coordinates: [2]float64{p.Longitude, p.Latitude}},
			Properties: map[string]any{
				"id":               p.ID,
				"scientific_name":  derefOrNil(p.ScientificName),
				"country":          derefOrNil(p.Country),
				"individual_count": p.IndividualCount,
				"event_date":       derefOrNil(p.EventDate),
			},
		})
	}
	writeJSON(w, http.StatusOK, collection)
}

func derefOrNil(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
