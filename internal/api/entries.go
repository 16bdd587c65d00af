package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/validation"
	"iamkolkata/internal/models"
)

type createEntryRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Pincode     string   `json:"pincode"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Tags        []string `json:"tags"`
	Experiences []string `json:"experiences"`
	UserID      string   `json:"user_id"`
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if err := decodeAndValidate(r, createEntrySchema, &req); err != nil {
		respondError(w, err)
		return
	}

	if err := validation.ValidateParaName(req.Title); err != nil {
		respondError(w, err)
		return
	}
	if err := validation.ValidateExperiences(req.Experiences); err != nil {
		respondError(w, err)
		return
	}

	ctx := r.Context()

	titles, err := s.entries.NearbyTitles(ctx, req.Latitude, req.Longitude, s.nearbyRadius(), s.nearbyLimit())
	if err != nil {
		s.log.Warn("duplicate check skipped", map[string]interface{}{"error": err.Error()})
	} else if err := validation.ValidateUniqueParaName(req.Title, titles); err != nil {
		respondError(w, err)
		return
	}

	entry := models.NewEntry{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Pincode:     req.Pincode,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Tags:        entryTags(req.Tags, req.Experiences),
		UserID:      req.UserID,
	}

	saved, err := s.entries.Insert(ctx, entry)
	if err != nil {
		respondError(w, err)
		return
	}

	if s.search != nil {
		s.search.Add(ctx, saved)
	}

	respondJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	lat, err := parseFloat(r, "lat")
	if err != nil {
		respondError(w, err)
		return
	}
	lng, err := parseFloat(r, "lng")
	if err != nil {
		respondError(w, err)
		return
	}

	radius := s.nearbyRadius()
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
				"radius_km must be a positive number", ""))
			return
		}
		radius = parsed
	}

	entries, err := s.entries.Nearby(r.Context(), lat, lng, radius, s.nearbyLimit())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		respondError(w, apperrors.NewUpstreamError(apperrors.ErrCodeSearchFailed, "elasticsearch", 0,
			"search is not configured"))
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
			"query parameter q is required", ""))
		return
	}

	results, err := s.search.Search(r.Context(), query, s.nearbyLimit())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": results})
}

// entryTags keeps the user's selected tags, or labels the filled experiences
// when nothing was selected so an entry is never saved tagless.
func entryTags(tags, experiences []string) []string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) > 0 {
		return cleaned
	}

	for i, exp := range experiences {
		if strings.TrimSpace(exp) != "" {
			cleaned = append(cleaned, fmt.Sprintf("Experience %d", i+1))
		}
	}
	return cleaned
}

func (s *Server) nearbyRadius() float64 {
	if s.cfg.NearbyRadiusKm > 0 {
		return s.cfg.NearbyRadiusKm
	}
	return 4
}

func (s *Server) nearbyLimit() int {
	if s.cfg.NearbyLimit > 0 {
		return s.cfg.NearbyLimit
	}
	return 20
}

func parseFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
			fmt.Sprintf("query parameter %s is required", name), "")
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
			fmt.Sprintf("query parameter %s must be a number", name), "")
	}
	return value, nil
}

// decodeAndValidate decodes the JSON body into both a schema document and the
// typed request.
func decodeAndValidate(r *http.Request, schema map[string]interface{}, out interface{}) error {
	var document map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&document); err != nil {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload, "request body must be valid JSON", err.Error())
	}
	if err := validation.ValidatePayload(schema, document); err != nil {
		return err
	}

	raw, err := json.Marshal(document)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload, "malformed request payload", err.Error())
	}
	return nil
}
