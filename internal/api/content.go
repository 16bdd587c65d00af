package api

import (
	"encoding/json"
	"net/http"
	"time"

	"iamkolkata/internal/models"
)

type descriptionRequest struct {
	ParaName    string   `json:"para_name"`
	Tags        []string `json:"tags"`
	Experiences []string `json:"experiences"`
}

func (s *Server) handleDescription(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if err := decodeAndValidate(r, descriptionSchema, &req); err != nil {
		respondError(w, err)
		return
	}

	description, err := s.content.GenerateDescription(r.Context(), req.ParaName, req.Tags,
		models.JoinExperiences(req.Experiences))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"description": description})
}

type tagsRequest struct {
	Pincode string `json:"pincode"`
}

const tagCacheKeyPrefix = "tags:"

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	var req tagsRequest
	if err := decodeAndValidate(r, tagsSchema, &req); err != nil {
		respondError(w, err)
		return
	}

	ctx := r.Context()
	cacheKey := tagCacheKeyPrefix + req.Pincode

	if s.tagCache != nil {
		if cached, err := s.tagCache.Get(ctx, cacheKey).Bytes(); err == nil {
			var tags []string
			if json.Unmarshal(cached, &tags) == nil {
				respondJSON(w, http.StatusOK, map[string]interface{}{"tags": tags, "cached": true})
				return
			}
		}
	}

	district, err := s.geo.LookupPincode(ctx, req.Pincode)
	if err != nil {
		respondError(w, err)
		return
	}

	tags, err := s.content.SuggestTags(ctx, district.District, district.State)
	if err != nil {
		respondError(w, err)
		return
	}

	if s.tagCache != nil && len(tags) > 0 {
		if payload, err := json.Marshal(tags); err == nil {
			ttl := time.Duration(s.cfg.TagCacheTTLMin) * time.Minute
			if ttl == 0 {
				ttl = 6 * time.Hour
			}
			if err := s.tagCache.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
				s.log.Warn("tag cache write failed", map[string]interface{}{
					"pincode": req.Pincode,
					"error":   err.Error(),
				})
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"tags": tags, "cached": false})
}

type reverseGeocodeRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleReverseGeocode(w http.ResponseWriter, r *http.Request) {
	var req reverseGeocodeRequest
	if err := decodeAndValidate(r, reverseGeocodeSchema, &req); err != nil {
		respondError(w, err)
		return
	}

	loc, err := s.geo.Reverse(r.Context(), req.Latitude, req.Longitude)
	if err != nil {
		// The sentinels still describe the point; reply with them rather
		// than failing the caller's flow.
		respondJSON(w, http.StatusOK, loc)
		return
	}
	respondJSON(w, http.StatusOK, loc)
}
