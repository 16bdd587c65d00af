package api

import (
	"encoding/json"
	"net/http"

	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/common/validation"
	"iamkolkata/internal/models"
	"iamkolkata/internal/session"
)

// Session endpoints mirror the entry composition form: location, tag
// selection, experiences and the description live server-side so a user can
// resume mid-flow.

type sessionLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (s *Server) handleSessionLocation(w http.ResponseWriter, r *http.Request) {
	var req sessionLocationRequest
	if err := decodeAndValidate(r, reverseGeocodeSchema, &req); err != nil {
		respondError(w, err)
		return
	}

	loc, err := s.geo.Reverse(r.Context(), req.Latitude, req.Longitude)
	if err != nil {
		// Sentinels still describe the point; the form can proceed.
		s.log.Warn("session location resolved with sentinels", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.sessions.SetLocation(r.PathValue("id"), loc)
	respondJSON(w, http.StatusOK, loc)
}

type sessionUpdateRequest struct {
	Tag         string  `json:"tag,omitempty"`
	Slot        *int    `json:"slot,omitempty"`
	Text        *string `json:"text,omitempty"`
	ParaName    *string `json:"para_name,omitempty"`
	Description *string `json:"description,omitempty"`
	AIMode      *bool   `json:"ai_mode,omitempty"`
}

func (s *Server) handleSessionUpdate(w http.ResponseWriter, r *http.Request) {
	var req sessionUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
			"request body must be valid JSON", err.Error()))
		return
	}

	id := r.PathValue("id")

	switch r.PathValue("field") {
	case "tags":
		if req.Tag == "" {
			respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload, "tag is required", ""))
			return
		}
		if r.Method == http.MethodDelete {
			s.sessions.RemoveSelectedTag(id, req.Tag)
		} else {
			s.sessions.AddSelectedTag(id, req.Tag)
		}
	case "experience":
		if req.Slot == nil || req.Text == nil {
			respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
				"slot and text are required", ""))
			return
		}
		s.sessions.SetExperience(id, *req.Slot, *req.Text)
	case "para-name":
		if req.ParaName == nil {
			respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
				"para_name is required", ""))
			return
		}
		if err := validation.ValidateParaName(*req.ParaName); err != nil {
			respondError(w, err)
			return
		}
		s.sessions.SetParaName(id, *req.ParaName)
	case "description":
		if req.AIMode != nil {
			s.sessions.SetAIMode(id, *req.AIMode)
		}
		if req.Description != nil {
			s.sessions.SetManualDescription(id, *req.Description)
		}
	default:
		respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
			"unknown session field", ""))
		return
	}

	respondJSON(w, http.StatusOK, snapshotView(s.sessions.Snapshot(id)))
}

// handleSessionGenerate runs description generation guarded by a token so a
// result landing after the form was cleared or regenerated is dropped.
func (s *Server) handleSessionGenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	state := s.sessions.Snapshot(id)

	if state.ParaName == "" {
		respondError(w, apperrors.NewStateError(apperrors.ErrCodeInvalidParaName,
			"set a para name before generating a description"))
		return
	}

	token := s.sessions.BeginGeneration(id)

	tags := make([]string, 0, len(state.SelectedTags))
	for _, tag := range state.SelectedTags {
		if tag != "" {
			tags = append(tags, tag)
		}
	}

	description, err := s.content.GenerateDescription(r.Context(), state.ParaName, tags,
		models.JoinExperiences(state.Experiences[:]))
	if err != nil {
		respondError(w, err)
		return
	}

	if !s.sessions.CommitGeneration(id, token, description) {
		respondError(w, apperrors.NewStateError(apperrors.ErrCodeInvalidPayload,
			"the form changed while generating; result discarded"))
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"description": description})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, snapshotView(s.sessions.Snapshot(r.PathValue("id"))))
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	s.sessions.ClearForm(r.PathValue("id"))
	respondJSON(w, http.StatusOK, snapshotView(s.sessions.Snapshot(r.PathValue("id"))))
}

type sessionView struct {
	Location          models.Location `json:"location"`
	Tags              []string        `json:"tags"`
	SelectedTags      []string        `json:"selected_tags"`
	Experiences       []string        `json:"experiences"`
	ParaName          string          `json:"para_name"`
	Description       string          `json:"description"`
	ManualDescription string          `json:"manual_description"`
	AIMode            bool            `json:"ai_mode"`
}

func snapshotView(state session.FormState) sessionView {
	return sessionView{
		Location:          state.Location,
		Tags:              state.Tags,
		SelectedTags:      state.SelectedTags[:],
		Experiences:       state.Experiences[:],
		ParaName:          state.ParaName,
		Description:       state.Description,
		ManualDescription: state.ManualDescription,
		AIMode:            state.AIMode,
	}
}
