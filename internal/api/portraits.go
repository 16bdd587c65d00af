package api

import (
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "iamkolkata/internal/common/errors"
	"iamkolkata/internal/portrait"
)

const maxPhotoBytes = 15 << 20

func (s *Server) handleCreatePortrait(w http.ResponseWriter, r *http.Request) {
	if s.portraits == nil {
		respondError(w, apperrors.NewUpstreamError(apperrors.ErrCodeRenderFailed, "portraits", 0,
			"portrait generation is not configured"))
		return
	}

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
			"request must be multipart form data", err.Error()))
		return
	}

	paraName := strings.TrimSpace(r.FormValue("para_name"))
	if paraName == "" {
		respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidParaName,
			"para_name is required", ""))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		respondError(w, apperrors.NewStateError(apperrors.ErrCodeMissingPhotoUpload,
			"a photo file is required"))
		return
	}
	defer file.Close()

	photo, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		respondError(w, apperrors.NewInternalError(err))
		return
	}
	if len(photo) > maxPhotoBytes {
		respondError(w, apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
			"photo exceeds the upload size limit", ""))
		return
	}

	start := time.Now()
	result, err := s.portraits.Generate(r.Context(), portrait.Request{
		ParaName:      paraName,
		Description:   r.FormValue("description"),
		Pincode:       r.FormValue("pincode"),
		Area:          strings.TrimSpace(r.FormValue("area")),
		Tags:          formValues(r, "tags"),
		Experiences:   formValues(r, "experiences"),
		Photo:         photo,
		PhotoFilename: header.Filename,
	})
	s.obs.RecordStageDuration(r.Context(), "portrait", time.Since(start))
	if err != nil {
		s.obs.RecordPortrait(r.Context(), "none", "error")
		respondError(w, err)
		return
	}
	s.obs.RecordPortrait(r.Context(), result.Strategy, "ok")

	respondJSON(w, http.StatusCreated, map[string]string{
		"job_id":   result.JobID,
		"url":      result.URL,
		"strategy": result.Strategy,
	})
}

// formValues collects the non-blank repeated values of one multipart field.
func formValues(r *http.Request, name string) []string {
	if r.MultipartForm == nil {
		return nil
	}
	values := make([]string, 0, len(r.MultipartForm.Value[name]))
	for _, value := range r.MultipartForm.Value[name] {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func (s *Server) handleGetPortrait(w http.ResponseWriter, r *http.Request) {
	if s.portraits == nil {
		respondError(w, apperrors.NewStateError(apperrors.ErrCodeJobNotFound, "portrait generation is not configured"))
		return
	}

	job, err := s.portraits.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}
