package validation

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "iamkolkata/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

const (
	// MaxParaNameLength bounds para names to keep them printable on a portrait.
	MaxParaNameLength = 50

	// MaxExperienceWords bounds a single experience note.
	MaxExperienceWords = 30
)

var paraNamePattern = regexp.MustCompile(`^[a-zA-Z0-9\s-]+$`)

// ValidatePayload validates a decoded JSON document against a JSON schema.
// Both schema and document are passed as Go values.
func ValidatePayload(schema, document interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
			"payload validation failed", err.Error())
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidPayload,
			"invalid request payload", strings.Join(details, "; "))
	}

	return nil
}

// ValidateParaName checks that a para name is present, within length limits
// and uses only letters, digits, spaces and hyphens.
func ValidateParaName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidParaName,
			"para name is required", "")
	}
	if len(trimmed) > MaxParaNameLength {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidParaName,
			fmt.Sprintf("para name must be at most %d characters", MaxParaNameLength), "")
	}
	if !paraNamePattern.MatchString(trimmed) {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidParaName,
			"para name may only contain letters, numbers, spaces and hyphens", "")
	}
	return nil
}

// ValidateUniqueParaName rejects a para name already used by a nearby entry.
// Comparison is case-insensitive on trimmed names.
func ValidateUniqueParaName(name string, nearbyTitles []string) error {
	candidate := strings.ToLower(strings.TrimSpace(name))
	for _, title := range nearbyTitles {
		if strings.ToLower(strings.TrimSpace(title)) == candidate {
			return apperrors.NewValidationError(apperrors.ErrCodeDuplicateParaName,
				"a nearby para already uses this name", "")
		}
	}
	return nil
}

// ValidateExperiences requires at least one non-empty experience and bounds
// each one to a short note.
func ValidateExperiences(experiences []string) error {
	hasContent := false
	for i, exp := range experiences {
		trimmed := strings.TrimSpace(exp)
		if trimmed == "" {
			continue
		}
		hasContent = true
		if len(strings.Fields(trimmed)) > MaxExperienceWords {
			return apperrors.NewValidationError(apperrors.ErrCodeExperienceTooLong,
				fmt.Sprintf("experience %d exceeds %d words", i+1, MaxExperienceWords), "")
		}
	}
	if !hasContent {
		return apperrors.NewValidationError(apperrors.ErrCodeMissingExperience,
			"at least one experience is required", "")
	}
	return nil
}
