package models

import "strings"

// ExperienceSlots is the number of experience inputs presented to a user.
const ExperienceSlots = 3

// SelectedTagSlots is the number of tag chips a user can pick.
const SelectedTagSlots = 3

// JoinExperiences collapses the filled experience slots into a single prompt
// fragment, skipping empties.
func JoinExperiences(experiences []string) string {
	filled := make([]string, 0, len(experiences))
	for _, exp := range experiences {
		if trimmed := strings.TrimSpace(exp); trimmed != "" {
			filled = append(filled, trimmed)
		}
	}
	return strings.Join(filled, ". ")
}
