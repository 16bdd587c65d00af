package genai

import (
	"fmt"
	"strings"

	"iamkolkata/internal/models"
)

// descriptionPrompt asks for a short, warm neighbourhood description built
// from the user's chosen tags and experiences.
func descriptionPrompt(paraName string, tags []string, experiences string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a vivid 40-50 word description of a Kolkata neighbourhood called %q. ", paraName)
	if len(tags) > 0 {
		fmt.Fprintf(&b, "It is known for: %s. ", strings.Join(tags, ", "))
	}
	if experiences != "" {
		fmt.Fprintf(&b, "Residents describe it as: %s. ", experiences)
	}
	b.WriteString("Mention its chai spots, addas, festivals or street food where they fit. ")
	b.WriteString("Warm and personal tone. No hashtags, no quotes around the text.")
	return b.String()
}

// scenePrompt asks the image model for a photorealistic neighbourhood scene
// built from the area name, the selected tags and the lived experiences.
func scenePrompt(tags, experiences []string, area string) string {
	if area == "" {
		area = "a para"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A photorealistic street scene of %s, a neighbourhood in Kolkata, India.\n", area)
	if len(tags) > 0 {
		b.WriteString("Key elements to include:\n")
		for _, tag := range tags {
			fmt.Fprintf(&b, "- %s\n", tag)
		}
	}
	if lived := models.JoinExperiences(experiences); lived != "" {
		fmt.Fprintf(&b, "Scene details from local experiences: %s.\n", lived)
	}
	b.WriteString("Golden hour light, warm colors, traditional Bengali architecture, ")
	b.WriteString("tea stalls and street life, yellow taxis and hand-pulled rickshaws in the distance. ")
	b.WriteString("Well composed as a background. No people in the foreground, no text.")
	return b.String()
}

// tagsPrompt asks for a flat comma-separated tag list for a district.
func tagsPrompt(district, state string) string {
	return fmt.Sprintf(
		"List exactly 10 short tags describing neighbourhood life in %s, %s, India. "+
			"Think food, culture, landmarks, festivals. "+
			"Reply with only the tags, comma separated, no hashtags, no numbering.",
		district, state,
	)
}
