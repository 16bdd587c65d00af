package session

import (
	"testing"

	"iamkolkata/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sid = "session-1"

func TestSetLocationResetsLocationBoundState(t *testing.T) {
	s := NewStore()
	s.SetTags(sid, []string{"chai", "adda"})
	s.AddSelectedTag(sid, "chai")
	s.SetExperience(sid, 0, "Morning walks")

	s.SetLocation(sid, models.Location{Latitude: 22.51, Longitude: 88.35, Area: "Lake Market", Pincode: "700029"})

	st := s.Snapshot(sid)
	assert.Equal(t, "Lake Market", st.Location.Area)
	assert.Empty(t, st.Tags)
	assert.Equal(t, [models.SelectedTagSlots]string{}, st.SelectedTags)
	assert.Equal(t, [models.ExperienceSlots]string{}, st.Experiences)
}

func TestAddSelectedTagFillsFirstEmptySlot(t *testing.T) {
	s := NewStore()

	assert.True(t, s.AddSelectedTag(sid, "chai"))
	assert.True(t, s.AddSelectedTag(sid, "adda"))
	s.RemoveSelectedTag(sid, "chai")
	assert.True(t, s.AddSelectedTag(sid, "puja"))

	st := s.Snapshot(sid)
	assert.Equal(t, [models.SelectedTagSlots]string{"puja", "adda", ""}, st.SelectedTags)
}

func TestAddSelectedTagCapAndDuplicates(t *testing.T) {
	s := NewStore()
	assert.True(t, s.AddSelectedTag(sid, "a"))
	assert.False(t, s.AddSelectedTag(sid, "a"), "duplicate must be ignored")
	assert.True(t, s.AddSelectedTag(sid, "b"))
	assert.True(t, s.AddSelectedTag(sid, "c"))
	assert.False(t, s.AddSelectedTag(sid, "d"), "all slots full")

	st := s.Snapshot(sid)
	assert.Equal(t, [models.SelectedTagSlots]string{"a", "b", "c"}, st.SelectedTags)
}

func TestGeneratedContentSyncsManualInAIMode(t *testing.T) {
	s := NewStore()

	s.SetGeneratedContent(sid, "Generated text")
	st := s.Snapshot(sid)
	assert.Equal(t, "Generated text", st.Description)
	assert.Equal(t, "Generated text", st.ManualDescription)

	s.SetAIMode(sid, false)
	s.SetManualDescription(sid, "My own words")
	s.SetGeneratedContent(sid, "Newer generated text")

	st = s.Snapshot(sid)
	assert.Equal(t, "Newer generated text", st.Description)
	assert.Equal(t, "My own words", st.ManualDescription, "manual mode must not be overwritten")
}

func TestClearFormPreservesLocationAndTags(t *testing.T) {
	s := NewStore()
	s.SetLocation(sid, models.Location{Latitude: 22.51, Longitude: 88.35, Area: "Lake Market"})
	s.SetTags(sid, []string{"chai", "adda"})
	s.AddSelectedTag(sid, "chai")
	s.SetParaName(sid, "Lake Market Para")
	s.SetManualDescription(sid, "Some text")

	s.ClearForm(sid)

	st := s.Snapshot(sid)
	assert.Equal(t, "Lake Market", st.Location.Area)
	assert.Equal(t, []string{"chai", "adda"}, st.Tags)
	assert.Equal(t, [models.SelectedTagSlots]string{}, st.SelectedTags)
	assert.Empty(t, st.ParaName)
	assert.Empty(t, st.ManualDescription)
	assert.True(t, st.AIMode)
}

func TestCommitGenerationTokenGuard(t *testing.T) {
	s := NewStore()

	token := s.BeginGeneration(sid)
	assert.True(t, s.CommitGeneration(sid, token, "First result"))
	assert.Equal(t, "First result", s.Snapshot(sid).Description)

	// A consumed token cannot commit again.
	assert.False(t, s.CommitGeneration(sid, token, "Replay"))

	// A newer generation invalidates the older token.
	old := s.BeginGeneration(sid)
	current := s.BeginGeneration(sid)
	assert.False(t, s.CommitGeneration(sid, old, "Stale result"))
	assert.True(t, s.CommitGeneration(sid, current, "Fresh result"))
	assert.Equal(t, "Fresh result", s.Snapshot(sid).Description)
}

func TestClearFormInvalidatesInFlightGeneration(t *testing.T) {
	s := NewStore()

	token := s.BeginGeneration(sid)
	s.ClearForm(sid)

	assert.False(t, s.CommitGeneration(sid, token, "Result for a cleared form"))
	assert.Empty(t, s.Snapshot(sid).Description)
}

func TestSetExperienceIgnoresOutOfRangeSlot(t *testing.T) {
	s := NewStore()
	s.SetExperience(sid, -1, "bad")
	s.SetExperience(sid, models.ExperienceSlots, "bad")
	s.SetExperience(sid, 1, "Evening adda")

	st := s.Snapshot(sid)
	require.Equal(t, [models.ExperienceSlots]string{"", "Evening adda", ""}, st.Experiences)
}
