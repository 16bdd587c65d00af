// Package session holds per-user form state while an entry is being
// composed. State lives in memory and is keyed by session id.
package session

import (
	"sync"

	"iamkolkata/internal/models"

	"github.com/google/uuid"
)

// FormState is everything a user has filled in so far.
type FormState struct {
	Location          models.Location
	Tags              []string
	SelectedTags      [models.SelectedTagSlots]string
	Experiences       [models.ExperienceSlots]string
	ParaName          string
	Description       string
	ManualDescription string
	AIMode            bool
	// generationToken invalidates in-flight generations when the form is
	// cleared or restarted.
	generationToken string
}

// Store keeps form state per session.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*FormState
}

// NewStore builds an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*FormState)}
}

func (s *Store) state(id string) *FormState {
	st, ok := s.sessions[id]
	if !ok {
		st = &FormState{AIMode: true}
		s.sessions[id] = st
	}
	return st
}

// SetLocation records a new position. Tags, selections and experiences are
// location-bound, so changing location resets them.
func (s *Store) SetLocation(id string, loc models.Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(id)
	st.Location = loc
	st.Tags = nil
	st.SelectedTags = [models.SelectedTagSlots]string{}
	st.Experiences = [models.ExperienceSlots]string{}
}

// SetTags replaces the suggested tag list.
func (s *Store) SetTags(id string, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(id).Tags = append([]string(nil), tags...)
}

// AddSelectedTag places the tag in the first empty slot. Once every slot is
// filled further adds are ignored; duplicates are ignored too.
func (s *Store) AddSelectedTag(id, tag string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(id)
	for _, existing := range st.SelectedTags {
		if existing == tag {
			return false
		}
	}
	for i, existing := range st.SelectedTags {
		if existing == "" {
			st.SelectedTags[i] = tag
			return true
		}
	}
	return false
}

// RemoveSelectedTag blanks the slot holding the tag, leaving other slots in
// place.
func (s *Store) RemoveSelectedTag(id, tag string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(id)
	for i, existing := range st.SelectedTags {
		if existing == tag {
			st.SelectedTags[i] = ""
			return
		}
	}
}

// SetExperience writes one experience slot.
func (s *Store) SetExperience(id string, slot int, text string) {
	if slot < 0 || slot >= models.ExperienceSlots {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(id).Experiences[slot] = text
}

// SetParaName records the chosen para name.
func (s *Store) SetParaName(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(id).ParaName = name
}

// SetGeneratedContent stores an AI-generated description. In AI mode the
// manual description mirrors it so switching modes starts from the generated
// text.
func (s *Store) SetGeneratedContent(id, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(id)
	st.Description = description
	if st.AIMode {
		st.ManualDescription = description
	}
}

// SetManualDescription stores a hand-written description.
func (s *Store) SetManualDescription(id, description string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(id).ManualDescription = description
}

// SetAIMode toggles between generated and manual descriptions.
func (s *Store) SetAIMode(id string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(id).AIMode = enabled
}

// ClearForm resets the writable fields after an entry is saved. Location and
// suggested tags survive so the user can immediately start another entry for
// the same place.
func (s *Store) ClearForm(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(id)
	st.SelectedTags = [models.SelectedTagSlots]string{}
	st.Experiences = [models.ExperienceSlots]string{}
	st.ParaName = ""
	st.Description = ""
	st.ManualDescription = ""
	st.AIMode = true
	st.generationToken = ""
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot(id string) FormState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.state(id)
}

// BeginGeneration marks the start of a content generation and returns a
// token the generation must present when committing its result.
func (s *Store) BeginGeneration(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.New().String()
	s.state(id).generationToken = token
	return token
}

// CommitGeneration applies a generated description only if the token is
// still current. Results of generations that outlived a ClearForm or a
// newer generation are dropped.
func (s *Store) CommitGeneration(id, token, description string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(id)
	if token == "" || st.generationToken != token {
		return false
	}
	st.Description = description
	if st.AIMode {
		st.ManualDescription = description
	}
	st.generationToken = ""
	return true
}

// Drop removes a session entirely.
func (s *Store) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}
