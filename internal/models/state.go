// Package models defines conversation state types for AICoach.
package models

// StateType is the persisted stage of a user's onboarding/conversation
// journey. The set is closed; the state machine is the only mutator.
type StateType string

const (
	// StateNew is the default state for a user seen for the first time.
	StateNew StateType = "new"
	// StateAwaitingLanguage means the greeting was sent but no language
	// could be detected from the user's messages yet.
	StateAwaitingLanguage StateType = "awaiting_language"
	// StateAwaitingProfile covers incremental profile field collection.
	StateAwaitingProfile StateType = "awaiting_profile"
	// StateAwaitingAreas asks which coaching areas the user wants to focus on.
	StateAwaitingAreas StateType = "awaiting_areas"
	// StateAskingQuestions walks through the generated coaching plan
	// questions one answer at a time.
	StateAskingQuestions StateType = "asking_questions"
	// StateActive is free-form coaching chat.
	StateActive StateType = "active"
)

// Valid reports whether s is a member of the closed state set.
func (s StateType) Valid() bool {
	switch s {
	case StateNew, StateAwaitingLanguage, StateAwaitingProfile,
		StateAwaitingAreas, StateAskingQuestions, StateActive:
		return true
	}
	return false
}
