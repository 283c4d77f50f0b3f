// Package models defines the core data structures for AICoach.
//
// It contains the persisted user and message models, the coaching plan
// artifact, and the JSON response envelope used by the webhook server.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Message roles for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// LanguageUndetermined marks a user whose language has not been detected yet.
const LanguageUndetermined = "und"

// User is one row per distinct WhatsApp sender.
type User struct {
	ID            string    `json:"id"`           // deterministic UUID derived from the phone number
	PhoneNumber   string    `json:"phone_number"` // sender id as delivered by the platform
	State         StateType `json:"state"`
	Language      string    `json:"language"`
	Name          string    `json:"name,omitempty"`
	Age           int       `json:"age,omitempty"`
	HeightCM      int       `json:"height_cm,omitempty"`
	CurrentWeight float64   `json:"current_weight,omitempty"`
	TargetWeight  float64   `json:"target_weight,omitempty"`
	TargetDate    string    `json:"target_date,omitempty"` // YYYY-MM-DD
	FocusAreas    string    `json:"focus_areas,omitempty"`
	Plan          string    `json:"plan,omitempty"` // serialized CoachPlan, overwritten wholesale
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the invariants every persisted User must hold.
func (u *User) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	if u.PhoneNumber == "" {
		return fmt.Errorf("user phone number is required")
	}
	if !u.State.Valid() {
		return fmt.Errorf("invalid user state %q", u.State)
	}
	return nil
}

// ChatMessage is one turn of conversation, inbound or outbound.
// Created once, never mutated or deleted.
type ChatMessage struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"` // RoleUser or RoleAssistant
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// CoachPlan holds the generated coaching questions and the cursor into
// them. It is stored on the user as a single JSON blob and replaced
// wholesale whenever it is regenerated.
type CoachPlan struct {
	Questions []string `json:"questions"`
	Index     int      `json:"index"`
}

// Done reports whether every question in the plan has been answered.
func (p *CoachPlan) Done() bool {
	return p.Index >= len(p.Questions)
}

// Current returns the question at the cursor, or "" when the plan is done.
func (p *CoachPlan) Current() string {
	if p.Done() {
		return ""
	}
	return p.Questions[p.Index]
}

// APIStatus represents the status field of an API response.
type APIStatus string

const (
	APIStatusOK    APIStatus = "ok"
	APIStatusError APIStatus = "error"
)

// APIResponse is the standard JSON envelope returned by the webhook server.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// NormalizePhone strips formatting characters from a phone-number-shaped
// sender id, keeping digits only.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
