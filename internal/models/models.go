package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AISuggestion is a set of AI-generated search suggestions for one user
type AISuggestion struct {
	ID                     uuid.UUID       `json:"id"`
	UserID                 uuid.UUID       `json:"user_id"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	UserInfo               json.RawMessage `json:"user_info"`
	Suggestions            json.RawMessage `json:"suggestions"`
	IsApplied              bool            `json:"is_applied"`
	AppliedSuggestionIndex *int            `json:"applied_suggestion_index,omitempty"`
	AppliedAt              *time.Time      `json:"applied_at,omitempty"`
}

func (AISuggestion) TableName() string { return "ai_suggestions" }

// UserSearch is one entry of a user's search history
type UserSearch struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"user_id"`
	CreatedAt      time.Time       `json:"created_at"`
	Query          json.RawMessage `json:"query"`
	ExtractionID   *uuid.UUID      `json:"extraction_id,omitempty"`
	AISuggestionID *uuid.UUID      `json:"ai_suggestion_id,omitempty"`
	ResultsCount   *int            `json:"results_count,omitempty"`
	IsSuccessful   bool            `json:"is_successful"`
}

func (UserSearch) TableName() string { return "user_searches" }

// RowRef is the projection returned by an existence probe. The id is left
// undecoded since existing tables may not use uuid keys.
type RowRef struct {
	ID json.RawMessage `json:"id"`
}
