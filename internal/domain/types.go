// Package domain contains the core types shared across the procedure
// suggestion service: the catalog model, prediction statistics, and the
// suggestion values produced by the engine.
package domain

import (
	"time"
)

// ProcedureDefinition describes a single procedure in the catalog.
// ControlName is the globally unique key; Description is the human-readable
// text shown in the UI and used for variant-name normalization.
type ProcedureDefinition struct {
	ControlName   string `json:"control_name"`
	Description   string `json:"description"`
	CategoryID    string `json:"category_id"`
	SubcategoryID string `json:"subcategory_id,omitempty"`
}

// Category groups procedures in the catalog.
type Category struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Subcategories []Subcategory `json:"subcategories,omitempty"`
}

// Subcategory is a second-level grouping within a category.
type Subcategory struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProcedureSuggestion is a single ranked recommendation produced by a
// suggestion provider. It is constructed once per call and never mutated.
type ProcedureSuggestion struct {
	Procedure ProcedureDefinition `json:"procedure"`
	// Confidence is the combined probability as an integer percentage, 0-100.
	Confidence int `json:"confidence"`
	// CoOccurrenceCount is the summed raw co-occurrence evidence.
	CoOccurrenceCount int `json:"co_occurrence_count"`
	// ContributingProcedures is the number of distinct session procedures
	// that contributed evidence for this candidate.
	ContributingProcedures int `json:"contributing_procedures"`
}

// SuggestionSettings is the configuration surface consumed by the provider
// factory. The algorithm itself only sees Threshold and MaxSuggestions.
type SuggestionSettings struct {
	Enabled        bool    `json:"enabled" mapstructure:"enabled"`
	Threshold      float64 `json:"threshold" mapstructure:"threshold"`
	MaxSuggestions int     `json:"max_suggestions" mapstructure:"max_suggestions"`
	AIProvider     string  `json:"ai_provider" mapstructure:"ai_provider"`
	AIAPIKey       string  `json:"ai_api_key,omitempty" mapstructure:"ai_api_key"`
}

// DefaultSuggestionSettings returns the settings used when no configuration
// is present.
func DefaultSuggestionSettings() SuggestionSettings {
	return SuggestionSettings{
		Enabled:        true,
		Threshold:      30,
		MaxSuggestions: 10,
		AIProvider:     "local",
	}
}

// SeedInfo records how a PredictionData aggregate was seeded. It is
// provenance metadata only; the suggestion algorithm never reads it.
type SeedInfo struct {
	FacilityTypes []string  `json:"facility_types,omitempty"`
	Method        string    `json:"method,omitempty"`
	GeneratedAt   time.Time `json:"generated_at,omitempty"`
}
