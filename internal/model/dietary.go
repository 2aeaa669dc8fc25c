package model

import (
	"errors"
	"strings"
)

// Units is the measurement system for height and weight.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// IsValid reports whether u is a supported unit system.
func (u Units) IsValid() bool {
	return u == UnitsMetric || u == UnitsImperial
}

// HeightUnit returns the unit label used for heights.
func (u Units) HeightUnit() string {
	if u == UnitsImperial {
		return "inches"
	}
	return "cm"
}

// WeightUnit returns the unit label used for weights.
func (u Units) WeightUnit() string {
	if u == UnitsImperial {
		return "lbs"
	}
	return "kg"
}

var validGenders = map[string]bool{"male": true, "female": true, "other": true}

var validActivityLevels = map[string]bool{
	"sedentary":   true,
	"light":       true,
	"moderate":    true,
	"active":      true,
	"very_active": true,
}

var validGoals = map[string]bool{
	"lose_weight":     true,
	"maintain_weight": true,
	"gain_muscle":     true,
}

// Dietary profile validation errors.
var (
	ErrProfileIncomplete    = errors.New("age, height and weight are required")
	ErrInvalidGender        = errors.New("invalid gender")
	ErrInvalidUnits         = errors.New("invalid units")
	ErrInvalidActivityLevel = errors.New("invalid activity level")
	ErrInvalidGoal          = errors.New("invalid goal")
)

// DietaryProfile is the questionnaire behind a generated dietary plan.
// Numeric fields stay as entered; they are interpolated into the prompt.
type DietaryProfile struct {
	Age                 string `json:"age"`
	Gender              string `json:"gender"`
	Height              string `json:"height"`
	Weight              string `json:"weight"`
	Units               Units  `json:"units"`
	ActivityLevel       string `json:"activity_level"`
	Goal                string `json:"goal"`
	DietaryRestrictions string `json:"dietary_restrictions"`
	UsualFoods          string `json:"usual_foods"`
	EatingHabits        string `json:"eating_habits"`
}

// Validate checks required fields and enumerations.
func (p DietaryProfile) Validate() error {
	if strings.TrimSpace(p.Age) == "" || strings.TrimSpace(p.Height) == "" || strings.TrimSpace(p.Weight) == "" {
		return ErrProfileIncomplete
	}
	if !p.Units.IsValid() {
		return ErrInvalidUnits
	}
	if !validGenders[p.Gender] {
		return ErrInvalidGender
	}
	if !validActivityLevels[p.ActivityLevel] {
		return ErrInvalidActivityLevel
	}
	if !validGoals[p.Goal] {
		return ErrInvalidGoal
	}
	return nil
}

// Humanize turns an enumeration value like "very_active" into "very active".
func Humanize(value string) string {
	return strings.ReplaceAll(value, "_", " ")
}
