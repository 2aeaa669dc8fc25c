package dto

import (
	"github.com/bytebuddy/bytebuddy/internal/health"
	"github.com/bytebuddy/bytebuddy/internal/model"
)

// BMIRequest carries measurements as typed into the form.
type BMIRequest struct {
	Height string      `json:"height"`
	Weight string      `json:"weight"`
	Units  model.Units `json:"units"`
}

// DietaryPlanResponse holds the BMI, when computable, and the plan.
type DietaryPlanResponse struct {
	BMI    *health.Result `json:"bmi"`
	Plan   string         `json:"plan"`
	Failed bool           `json:"failed"`
}

// FoodAnalysisRequest is the body of POST /api/v1/wellness/food-analysis.
type FoodAnalysisRequest struct {
	Meal string `json:"meal"`
}

// FoodAnalysisResponse holds the analysis text.
type FoodAnalysisResponse struct {
	Analysis string `json:"analysis"`
	Failed   bool   `json:"failed"`
}
