package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bytebuddy/bytebuddy/internal/completion"
	"github.com/bytebuddy/bytebuddy/internal/handler/dto"
	"github.com/bytebuddy/bytebuddy/internal/health"
	"github.com/bytebuddy/bytebuddy/internal/middleware"
	"github.com/bytebuddy/bytebuddy/internal/model"
)

// Fallback texts shown when generation fails.
const (
	DietaryPlanFailedMessage  = "Sorry, an error occurred while generating your dietary plan. Please try again."
	FoodAnalysisFailedMessage = "Sorry, an error occurred while analyzing your meal. Please try again."
)

// WellnessHandler handles the BMI, dietary plan and food analysis tools.
type WellnessHandler struct {
	completion *completion.Service
	logger     *slog.Logger
}

// NewWellnessHandler creates a new WellnessHandler.
func NewWellnessHandler(svc *completion.Service, logger *slog.Logger) *WellnessHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WellnessHandler{
		completion: svc,
		logger:     logger.With(slog.String("component", "wellness_handler")),
	}
}

// BMI handles POST /api/v1/wellness/bmi.
func (h *WellnessHandler) BMI(w http.ResponseWriter, r *http.Request) {
	var req dto.BMIRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := health.Parse(req.Height, req.Weight, req.Units)
	if res == nil {
		writeError(w, http.StatusUnprocessableEntity, "INVALID_MEASUREMENTS",
			"Please enter a valid positive height and weight.")
		return
	}
	writeJSON(w, http.StatusOK, res.Rounded())
}

// DietaryPlan handles POST /api/v1/wellness/dietary-plan. A generation
// failure still answers 200 with the fallback text.
func (h *WellnessHandler) DietaryPlan(w http.ResponseWriter, r *http.Request) {
	var p model.DietaryProfile
	if !decodeJSON(w, r, &p) {
		return
	}
	if !validate(w,
		middleware.Field{Name: "dietary_restrictions", Value: p.DietaryRestrictions, Max: middleware.MaxProfileField, Multiline: true},
		middleware.Field{Name: "usual_foods", Value: p.UsualFoods, Max: middleware.MaxProfileField, Multiline: true},
		middleware.Field{Name: "eating_habits", Value: p.EatingHabits, Max: middleware.MaxProfileField, Multiline: true},
	) {
		return
	}
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PROFILE", err.Error())
		return
	}

	resp := dto.DietaryPlanResponse{}
	if bmi := health.Parse(p.Height, p.Weight, p.Units); bmi != nil {
		rounded := bmi.Rounded()
		resp.BMI = &rounded
	}

	plan, err := h.completion.DietaryPlan(r.Context(), p)
	if err != nil {
		h.logger.Warn("dietary plan failed", slog.String("error", err.Error()))
		plan = DietaryPlanFailedMessage
		resp.Failed = true
	}
	resp.Plan = plan
	writeJSON(w, http.StatusOK, resp)
}

// FoodAnalysis handles POST /api/v1/wellness/food-analysis.
func (h *WellnessHandler) FoodAnalysis(w http.ResponseWriter, r *http.Request) {
	var req dto.FoodAnalysisRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, middleware.Field{Name: "meal", Value: req.Meal, Max: middleware.MaxMealLength, Multiline: true}) {
		return
	}

	text, err := h.completion.AnalyzeFood(r.Context(), req.Meal)
	if errors.Is(err, completion.ErrEmptyMeal) {
		writeError(w, http.StatusBadRequest, "EMPTY_MEAL", "Please describe your meal.")
		return
	}

	resp := dto.FoodAnalysisResponse{Analysis: text}
	if err != nil {
		h.logger.Warn("food analysis failed", slog.String("error", err.Error()))
		resp.Analysis = FoodAnalysisFailedMessage
		resp.Failed = true
	}
	writeJSON(w, http.StatusOK, resp)
}
