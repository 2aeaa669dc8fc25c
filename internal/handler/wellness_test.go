package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/bytebuddy/bytebuddy/internal/handler/dto"
	"github.com/bytebuddy/bytebuddy/internal/health"
	"github.com/bytebuddy/bytebuddy/internal/model"
)

func validProfile() model.DietaryProfile {
	return model.DietaryProfile{
		Age:           "30",
		Gender:        "female",
		Height:        "170",
		Weight:        "65",
		Units:         model.UnitsMetric,
		ActivityLevel: "moderate",
		Goal:          "maintain_weight",
	}
}

func TestWellnessHandler_BMI(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	sess := app.signUp(t, "ada@example.com")

	rec := app.do(t, http.MethodPost, "/api/v1/wellness/bmi", sess.Token, dto.BMIRequest{
		Height: "180",
		Weight: "90",
		Units:  model.UnitsMetric,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res health.Result
	decode(t, rec, &res)
	if res.BMI != 27.8 {
		t.Errorf("expected BMI 27.8, got %v", res.BMI)
	}
	if res.Category != health.CategoryOverweight {
		t.Errorf("expected overweight, got %s", res.Category)
	}
	if res.Advice == "" || res.ExerciseAdvice == "" {
		t.Error("expected advice texts")
	}
}

func TestWellnessHandler_BMIRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	sess := app.signUp(t, "ada@example.com")

	for _, req := range []dto.BMIRequest{
		{Height: "", Weight: "70", Units: model.UnitsMetric},
		{Height: "abc", Weight: "70", Units: model.UnitsMetric},
		{Height: "-170", Weight: "70", Units: model.UnitsMetric},
		{Height: "170", Weight: "70", Units: "cubits"},
	} {
		rec := app.do(t, http.MethodPost, "/api/v1/wellness/bmi", sess.Token, req)
		requireError(t, rec, http.StatusUnprocessableEntity, "INVALID_MEASUREMENTS")
	}
}

func TestWellnessHandler_DietaryPlan(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	app.provider.text = "Day 1: oats."
	sess := app.signUp(t, "ada@example.com")

	rec := app.do(t, http.MethodPost, "/api/v1/wellness/dietary-plan", sess.Token, validProfile())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.DietaryPlanResponse
	decode(t, rec, &resp)
	if resp.Failed || resp.Plan != "Day 1: oats." {
		t.Errorf("unexpected plan: %+v", resp)
	}
	if resp.BMI == nil || resp.BMI.Category != health.CategoryHealthy {
		t.Errorf("expected a healthy BMI alongside the plan, got %+v", resp.BMI)
	}
}

func TestWellnessHandler_DietaryPlanValidation(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	sess := app.signUp(t, "ada@example.com")

	p := validProfile()
	p.Goal = "get_rich"
	rec := app.do(t, http.MethodPost, "/api/v1/wellness/dietary-plan", sess.Token, p)
	requireError(t, rec, http.StatusBadRequest, "INVALID_PROFILE")

	p = validProfile()
	p.Age = ""
	rec = app.do(t, http.MethodPost, "/api/v1/wellness/dietary-plan", sess.Token, p)
	requireError(t, rec, http.StatusBadRequest, "INVALID_PROFILE")

	if app.provider.calls != 0 {
		t.Errorf("invalid profiles must not reach the provider, got %d calls", app.provider.calls)
	}
}

func TestWellnessHandler_DietaryPlanFailure(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	app.provider.fail(errors.New("timeout"))
	sess := app.signUp(t, "ada@example.com")

	rec := app.do(t, http.MethodPost, "/api/v1/wellness/dietary-plan", sess.Token, validProfile())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dto.DietaryPlanResponse
	decode(t, rec, &resp)
	if !resp.Failed || resp.Plan != DietaryPlanFailedMessage {
		t.Errorf("expected fallback plan, got %+v", resp)
	}
}

func TestWellnessHandler_FoodAnalysis(t *testing.T) {
	t.Parallel()
	app := newTestApp(t)
	app.provider.text = "About 450 kcal."
	sess := app.signUp(t, "ada@example.com")

	rec := app.do(t, http.MethodPost, "/api/v1/wellness/food-analysis", sess.Token, dto.FoodAnalysisRequest{Meal: "two eggs and toast"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.FoodAnalysisResponse
	decode(t, rec, &resp)
	if resp.Failed || resp.Analysis != "About 450 kcal." {
		t.Errorf("unexpected analysis: %+v", resp)
	}

	rec = app.do(t, http.MethodPost, "/api/v1/wellness/food-analysis", sess.Token, dto.FoodAnalysisRequest{Meal: "  "})
	requireError(t, rec, http.StatusBadRequest, "EMPTY_MEAL")

	app.provider.fail(errors.New("timeout"))
	rec = app.do(t, http.MethodPost, "/api/v1/wellness/food-analysis", sess.Token, dto.FoodAnalysisRequest{Meal: "soup"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	resp = dto.FoodAnalysisResponse{}
	decode(t, rec, &resp)
	if !resp.Failed || resp.Analysis != FoodAnalysisFailedMessage {
		t.Errorf("expected fallback analysis, got %+v", resp)
	}
}
