// Package health holds wellness calculations that need no provider call.
package health

import (
	"math"
	"strconv"
	"strings"

	"github.com/bytebuddy/bytebuddy/internal/model"
)

// BMI categories.
const (
	CategoryUnderweight = "Underweight"
	CategoryHealthy     = "Healthy Weight"
	CategoryOverweight  = "Overweight"
	CategoryObese       = "Obese"
)

// imperialFactor converts lb/in² to kg/m².
const imperialFactor = 703

// Result is a body mass index with its category and advice.
type Result struct {
	BMI            float64 `json:"bmi"`
	Category       string  `json:"category"`
	Advice         string  `json:"advice"`
	ExerciseAdvice string  `json:"exercise_advice"`
}

type band struct {
	upper          float64
	category       string
	advice         string
	exerciseAdvice string
}

var bands = []band{
	{
		upper:          18.5,
		category:       CategoryUnderweight,
		advice:         "You may want to consider healthy ways to gain weight. A balanced diet with sufficient calories is important.",
		exerciseAdvice: "Consider light activities like walking for 20-30 minutes daily and strength training to build healthy muscle mass.",
	},
	{
		upper:          25,
		category:       CategoryHealthy,
		advice:         "Great job! You are in a healthy weight range. Focus on maintaining your current lifestyle.",
		exerciseAdvice: "To maintain your weight and fitness, aim for at least 30 minutes of moderate activity, like brisk walking, most days of the week.",
	},
	{
		upper:          30,
		category:       CategoryOverweight,
		advice:         "You might consider setting a weight loss goal to reach a healthier BMI range. A combination of diet and exercise can help.",
		exerciseAdvice: "A great starting point is to incorporate 30-45 minutes of brisk walking or cycling into your daily routine.",
	},
	{
		upper:          math.Inf(1),
		category:       CategoryObese,
		advice:         "It is highly recommended to work towards a healthier weight. Consulting a healthcare provider can provide a safe and effective plan.",
		exerciseAdvice: "Starting with low-impact activities is key. Aim for 20-30 minutes of walking daily, and gradually increase the duration as you feel comfortable.",
	},
}

// Calculate returns the BMI for a height and weight in the given units:
// centimetres and kilograms for metric, inches and pounds for imperial.
// It returns nil when either input is not a positive finite number, the
// units are unknown, or the result is not finite.
func Calculate(height, weight float64, units model.Units) *Result {
	if !positive(height) || !positive(weight) {
		return nil
	}

	var bmi float64
	switch units {
	case model.UnitsMetric:
		m := height / 100
		bmi = weight / (m * m)
	case model.UnitsImperial:
		bmi = weight / (height * height) * imperialFactor
	default:
		return nil
	}
	if math.IsNaN(bmi) || math.IsInf(bmi, 0) {
		return nil
	}

	for _, b := range bands {
		if bmi < b.upper {
			return &Result{
				BMI:            bmi,
				Category:       b.category,
				Advice:         b.advice,
				ExerciseAdvice: b.exerciseAdvice,
			}
		}
	}
	return nil
}

// Parse calculates from form values. Unparseable input yields nil.
func Parse(height, weight string, units model.Units) *Result {
	h, err := strconv.ParseFloat(strings.TrimSpace(height), 64)
	if err != nil {
		return nil
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(weight), 64)
	if err != nil {
		return nil
	}
	return Calculate(h, w, units)
}

// Rounded returns a copy with the BMI rounded to one decimal place.
func (r Result) Rounded() Result {
	r.BMI = math.Round(r.BMI*10) / 10
	return r
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
