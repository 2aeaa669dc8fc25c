package completion

import (
	"fmt"
	"strings"

	"github.com/bytebuddy/bytebuddy/internal/model"
)

const healthSystemInstruction = "You are ByteBuddy, a helpful AI assistant focused on health and wellness. " +
	"Provide informative and safe advice, but always remind the user to consult a healthcare professional for medical issues. " +
	"Keep your answers concise and easy to understand."

func titlePrompt(question string) string {
	return fmt.Sprintf(`Based on the following user question, create a short and concise title of no more than 5 words. Only return the title text.

Question: "%s"

Title:`, question)
}

func dietaryPlanPrompt(p model.DietaryProfile) string {
	restrictions := p.DietaryRestrictions
	if strings.TrimSpace(restrictions) == "" {
		restrictions = "None"
	}

	var b strings.Builder
	b.WriteString("Create a comprehensive, balanced, and healthy 7-day dietary plan based on the detailed user profile below.\n\n")
	b.WriteString("**User Profile:**\n")
	fmt.Fprintf(&b, "- **Age:** %s\n", p.Age)
	fmt.Fprintf(&b, "- **Gender:** %s\n", p.Gender)
	fmt.Fprintf(&b, "- **Height:** %s %s\n", p.Height, p.Units.HeightUnit())
	fmt.Fprintf(&b, "- **Weight:** %s %s\n", p.Weight, p.Units.WeightUnit())
	fmt.Fprintf(&b, "- **Primary Goal:** %s\n", model.Humanize(p.Goal))
	fmt.Fprintf(&b, "- **Activity Level:** %s\n", model.Humanize(p.ActivityLevel))
	fmt.Fprintf(&b, "- **Dietary Restrictions or Allergies:** %s\n", restrictions)
	fmt.Fprintf(&b, "- **Typical Foods Eaten:** %s\n", p.UsualFoods)
	fmt.Fprintf(&b, "- **Current Eating Habits:** %s\n\n", p.EatingHabits)
	b.WriteString(`**Instructions for the Plan:**
1.  **Duration:** The plan must cover a full 7 days (Day 1 to Day 7).
2.  **Completeness:** For each day, provide specific and varied meal suggestions for Breakfast, Lunch, Dinner, and at least one Snack. Do not use placeholders like "(similar balanced meals)".
3.  **Personalization:** The meal suggestions should be tailored to the user's primary goal (e.g., calorie deficit for weight loss, protein-rich for muscle gain).
4.  **Practicality:** Suggest meals that are practical and reasonably easy to prepare.
5.  **Disclaimer:** **Crucially**, start the entire response with a clear disclaimer in brackets, like this: [Disclaimer: This is an AI-generated dietary plan and is not a substitute for professional medical advice. Consult with a registered dietitian or healthcare provider before making significant changes to your diet.]
6.  **Formatting:** Use Markdown for clear formatting. Use headings for each day (e.g., "### Day 1") and bullet points for meals.

Generate the 7-day plan now based on these instructions.`)
	return b.String()
}

func foodAnalysisPrompt(meal string) string {
	return fmt.Sprintf(`You are an expert dietary health assistant. Your task is to analyze the user's logged meal and provide nutritional insights using up-to-date information from web search. The tone should be helpful, encouraging, and organized.

**User's Meal:**
"%s"

**Instructions:**
1.  **Nutritional Insights:** Under the heading "### Nutritional Insights", provide a clear, estimated nutritional breakdown. Use a bulleted list for the following:
    *   **Calories:** Estimated amount.
    *   **Protein:** Estimated amount.
    *   **Carbohydrates:** Estimated amount.
    *   **Fats:** Estimated amount.
    *   **Key Nutrients:** Mention any other significant vitamins, minerals, or nutritional aspects (e.g., high in fiber, sodium, or sugar).
2.  **Health Assessment:** Under the heading "### Health Assessment", briefly assess the meal's healthiness in a constructive, non-judgmental paragraph.
3.  **Healthier Alternatives:** If the meal has unhealthy aspects, provide 1-2 specific and practical healthier alternatives under the heading "### Healthier Alternatives". For each alternative, use a bulleted list to explain why it's a better choice. If the meal is already healthy, commend the user and suggest another similar healthy option.
4.  **Formatting:** Strictly use Markdown. Use "###" for headings and "*" for bullet points.
5.  **Disclaimer:** **Crucially**, start the entire response with a clear disclaimer in brackets, like this: [Disclaimer: This is an AI-generated nutritional analysis and is not a substitute for professional medical advice. Consult with a registered dietitian for personalized guidance.]

Generate the analysis now based on these instructions.`, meal)
}
