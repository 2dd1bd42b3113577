package planner

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(testRequest())
	if err != nil {
		t.Fatalf("BuildPrompt failed: %v", err)
	}

	for _, want := range []string{
		"- Dietary Preference: Vegetarian",
		"- Allergies: Peanuts",
		"- Age Stage: Adult",
		"- Medical Conditions: Diabetes, Hypertension",
		"- Activity Level: Moderate",
		"## Recommended Foods",
		"## Foods to Avoid",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestBuildPrompt_EmptyLists(t *testing.T) {
	prompt, err := BuildPrompt(MealPlanRequest{DietaryPreference: "Vegan"})
	if err != nil {
		t.Fatalf("BuildPrompt failed: %v", err)
	}

	if !strings.Contains(prompt, "- Allergies: None") {
		t.Errorf("Expected 'None' for missing allergies")
	}
	if !strings.Contains(prompt, "- Medical Conditions: None") {
		t.Errorf("Expected 'None' for missing conditions")
	}
}

func TestBuildPrompt_Verbatim(t *testing.T) {
	// values are not escaped or trimmed
	prompt, err := BuildPrompt(MealPlanRequest{DietaryPreference: " <Keto> & more "})
	if err != nil {
		t.Fatalf("BuildPrompt failed: %v", err)
	}
	if !strings.Contains(prompt, "- Dietary Preference:  <Keto> & more \n") {
		t.Errorf("Expected preference to be interpolated verbatim")
	}
}
