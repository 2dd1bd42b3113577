package planner

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

//go:embed meal_plan_prompt.md
var mealPlanPrompt string

var promptTemplate = template.Must(template.New("mealplan").
	Funcs(template.FuncMap{"list": joinOrNone}).
	Parse(mealPlanPrompt))

// BuildPrompt renders the completion prompt for a profile. Field values are
// interpolated verbatim.
func BuildPrompt(req MealPlanRequest) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, req); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "None"
	}
	return strings.Join(items, ", ")
}
