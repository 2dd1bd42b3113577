package telegram

import (
	"errors"
	"fmt"
	"strings"

	"ai-diet-planner/internal/planner"
)

// ErrNoDiet is returned when a profile message has no dietary preference.
var ErrNoDiet = errors.New("profile has no diet line")

const profileHelp = "Send your profile as one `key: value` per line, for example:\n\n" +
	"diet: Vegetarian\n" +
	"allergies: Peanuts, Soy\n" +
	"age: Adult\n" +
	"conditions: Diabetes\n" +
	"activity: Moderate\n\n" +
	"Only *diet* is required."

// ParseProfile reads a MealPlanRequest from `key: value` lines. List values
// are comma separated; "none" stands for an empty list.
func ParseProfile(text string) (planner.MealPlanRequest, error) {
	var req planner.MealPlanRequest

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return req, fmt.Errorf("line %q is not `key: value`", line)
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "diet", "dietary preference":
			req.DietaryPreference = value
		case "allergies":
			req.Allergies = splitList(value)
		case "age", "age stage":
			req.AgeStage = value
		case "conditions", "medical conditions":
			req.MedicalConditions = splitList(value)
		case "activity", "activity level":
			req.ActivityLevel = value
		default:
			return req, fmt.Errorf("unknown profile key %q", strings.TrimSpace(key))
		}
	}

	if req.DietaryPreference == "" {
		return req, ErrNoDiet
	}
	return req, nil
}

func splitList(value string) []string {
	items := []string{}
	if strings.EqualFold(value, "none") {
		return items
	}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
