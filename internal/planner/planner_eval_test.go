package planner

import (
	"context"
	"testing"
	"time"

	"ai-diet-planner/internal/config"
	"ai-diet-planner/internal/llm"
)

// TestPlanner_LiveEval performs a real LLM call and checks that the reply
// follows the requested markdown layout.
// Run with: go test -v ./internal/planner -run TestPlanner_LiveEval
func TestPlanner_LiveEval(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping live eval in short mode")
	}

	ctx := context.Background()
	cfg, err := config.NewFromEnv()
	if err != nil {
		t.Skip("Skipping: No API keys found in environment")
	}

	textGen, err := llm.New(ctx, cfg)
	if err != nil {
		t.Fatalf("Failed to create LLM client: %v", err)
	}
	if closer, ok := textGen.(llm.Closer); ok {
		defer closer.Close()
	}

	p := NewPlanner(textGen, 2*time.Minute)
	plan, meta, err := p.GeneratePlan(ctx, testRequest())
	if err != nil {
		t.Fatalf("Planner failed to respond: %v", err)
	}
	t.Logf("Latency: %v, tokens: %d", meta.Latency, meta.Usage.TotalTokens)

	// EVAL A: every meal section is present with dishes
	for _, kind := range []SectionKind{KindBreakfast, KindLunch, KindDinner} {
		s, ok := plan.Section(kind)
		if !ok {
			t.Errorf("FORMAT FAIL: missing %s section", kind)
			continue
		}
		meal := s.(*MealSection)
		if len(meal.Dishes) == 0 {
			t.Errorf("FORMAT FAIL: %s has no dishes", kind)
		}
		for _, d := range meal.Dishes {
			if len(d.Benefits) == 0 {
				t.Errorf("FORMAT FAIL: dish '%s' has no benefits", d.Name)
			}
		}
	}

	// EVAL B: food lists
	for _, kind := range []SectionKind{KindRecommendedFoods, KindFoodsToAvoid} {
		s, ok := plan.Section(kind)
		if !ok {
			t.Errorf("FORMAT FAIL: missing %s section", kind)
			continue
		}
		if len(s.(*FoodListSection).Foods) == 0 {
			t.Errorf("FORMAT FAIL: %s is empty", kind)
		}
	}

	for _, d := range plan.Deviations {
		t.Logf("Deviation in '%s': %s %q", d.Section, d.Reason, d.Line)
	}
}
