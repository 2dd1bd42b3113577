package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"ai-diet-planner/internal/metrics"
	"ai-diet-planner/internal/planner"
	"ai-diet-planner/internal/shared"

	"github.com/rs/zerolog/log"
)

// ErrMetricsDisabled is returned by metric commands when no store is configured.
var ErrMetricsDisabled = errors.New("metrics store not configured, set METRICS_DB_PATH")

// PlanGenerator produces a structured plan for a dietary profile.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, req planner.MealPlanRequest) (*planner.MealPlan, shared.AgentMeta, error)
}

// App holds the dependencies of the command line front end.
type App struct {
	mealPlanner  PlanGenerator
	metricsStore *metrics.Store
	out          io.Writer
}

// NewApp creates and initializes a new App instance. metricsStore may be nil.
func NewApp(mealPlanner PlanGenerator, metricsStore *metrics.Store) *App {
	return &App{
		mealPlanner:  mealPlanner,
		metricsStore: metricsStore,
		out:          os.Stdout,
	}
}

// GenerateMealPlan creates a meal plan for the profile and prints it, either
// as a readable listing or as the JSON the HTTP endpoint returns.
func (a *App) GenerateMealPlan(ctx context.Context, req planner.MealPlanRequest, asJSON bool) error {
	log.Info().Str("diet", req.DietaryPreference).Msg("generating meal plan")

	plan, meta, err := a.mealPlanner.GeneratePlan(ctx, req)
	a.recordUsage(meta, err)
	if err != nil {
		return fmt.Errorf("failed to generate plan: %w", err)
	}

	for _, d := range plan.Deviations {
		log.Warn().Str("section", d.Section).Str("line", d.Line).Msg(d.Reason)
	}

	if asJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(plan)
	}
	WritePlan(a.out, plan)
	return nil
}

// CleanupMetrics removes usage records older than days.
func (a *App) CleanupMetrics(days int) error {
	if a.metricsStore == nil {
		return ErrMetricsDisabled
	}
	deleted, err := a.metricsStore.Cleanup(days)
	if err != nil {
		return fmt.Errorf("failed to cleanup metrics: %w", err)
	}
	fmt.Fprintf(a.out, "Removed %d metric records older than %d days.\n", deleted, days)
	return nil
}

// ShowUsage prints token usage per day for the last days.
func (a *App) ShowUsage(days int) error {
	if a.metricsStore == nil {
		return ErrMetricsDisabled
	}
	usage, err := a.metricsStore.GetDailyUsage(days)
	if err != nil {
		return fmt.Errorf("failed to read metrics: %w", err)
	}
	if len(usage) == 0 {
		fmt.Fprintln(a.out, "No usage recorded.")
		return nil
	}
	fmt.Fprintf(a.out, "%-10s  %5s  %6s  %8s  %10s\n", "DATE", "RUNS", "FAILED", "PROMPT", "COMPLETION")
	for _, u := range usage {
		fmt.Fprintf(a.out, "%-10s  %5d  %6d  %8d  %10d\n", u.Date, u.TotalExecution, u.Failures, u.TotalPrompt, u.TotalCompletion)
	}
	return nil
}

func (a *App) recordUsage(meta shared.AgentMeta, genErr error) {
	if a.metricsStore == nil {
		return
	}
	outcome := metrics.OutcomeOK
	if genErr != nil {
		outcome = planner.ErrorKind(genErr)
	}
	if err := a.metricsStore.RecordOutcome(meta, outcome); err != nil {
		log.Warn().Err(err).Str("agent", meta.AgentName).Msg("failed to record metrics")
	}
}

// WritePlan prints a plan as a plain text listing in document order.
func WritePlan(w io.Writer, plan *planner.MealPlan) {
	for _, s := range plan.Sections {
		fmt.Fprintf(w, "\n=== %s ===\n", s.Title())
		switch sec := s.(type) {
		case *planner.MealSection:
			for _, d := range sec.Dishes {
				fmt.Fprintf(w, "* %s\n", d.Name)
				for _, b := range d.Benefits {
					fmt.Fprintf(w, "    - %s\n", b)
				}
			}
		case *planner.FoodListSection:
			for _, f := range sec.Foods {
				fmt.Fprintf(w, "- %s\n", f)
			}
		}
	}
}
