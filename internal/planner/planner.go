package planner

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"ai-diet-planner/internal/llm"
	"ai-diet-planner/internal/shared"
)

// AgentName labels planner executions in usage metrics.
const AgentName = "MealPlanner"

// Planner turns a dietary profile into a structured meal plan.
type Planner struct {
	textGen llm.TextGenerator
	timeout time.Duration
}

// NewPlanner creates a new Planner. A zero timeout leaves the caller's
// context deadline in charge.
func NewPlanner(textGen llm.TextGenerator, timeout time.Duration) *Planner {
	return &Planner{
		textGen: textGen,
		timeout: timeout,
	}
}

// GeneratePlan builds the prompt, makes a single completion call and parses
// the reply. The returned meta is populated whenever the call was made.
func (p *Planner) GeneratePlan(ctx context.Context, req MealPlanRequest) (*MealPlan, shared.AgentMeta, error) {
	meta := shared.AgentMeta{AgentName: AgentName}

	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, meta, fmt.Errorf("failed to build prompt: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := p.textGen.GenerateContent(ctx, prompt)
	meta.Latency = time.Since(start)
	meta.Usage = resp.Usage
	if err != nil {
		return nil, meta, classifyGenerationError(err)
	}

	plan, err := ParseString(resp.Content)
	if err != nil {
		return nil, meta, fmt.Errorf("failed to parse meal plan: %w", err)
	}

	return plan, meta, nil
}

func classifyGenerationError(err error) error {
	if errors.Is(err, llm.ErrNoContent) {
		return fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
