package acceptance_tests

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ai-diet-planner/internal/auth"
	"ai-diet-planner/internal/config"
	"ai-diet-planner/internal/database"
	"ai-diet-planner/internal/llm"
	"ai-diet-planner/internal/metrics"
	"ai-diet-planner/internal/planner"
	"ai-diet-planner/internal/server"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelReply = `Here is your plan.

## Breakfast
- Dish 1: Idli
  - Low fat
  - High fiber
  - Easy to digest
- Dish 2: Poha
  - Light
  - Quick energy
  - Gluten-free option
## Lunch
- Dish 1: Rajma Chawal
  - Protein rich
## Dinner
- Dish 1: Khichdi
  - Soothing
## Recommended Foods
- Spinach
- Lentils
- Yogurt
## Foods to Avoid
- Fried snacks
- Refined sugar
- White bread`

// --- Fake completion API ---
type fakeCompletionAPI struct {
	calls   atomic.Int32
	mu      sync.Mutex
	prompts []string
	status  int
	content *string
	delay   time.Duration
}

func (f *fakeCompletionAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)

	var req struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
		f.mu.Lock()
		f.prompts = append(f.prompts, req.Messages[0].Content)
		f.mu.Unlock()
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-r.Context().Done():
			return
		}
	}
	if f.status != 0 && f.status != http.StatusOK {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, f.status)
		return
	}

	resp := map[string]any{
		"model":   "gpt-4",
		"choices": []map[string]any{{"message": map[string]any{"role": "assistant", "content": f.content}}},
		"usage":   map[string]int{"prompt_tokens": 310, "completion_tokens": 220, "total_tokens": 530},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (f *fakeCompletionAPI) recordedPrompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

func reply(s string) *string { return &s }

type harness struct {
	api     *fakeCompletionAPI
	service *httptest.Server
	store   *metrics.Store
	tokens  *auth.TokenService
}

func newHarness(t *testing.T, api *fakeCompletionAPI, withAuth bool) *harness {
	t.Helper()

	upstream := httptest.NewServer(api)
	t.Cleanup(upstream.Close)

	cfg := &config.Config{
		StaticDir:     t.TempDir(),
		LLMProvider:   config.ProviderOpenAI,
		LLMAPIKey:     "test-key",
		LLMModel:      "gpt-4",
		LLMBaseURL:    upstream.URL,
		LLMTimeout:    200 * time.Millisecond,
		MetricsDBPath: filepath.Join(t.TempDir(), "metrics.db"),
	}

	db, err := database.NewDB(cfg.MetricsDBPath)
	require.NoError(t, err)
	store := metrics.NewStore(db.SQL)
	t.Cleanup(func() { store.Close() })

	opts := []server.Option{server.WithMetrics(store)}
	h := &harness{api: api, store: store}
	if withAuth {
		h.tokens, err = auth.NewTokenService("acceptance-secret")
		require.NoError(t, err)
		opts = append(opts, server.WithTokenService(h.tokens))
	}

	mealPlanner := planner.NewPlanner(llm.NewOpenAIClient(cfg), cfg.LLMTimeout)
	h.service = httptest.NewServer(server.NewServer(cfg, mealPlanner, opts...).RegisterRoutes())
	t.Cleanup(h.service.Close)
	return h
}

func (h *harness) post(t *testing.T, body string, token string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.service.URL+"/generate-meal-plan", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

const profile = `{"dietaryPreference":"Vegetarian","allergies":["Peanuts"],"ageStage":"Adult","medicalConditions":[],"activityLevel":"Moderate"}`

func TestAcceptance_GenerateMealPlan(t *testing.T) {
	h := newHarness(t, &fakeCompletionAPI{content: reply(modelReply)}, false)

	resp, body := h.post(t, profile, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)

	// Scenario: one outbound call carrying the whole profile.
	assert.Equal(t, int32(1), h.api.calls.Load())
	prompts := h.api.recordedPrompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "- Allergies: Peanuts")
	assert.Contains(t, prompts[0], "- Medical Conditions: None")

	// Scenario: the reply is keyed by heading in document order.
	keys := []string{`"Breakfast"`, `"Lunch"`, `"Dinner"`, `"Recommended Foods"`, `"Foods to Avoid"`}
	last := -1
	for _, k := range keys {
		idx := strings.Index(body, k)
		require.Greater(t, idx, last, "key %s out of order in %s", k, body)
		last = idx
	}

	var decoded struct {
		Breakfast []struct {
			Name     string   `json:"name"`
			Benefits []string `json:"benefits"`
		} `json:"Breakfast"`
		Avoid []string `json:"Foods to Avoid"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded))
	require.Len(t, decoded.Breakfast, 2)
	assert.Equal(t, "Idli", decoded.Breakfast[0].Name)
	assert.Equal(t, []string{"Low fat", "High fiber", "Easy to digest"}, decoded.Breakfast[0].Benefits)
	assert.Equal(t, []string{"Fried snacks", "Refined sugar", "White bread"}, decoded.Avoid)

	// Scenario: usage is persisted.
	usage, err := h.store.GetDailyUsage(1)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 310, usage[0].TotalPrompt)
}

func TestAcceptance_ConcurrentRequests(t *testing.T) {
	const requests = 8
	h := newHarness(t, &fakeCompletionAPI{content: reply(modelReply)}, false)

	var wg sync.WaitGroup
	statuses := make(chan int, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(h.service.URL+"/generate-meal-plan", "application/json", strings.NewReader(profile))
			if err != nil {
				statuses <- 0
				return
			}
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	for status := range statuses {
		assert.Equal(t, http.StatusOK, status)
	}
	assert.Equal(t, int32(requests), h.api.calls.Load())
	assert.Len(t, h.api.recordedPrompts(), requests)

	usage, err := h.store.GetDailyUsage(1)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, requests, usage[0].TotalExecution)
}

func TestAcceptance_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name string
		api  *fakeCompletionAPI
	}{
		{name: "Unauthorized", api: &fakeCompletionAPI{status: http.StatusUnauthorized}},
		{name: "NullContent", api: &fakeCompletionAPI{}},
		{name: "Timeout", api: &fakeCompletionAPI{content: reply(modelReply), delay: 2 * time.Second}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.api, false)

			resp, body := h.post(t, profile, "")
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
			assert.JSONEq(t, `{"error":"Failed to generate meal plan"}`, body)
			assert.Equal(t, int32(1), tc.api.calls.Load(), "no retries")

			// Scenario: the failed attempt is still persisted.
			usage, err := h.store.GetDailyUsage(1)
			require.NoError(t, err)
			require.Len(t, usage, 1)
			assert.Equal(t, 1, usage[0].TotalExecution)
			assert.Equal(t, 1, usage[0].Failures)
		})
	}
}

func TestAcceptance_EmptyReply(t *testing.T) {
	h := newHarness(t, &fakeCompletionAPI{content: reply("")}, false)

	resp, body := h.post(t, profile, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{}`, body)
}

func TestAcceptance_BearerToken(t *testing.T) {
	h := newHarness(t, &fakeCompletionAPI{content: reply(modelReply)}, true)

	resp, _ := h.post(t, profile, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(0), h.api.calls.Load())

	token, err := h.tokens.Issue("acceptance", time.Minute)
	require.NoError(t, err)
	resp, _ = h.post(t, profile, token)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
