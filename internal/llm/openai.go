package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"ai-diet-planner/internal/config"
	"ai-diet-planner/internal/shared"
)

// openAIClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI itself, Groq).
type openAIClient struct {
	apiKey      string
	url         string
	model       string
	temperature *float64
	httpClient  *http.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient creates a new chat completions client. Request deadlines
// come from the caller's context.
func NewOpenAIClient(cfg *config.Config) TextGenerator {
	return &openAIClient{
		apiKey:      cfg.LLMAPIKey,
		url:         cfg.LLMBaseURL,
		model:       cfg.LLMModel,
		temperature: cfg.LLMTemperature,
		httpClient:  &http.Client{},
	}
}

// GenerateContent sends the prompt as a single user message and returns the reply text.
func (c *openAIClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	// failed calls still report which model they were aimed at
	failed := ContentResponse{Usage: shared.TokenUsage{Model: c.model}}

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return failed, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return failed, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failed, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return failed, fmt.Errorf("chat completion api error: status=%d body=%s", resp.StatusCode, string(bodyBytes))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return failed, fmt.Errorf("failed to decode response: %w", err)
	}

	model := chatResp.Model
	if model == "" {
		model = c.model
	}
	out := ContentResponse{
		Usage: shared.TokenUsage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
			Model:            model,
		},
	}

	if len(chatResp.Choices) == 0 || chatResp.Choices[0].Message.Content == nil {
		return out, ErrNoContent
	}
	out.Content = *chatResp.Choices[0].Message.Content

	return out, nil
}
