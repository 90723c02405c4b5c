package openai_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lwhela12/the-hive-sub001/models"
)

const defaultBaseURL = "https://api.openai.com/v1"

// client implements the reasoning-engine contract using OpenAI's
// chat-completions API over plain net/http.
type client struct {
	apiKey          string
	baseURL         string
	completionModel string
	temperature     float64
	maxTokens       int
	httpClient      *http.Client
}

// NewClient creates a new OpenAI client.
func NewClient(apiKey, baseURL, completionModel string, temperature float64, maxTokens int, timeout time.Duration) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &client{
		apiKey:          apiKey,
		baseURL:         baseURL,
		completionModel: completionModel,
		temperature:     temperature,
		maxTokens:       maxTokens,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// wireMessage is a chat-completions message. Content is either a plain
// string or an array of typed parts when images are attached.
type wireMessage struct {
	Role       string         `json:"role"`
	Content    interface{}    `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
}

type wireImageURL struct {
	URL string `json:"url"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string         `json:"type"`
	Function wireToolSchema `json:"function"`
}

type wireToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content   string         `json:"content"`
			ToolCalls []wireToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// Chat submits the system prompt, tool declarations and transcript and maps
// the finish reason onto a typed stop condition.
func (c *client) Chat(ctx context.Context, systemPrompt string, tools []models.ToolDefinition, transcript []models.EngineMessage) (models.EngineResponse, error) {
	messages := make([]wireMessage, 0, len(transcript)+1)
	if systemPrompt != "" {
		messages = append(messages, wireMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range transcript {
		messages = append(messages, toWireMessage(m))
	}

	wireTools := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		params := t.InputSchema
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		wireTools = append(wireTools, wireTool{
			Type:     "function",
			Function: wireToolSchema{Name: t.Name, Description: t.Description, Parameters: params},
		})
	}

	resp, err := c.sendRequest(ctx, chatRequest{
		Model:       c.completionModel,
		Messages:    messages,
		Tools:       wireTools,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return models.EngineResponse{}, err
	}

	choice := resp.Choices[0]
	out := models.EngineResponse{Text: choice.Message.Content, StopReason: models.StopFinal}
	if choice.FinishReason == "tool_calls" || len(choice.Message.ToolCalls) > 0 {
		out.StopReason = models.StopToolUse
		for _, tc := range choice.Message.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:    tc.ID,
				Name:  tc.Function.Name,
				Input: json.RawMessage(tc.Function.Arguments),
			})
		}
	}
	return out, nil
}

// Complete runs a single-shot prompt, used by the summarizer.
func (c *client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.sendRequest(ctx, chatRequest{
		Model:       c.completionModel,
		Messages:    []wireMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Choices[0].Message.Content, nil
}

func toWireMessage(m models.EngineMessage) wireMessage {
	out := wireMessage{Role: m.Role, ToolCallID: m.ToolCallID}
	for _, tc := range m.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, wireToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: wireFunction{
				Name:      tc.Name,
				Arguments: string(tc.Input),
			},
		})
	}
	if len(m.Images) == 0 {
		out.Content = m.Content
		return out
	}
	// Image parts go ahead of the text.
	parts := make([]wireContentPart, 0, len(m.Images)+1)
	for _, img := range m.Images {
		url := img.URL
		if url == "" {
			url = fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.DataBase64)
		}
		parts = append(parts, wireContentPart{Type: "image_url", ImageURL: &wireImageURL{URL: url}})
	}
	if m.Content != "" {
		parts = append(parts, wireContentPart{Type: "text", Text: m.Content})
	}
	out.Content = parts
	return out
}

// sendRequest posts one chat-completions request and decodes the response.
func (c *client) sendRequest(ctx context.Context, body chatRequest) (chatResponse, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return chatResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return chatResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return chatResponse{}, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return chatResponse{}, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return chatResponse{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(out.Choices) == 0 {
		return chatResponse{}, fmt.Errorf("no choices in response")
	}
	return out, nil
}
