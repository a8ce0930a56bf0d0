package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/logger"
)

// ChatClient produces a JSON object for a prompt. The real implementation
// talks to an OpenAI-compatible chat completions endpoint in JSON mode;
// tests substitute a deterministic fake.
type ChatClient interface {
	GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error)
}

type Client struct {
	httpClient *http.Client
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
}

// NewClient builds the HTTP chat client. All parameters are explicit so the
// caller owns configuration; the package keeps no globals.
func NewClient(log *logger.Logger, baseURL, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("ai: api key required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		log:        log.With("component", "ai-client"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
	}, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
	Temperature    *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       []chatMessage{{Role: "user", Content: prompt}},
		ResponseFormat: &respFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("ai: bad response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("ai: provider returned %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("ai: empty completion")
	}
	content := parsed.Choices[0].Message.Content
	if !json.Valid([]byte(content)) {
		return nil, fmt.Errorf("ai: completion is not valid JSON")
	}
	c.log.Debug("chat completion ok", "model", c.model, "bytes", len(content))
	return json.RawMessage(content), nil
}
