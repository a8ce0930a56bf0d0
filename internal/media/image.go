package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/logger"
)

// ImageGenerator turns a prompt into PNG image bytes.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

// OpenAIImages calls an OpenAI-compatible image generation endpoint and
// decodes the base64 payload.
type OpenAIImages struct {
	httpClient *http.Client
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	size       string
}

func NewOpenAIImages(log *logger.Logger, baseURL, apiKey, model, size string) (*OpenAIImages, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("media: image api key required")
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if size == "" {
		size = "1024x1024"
	}
	return &OpenAIImages{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        log.With("component", "images"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		size:       size,
	}, nil
}

func (o *OpenAIImages) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	body, err := json.Marshal(map[string]any{
		"model":  o.model,
		"prompt": prompt,
		"size":   o.size,
		"n":      1,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: image request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media: image api returned %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	var out struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("media: bad image response: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("media: image api returned no data")
	}
	img, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("media: bad image encoding: %w", err)
	}
	o.log.Debug("image generated", "bytes", len(img))
	return img, nil
}
