package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/logger"
)

// SpeechGenerator turns text into MP3 audio bytes.
type SpeechGenerator interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// GoogleTTS calls the Google Cloud Text-to-Speech REST API with an API key.
type GoogleTTS struct {
	httpClient *http.Client
	log        *logger.Logger
	apiKey     string
	language   string
	voice      string
}

func NewGoogleTTS(log *logger.Logger, apiKey, language, voice string) (*GoogleTTS, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("media: tts api key required")
	}
	if language == "" {
		language = "fi-FI"
	}
	return &GoogleTTS{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log.With("component", "tts"),
		apiKey:     apiKey,
		language:   language,
		voice:      voice,
	}, nil
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	voice := map[string]any{"languageCode": g.language}
	if g.voice != "" {
		voice["name"] = g.voice
	}
	body, err := json.Marshal(map[string]any{
		"input":       map[string]string{"text": text},
		"voice":       voice,
		"audioConfig": map[string]string{"audioEncoding": "MP3"},
	})
	if err != nil {
		return nil, err
	}

	url := "https://texttospeech.googleapis.com/v1/text:synthesize?key=" + g.apiKey
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: tts request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media: tts returned %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	var out struct {
		AudioContent string `json:"audioContent"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("media: bad tts response: %w", err)
	}
	if out.AudioContent == "" {
		return nil, fmt.Errorf("media: tts returned no audio")
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, fmt.Errorf("media: bad tts audio encoding: %w", err)
	}
	g.log.Debug("tts ok", "chars", len(text), "bytes", len(audio))
	return audio, nil
}

// Markdown image tags, e.g. ![alt](url), removed before reading content aloud.
var mdImagePattern = regexp.MustCompile(`!\[[^\]]*\]\([^\)]*\)\s*`)

// StripMarkdownImages removes markdown image references so captions and URLs
// are not spoken.
func StripMarkdownImages(text string) string {
	return mdImagePattern.ReplaceAllString(text, "")
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
