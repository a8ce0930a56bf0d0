package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/assignment"
	"github.com/JiskaLaaksovirta/athena-ai-lab/internal/logger"
)

// ContentGenerator produces structured game payloads for a topic.
type ContentGenerator interface {
	GenerateGame(ctx context.Context, topic string, gt assignment.GameType, difficulty string) (json.RawMessage, error)
}

// Metadata is an AI-picked title and curriculum subject for a material.
type Metadata struct {
	Title   string `json:"title"`
	Subject string `json:"subject"`
}

// MetadataGenerator never fails: any upstream error degrades to a
// deterministic fallback title and subject.
type MetadataGenerator interface {
	GenerateMetadata(ctx context.Context, name, topic string) Metadata
}

// Generator implements both generation capabilities over a ChatClient.
type Generator struct {
	chat ChatClient
	log  *logger.Logger
}

func NewGenerator(log *logger.Logger, chat ChatClient) *Generator {
	return &Generator{chat: chat, log: log.With("component", "generator")}
}

// GenerateGame asks the provider for a game payload and verifies the result
// matches the requested game's shape before handing it to callers. A payload
// of the wrong shape counts as an upstream failure.
func (g *Generator) GenerateGame(ctx context.Context, topic string, gt assignment.GameType, difficulty string) (json.RawMessage, error) {
	prompt, err := gamePrompt(topic, gt, difficulty)
	if err != nil {
		return nil, err
	}
	raw, err := g.chat.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	got, err := assignment.DetectGameType(raw)
	if err != nil {
		return nil, fmt.Errorf("generated payload has no recognized game shape: %w", err)
	}
	if got != gt {
		return nil, fmt.Errorf("generated payload looks like %q, wanted %q", got, gt)
	}
	return raw, nil
}

func (g *Generator) GenerateMetadata(ctx context.Context, name, topic string) Metadata {
	fallback := Metadata{Title: fallbackTitle(name, topic), Subject: DefaultSubject}

	raw, err := g.chat.GenerateJSON(ctx, metadataPrompt(name, topic))
	if err != nil {
		g.log.Warn("metadata generation failed, using fallback", "err", err)
		return fallback
	}
	var md Metadata
	if err := json.Unmarshal(raw, &md); err != nil {
		g.log.Warn("metadata response unparseable, using fallback", "err", err)
		return fallback
	}
	if md.Title == "" {
		md.Title = fallback.Title
	}
	if !validSubject(md.Subject) {
		md.Subject = DefaultSubject
	}
	return md
}

func validSubject(s string) bool {
	for _, v := range ValidSubjects {
		if v == s {
			return true
		}
	}
	return false
}

func fallbackTitle(name, topic string) string {
	if r := []rune(topic); len(r) > 40 {
		topic = string(r[:40])
	}
	return capitalize(name) + ": " + topic
}

// capitalize normalizes a game name for titles, e.g. "quiz" -> "Quiz".
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
