// Package ai asks a language model for annotation suggestions on a passage
// of document text. The model is instructed to answer with structured JSON;
// markdown-shaped answers are normalized to plain text as a fallback.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rizome-dev/go-openrouter/pkg/models"
	openrouter "github.com/rizome-dev/go-openrouter/pkg"

	"github.com/winsonsd1123/pdfano/observability"
)

// ErrEmptyAnswer reports that the model returned no usable content.
var ErrEmptyAnswer = errors.New("ai: model returned no content")

const (
	defaultModel     = "anthropic/claude-3.5-sonnet"
	defaultMaxTokens = 1024
)

const systemPrompt = `You review documents and propose annotations. Given a passage,
answer ONLY with a JSON array of objects shaped like
{"type":"highlight"|"note"|"strikeout","selectedText":"<exact quote from the passage>","content":"<your comment>"}.
Quote selectedText verbatim from the passage. No prose outside the JSON.`

// Suggestion is one proposed annotation. Placement is the caller's concern;
// only the content and the quoted anchor text travel back.
type Suggestion struct {
	Type         string `json:"type"`
	SelectedText string `json:"selectedText"`
	Content      string `json:"content"`
}

// Config carries the OpenRouter connection settings.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
}

// Suggester produces annotation suggestions through an OpenRouter-hosted
// model. Safe for concurrent use.
type Suggester struct {
	client      *openrouter.Client
	model       string
	maxTokens   int
	temperature *float64
	logger      observability.Logger
}

// NewSuggester builds a Suggester from cfg. A nil logger is replaced with a
// no-op one.
func NewSuggester(cfg Config, logger observability.Logger) *Suggester {
	var opts []openrouter.Option
	if cfg.BaseURL != "" {
		opts = append(opts, openrouter.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openrouter.WithTimeout(cfg.Timeout))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Suggester{
		client:      openrouter.NewClient(cfg.APIKey, opts...),
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// Suggest asks the model for annotations on text and parses its answer.
// A structurally valid JSON answer yields the parsed suggestions; anything
// else is normalized to plain text and returned as a single note.
func (s *Suggester) Suggest(ctx context.Context, text string) ([]Suggestion, error) {
	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, models.ChatCompletionRequest{
		Model: s.model,
		Messages: []models.Message{
			models.NewTextMessage(models.RoleSystem, systemPrompt),
			models.NewTextMessage(models.RoleUser, text),
		},
		MaxTokens:   &s.maxTokens,
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("ai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return nil, ErrEmptyAnswer
	}
	answer, err := resp.Choices[0].Message.GetTextContent()
	if err != nil {
		return nil, fmt.Errorf("ai: read answer: %w", err)
	}
	if strings.TrimSpace(answer) == "" {
		return nil, ErrEmptyAnswer
	}

	suggestions := parseAnswer(answer)
	s.logger.Info("suggestions produced",
		observability.String("model", resp.Model),
		observability.Int("count", len(suggestions)),
		observability.Int64("duration_ms", time.Since(start).Milliseconds()))
	return suggestions, nil
}

// parseAnswer extracts suggestions from the model answer. Models wrap JSON
// in code fences or preamble often enough that the array is located by its
// brackets rather than decoded from position zero.
func parseAnswer(answer string) []Suggestion {
	if raw, ok := extractJSONArray(answer); ok {
		var parsed []Suggestion
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			out := parsed[:0]
			for _, sug := range parsed {
				if strings.TrimSpace(sug.Content) == "" {
					continue
				}
				sug.Type = canonicalType(sug.Type)
				out = append(out, sug)
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	// Fallback: treat the whole answer as one note's content.
	plain := NormalizeMarkdown(answer)
	if plain == "" {
		return nil
	}
	return []Suggestion{{Type: "note", Content: plain}}
}

// extractJSONArray returns the outermost [...] span of s.
func extractJSONArray(s string) (string, bool) {
	start := strings.IndexByte(s, '[')
	end := strings.LastIndexByte(s, ']')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func canonicalType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "highlight":
		return "highlight"
	case "strikeout", "strike-out", "strikethrough":
		return "strikeout"
	default:
		return "note"
	}
}
