package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/resume-matcher/internal/advisor"
	"github.com/spigell/resume-matcher/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

type Advisor struct {
	generator      contentGenerator
	logger         *zap.Logger
	maxLogLen      int
	maxSuggestions int
}

//go:embed prompt.md
var promptTemplate string

const (
	defaultMaxLogLength   = 200
	defaultMaxSuggestions = 8
	// maxInputRunes bounds each text sent to the model.
	maxInputRunes = 20000
)

func NewAdvisor(generator contentGenerator, logger *zap.Logger, maxLogLength int) *Advisor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Advisor{
		generator:      generator,
		logger:         logger,
		maxLogLen:      maxLogLength,
		maxSuggestions: defaultMaxSuggestions,
	}
}

func (a *Advisor) Advise(ctx context.Context, in advisor.Input) (*advisor.Advice, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	prompt := buildPrompt(in)

	a.logger.Debug("gemini generate content request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, a.maxLogLen)),
	)

	raw, err := a.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	a.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, a.maxLogLen)),
	)

	advice, err := parseResponse(raw)
	if err != nil {
		return nil, err
	}

	if len(advice.Suggestions) > a.maxSuggestions {
		advice.Suggestions = advice.Suggestions[:a.maxSuggestions]
	}

	advice.Raw = raw
	return advice, nil
}

func buildPrompt(in advisor.Input) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Resume:\n{{RESUME}}\n\nJob:\n{{JOB}}\n\nScore: {{SCORE}} ({{LABEL}})\n\nJSON Response:"
	}

	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = "unknown"
	}

	replacer := strings.NewReplacer(
		"{{RESUME}}", clip(in.ResumeText),
		"{{JOB}}", clip(in.JobDescription),
		"{{SCORE}}", strconv.FormatFloat(in.Score, 'f', 3, 64),
		"{{LABEL}}", label,
	)
	return replacer.Replace(template)
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= maxInputRunes {
		return s
	}
	return string(runes[:maxInputRunes])
}

func parseResponse(raw string) (*advisor.Advice, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	advice := &advisor.Advice{
		Summary:     coerceString(data["summary"]),
		Suggestions: coerceStrings(data["suggestions"]),
	}

	if advice.Summary == "" && len(advice.Suggestions) == 0 {
		return nil, fmt.Errorf("gemini response has neither summary nor suggestions")
	}

	return advice, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

// coerceStrings accepts a list of strings or a single newline separated string.
func coerceStrings(v any) []string {
	var out []string
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, line := range strings.Split(val, "\n") {
			line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*•"))
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}
