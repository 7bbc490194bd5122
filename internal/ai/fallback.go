package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// fallbackGenerator wraps two Generator implementations. It calls the primary
// first; if that returns an error it logs the failure and tries the secondary.
// This gives you DeepSeek as the default with Anthropic as the safety net
// (or vice versa — the choice is made in main.go).
type fallbackGenerator struct {
	primary   Generator
	secondary Generator
	logger    *slog.Logger
}

// NewFallbackGenerator returns a Generator that calls primary and, on
// failure, falls back to secondary. Either argument may be nil — if primary
// is nil it goes straight to secondary; if secondary is nil and primary
// fails, the primary error is returned directly.
func NewFallbackGenerator(primary, secondary Generator, logger *slog.Logger) Generator {
	return &fallbackGenerator{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

// Generate tries the primary Generator. If it fails and a secondary is
// configured, it logs the primary error and tries the secondary.
func (f *fallbackGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if f.primary != nil {
		text, err := f.primary.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		fallbacks.Inc()
		f.logger.Warn("ai: primary generator failed, trying secondary",
			"error", err,
			"prompt_len", len(req.Prompt),
		)
		if f.secondary == nil {
			return "", fmt.Errorf("ai: primary failed and no secondary configured: %w", err)
		}
	}

	return f.secondary.Generate(ctx, req)
}

// StripFences removes accidental markdown code fences from a model response
// so the JSON inside can be parsed without regex heuristics. Safe to call on
// responses that have no fences.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
