// Package extract provides the generic LLM-backed fallback extractor
// used when no domain adapter is registered for a source or the
// registered adapter finds nothing on a page.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/booth-beacon/beacon-crawler/internal/model"
	"github.com/booth-beacon/beacon-crawler/pkg/anthropic"
)

// defaultMaxChars caps how much page markdown is embedded in the
// prompt.
const defaultMaxChars = 12000

const systemPrompt = `You extract photo booth locations from web page text.
Respond with only a JSON object of the form {"booths": [...]} where each
entry has the keys: name, address, city, state, country, latitude,
longitude, description, status, booth_type. Use null for unknown values.
status is one of "active", "inactive", "unknown". booth_type is one of
"analog", "digital", "chemical", "instant", "unknown". Only include
physical photo booths with at least a name and a city.`

// Extractor prompts a Claude model to pull booth candidates out of
// arbitrary page markdown.
type Extractor struct {
	client   anthropic.Client
	model    string
	maxChars int
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxChars overrides the prompt character budget.
func WithMaxChars(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxChars = n
		}
	}
}

// New creates an Extractor using the given client and model ID.
func New(client anthropic.Client, modelID string, opts ...Option) *Extractor {
	e := &Extractor{
		client:   client,
		model:    modelID,
		maxChars: defaultMaxChars,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract pulls booth candidates from one page of markdown. A
// malformed or empty model response yields an empty slice, never an
// error: extraction noise must not abort a source run. Errors are
// reserved for transport failures talking to the API.
func (e *Extractor) Extract(ctx context.Context, markdown, sourceName, sourceURL string) ([]model.CandidateRecord, error) {
	content := truncate(markdown, e.maxChars)

	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.model,
		MaxTokens: 4096,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("Source URL: %s\n\nPage content:\n\n%s", sourceURL, content)},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "extract: llm call for %s", sourceURL)
	}
	resp.Usage.LogUsage(e.model, "extract")

	raw := parseBoothJSON(resp.Text())
	records := make([]model.CandidateRecord, 0, len(raw))
	for _, obj := range raw {
		rec, ok := coerceCandidate(obj, sourceName, sourceURL)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	if len(raw) > 0 && len(records) == 0 {
		zap.L().Debug("extract: all extracted objects failed coercion",
			zap.String("source_url", sourceURL),
			zap.Int("raw_count", len(raw)),
		)
	}
	return records, nil
}

// truncate caps s at max bytes without splitting a multi-byte rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// parseBoothJSON recovers the booths array from the model output. It
// tolerates fenced code blocks and leading prose; anything it cannot
// decode is treated as zero booths.
func parseBoothJSON(text string) []map[string]any {
	text = strings.TrimSpace(text)

	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	// Slice from the first brace so leading prose doesn't break
	// decoding.
	if idx := strings.IndexAny(text, "{["); idx > 0 {
		text = text[idx:]
	}

	var wrapper struct {
		Booths []map[string]any `json:"booths"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && wrapper.Booths != nil {
		return wrapper.Booths
	}

	// Some responses are a bare array.
	var arr []map[string]any
	if err := json.Unmarshal([]byte(text), &arr); err == nil {
		return arr
	}

	return nil
}
