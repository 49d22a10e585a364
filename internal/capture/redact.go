package capture

import (
	"regexp"
	"strings"

	"github.com/chatlens-ai/chatlens/internal/config"
	"github.com/chatlens-ai/chatlens/internal/trace"
)

// AttrRedactionApplied lists the redaction pattern names that matched a
// trace, in match order.
const AttrRedactionApplied = "ai.redaction.applied"

// Attributes whose string values are scrubbed before a trace is stored.
var redactedAttrs = []string{
	trace.AttrUserInput,
	trace.AttrAgentResponse,
	trace.AttrLLMRequestSystem,
	trace.AttrLLMResponseOutput,
}

type Redactor struct {
	patterns []compiledPattern
}

type compiledPattern struct {
	name        string
	regex       *regexp.Regexp
	replaceWith string
}

// NewRedactor compiles the configured preset and custom patterns. A nil
// redactor is valid and applies nothing.
func NewRedactor(cfg config.RedactConfig) (*Redactor, error) {
	if cfg.Enabled != nil && !*cfg.Enabled {
		return nil, nil
	}
	all := append(PresetPatterns(cfg.Presets), cfg.Patterns...)
	var patterns []compiledPattern
	for _, pattern := range all {
		re, err := regexp.Compile(pattern.Regex)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, compiledPattern{
			name:        pattern.Name,
			regex:       re,
			replaceWith: pattern.ReplaceWith,
		})
	}
	return &Redactor{patterns: patterns}, nil
}

// Apply scrubs the trace's textual attributes and message contents in place,
// records the matched pattern names on the trace, and returns them.
func (r *Redactor) Apply(t *trace.Trace) []string {
	if r == nil || t == nil {
		return nil
	}
	var applied []string
	for _, key := range redactedAttrs {
		value, ok := t.Attributes[key].(string)
		if !ok {
			continue
		}
		scrubbed, matched := applyPatterns(value, r.patterns)
		if len(matched) > 0 {
			t.Attributes[key] = scrubbed
			applied = append(applied, matched...)
		}
	}
	if messages, ok := t.Attributes[trace.AttrLLMRequestMessages].([]any); ok {
		for _, raw := range messages {
			msg, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			content, ok := msg["content"].(string)
			if !ok {
				continue
			}
			scrubbed, matched := applyPatterns(content, r.patterns)
			if len(matched) > 0 {
				msg["content"] = scrubbed
				applied = append(applied, matched...)
			}
		}
	}
	applied = unique(applied)
	if len(applied) > 0 {
		t.Attributes[AttrRedactionApplied] = applied
	}
	return applied
}

func applyPatterns(input string, patterns []compiledPattern) (string, []string) {
	if input == "" {
		return input, nil
	}
	var matched []string
	output := input
	for _, pattern := range patterns {
		if pattern.regex.MatchString(output) {
			output = pattern.regex.ReplaceAllString(output, pattern.replaceWith)
			matched = append(matched, pattern.name)
		}
	}
	return output, matched
}

func unique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool)
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// PresetPatterns expands a preset name into its redaction patterns.
func PresetPatterns(presets []string) []config.RedactPattern {
	var patterns []config.RedactPattern
	for _, preset := range presets {
		switch strings.ToLower(preset) {
		case "pii_basic":
			patterns = append(patterns,
				config.RedactPattern{Name: "email", Regex: `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`, ReplaceWith: "[REDACTED_EMAIL]"},
				config.RedactPattern{Name: "phone", Regex: `\+?\d[\d\s().-]{7,}\d`, ReplaceWith: "[REDACTED_PHONE]"},
			)
		case "pii_strict":
			patterns = append(patterns,
				config.RedactPattern{Name: "email", Regex: `[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`, ReplaceWith: "[REDACTED_EMAIL]"},
				config.RedactPattern{Name: "phone", Regex: `\+?\d[\d\s().-]{7,}\d`, ReplaceWith: "[REDACTED_PHONE]"},
				config.RedactPattern{Name: "ssn", Regex: `\b\d{3}-\d{2}-\d{4}\b`, ReplaceWith: "[REDACTED_SSN]"},
			)
		case "secrets":
			patterns = append(patterns,
				config.RedactPattern{Name: "api_key", Regex: `(?i)(api[-_ ]?key|secret|token)[^\n\r]*`, ReplaceWith: "[REDACTED_SECRET]"},
			)
		}
	}
	return patterns
}
