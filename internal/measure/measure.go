package measure

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/chatlens-ai/chatlens/internal/trace"
)

// Unit qualifies a measurement value. UnitNone marks dimensionless values
// and is never rendered.
type Unit string

const (
	UnitNone         Unit = "none"
	UnitMilliseconds Unit = "milliseconds"
	UnitSeconds      Unit = "seconds"
	UnitCount        Unit = "count"
	UnitTokens       Unit = "tokens"
)

// Measurement is a named metric attached to a trace or to a whole
// conversation by an external evaluation run. ValidationPassed is tri-state:
// nil means the measurement was not validated at all.
type Measurement struct {
	Name             string            `json:"name"`
	Value            any               `json:"value"`
	Unit             Unit              `json:"unit,omitempty"`
	Dimensions       map[string]string `json:"dimensions,omitempty"`
	AdditionalInfo   any               `json:"additional_info,omitempty"`
	ValidationPassed *bool             `json:"validation_passed,omitempty"`
}

// Failed reports whether the measurement was validated and did not pass.
func (m Measurement) Failed() bool {
	return m.ValidationPassed != nil && !*m.ValidationPassed
}

// TraceMeasurements pairs one trace with the measurements recorded against
// its span.
type TraceMeasurements struct {
	Trace        trace.Trace   `json:"trace"`
	Measurements []Measurement `json:"measurements,omitempty"`
}

// ConversationMeasurements holds everything an evaluation run produced for
// one conversation: the traces (each with its span-level measurements) plus
// conversation-level measurements. Case/permutation/run numbers identify the
// evaluation matrix cell that produced the conversation.
type ConversationMeasurements struct {
	ConversationID string              `json:"conversation_id"`
	AuthContext    string              `json:"auth_context,omitempty"`
	CaseName       string              `json:"case_name,omitempty"`
	CaseNr         *int                `json:"case_nr,omitempty"`
	PermutationNr  *int                `json:"permutation_nr,omitempty"`
	RunNr          *int                `json:"run_nr,omitempty"`
	Traces         []TraceMeasurements `json:"traces"`
	Measurements   []Measurement       `json:"measurements,omitempty"`
}

// MeasurementCount counts conversation-level and span-level measurements.
func (c ConversationMeasurements) MeasurementCount() int {
	n := len(c.Measurements)
	for _, tm := range c.Traces {
		n += len(tm.Measurements)
	}
	return n
}

// ValidationOK reports whether no measurement anywhere in the conversation
// failed validation.
func (c ConversationMeasurements) ValidationOK() bool {
	for _, m := range c.Measurements {
		if m.Failed() {
			return false
		}
	}
	for _, tm := range c.Traces {
		for _, m := range tm.Measurements {
			if m.Failed() {
				return false
			}
		}
	}
	return true
}

// Load reads conversation measurements from a file: a JSON array, a single
// JSON object, or JSONL with one conversation per line.
func Load(path string) ([]ConversationMeasurements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read measurements: %w", err)
	}

	if strings.HasSuffix(path, ".jsonl") {
		var out []ConversationMeasurements
		scanner := bufio.NewScanner(strings.NewReader(string(data)))
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var cm ConversationMeasurements
			if err := json.Unmarshal([]byte(line), &cm); err != nil {
				return nil, fmt.Errorf("parse measurements: %w", err)
			}
			out = append(out, cm)
		}
		return out, scanner.Err()
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var cm ConversationMeasurements
		if err := json.Unmarshal(data, &cm); err != nil {
			return nil, fmt.Errorf("parse measurements: %w", err)
		}
		return []ConversationMeasurements{cm}, nil
	}

	var out []ConversationMeasurements
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse measurements: %w", err)
	}
	return out, nil
}

// Sort orders conversations by case nr, permutation nr, run nr and first
// trace start time. Unset numbers sort first.
func Sort(items []ConversationMeasurements) {
	sort.SliceStable(items, func(i, j int) bool {
		if c := compareIntPtr(items[i].CaseNr, items[j].CaseNr); c != 0 {
			return c < 0
		}
		if c := compareIntPtr(items[i].PermutationNr, items[j].PermutationNr); c != 0 {
			return c < 0
		}
		if c := compareIntPtr(items[i].RunNr, items[j].RunNr); c != 0 {
			return c < 0
		}
		return firstStart(items[i]).Before(firstStart(items[j]))
	})
}

func compareIntPtr(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	case *a < *b:
		return -1
	case *a > *b:
		return 1
	default:
		return 0
	}
}

func firstStart(c ConversationMeasurements) time.Time {
	if len(c.Traces) > 0 {
		return c.Traces[0].Trace.StartedAt
	}
	return time.Time{}
}
