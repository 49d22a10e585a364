// Package summary groups flat trace collections into ordered
// conversation-turn summaries.
package summary

import (
	"fmt"
	"sort"
	"time"

	"github.com/chatlens-ai/chatlens/internal/measure"
	"github.com/chatlens-ai/chatlens/internal/trace"
)

// SpanKey addresses one span within a conversation turn.
type SpanKey struct {
	TraceID string
	SpanID  string
}

// Conversation identifies the conversation a summary belongs to. Auth
// context is carried opaquely.
type Conversation struct {
	ConversationID string
	AuthContext    string
}

// Summary condenses all traces sharing a trace id into one conversation
// turn. It is derived data, recomputed on every Summarize call.
type Summary struct {
	TraceID        string
	SpanID         string
	StartedAt      time.Time
	DurationMS     *int64
	ConversationID string
	AuthContext    string
	UserInput      string
	AgentResponse  string
	Traces         []trace.Trace
	Measurements   map[SpanKey][]measure.Measurement
}

// Conversation returns the (conversation id, auth context) pair of the
// summary.
func (s Summary) Conversation() Conversation {
	return Conversation{ConversationID: s.ConversationID, AuthContext: s.AuthContext}
}

// MixedConversationError reports that one Summarize input mixed traces from
// more than one conversation. Callers must partition input by conversation
// first.
type MixedConversationError struct {
	Conversations []Conversation
}

func (e *MixedConversationError) Error() string {
	return fmt.Sprintf("traces span %d conversations, expected one", len(e.Conversations))
}

// Summarize groups traces by trace id into one Summary per conversation
// turn, ordered by start time. The input is never mutated; an empty input
// yields an empty result. All groups must resolve to the same
// (conversation id, auth context) pair or a *MixedConversationError is
// returned.
func Summarize(traces []trace.Trace) ([]Summary, error) {
	if len(traces) == 0 {
		return nil, nil
	}

	// Stable sort by start time first, then by trace id, so that members of
	// each group stay in chronological order while groups become adjacent.
	ordered := append([]trace.Trace(nil), traces...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].StartedAt.Before(ordered[j].StartedAt)
	})
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TraceID < ordered[j].TraceID
	})

	var summaries []Summary
	for start := 0; start < len(ordered); {
		end := start
		for end < len(ordered) && ordered[end].TraceID == ordered[start].TraceID {
			end++
		}
		summaries = append(summaries, summarizeGroup(ordered[start:end]))
		start = end
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].StartedAt.Before(summaries[j].StartedAt)
	})

	if err := checkSingleConversation(summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// summarizeGroup derives the turn summary for one trace id. The group is in
// chronological order; its first member is the root.
func summarizeGroup(group []trace.Trace) Summary {
	root := group[0]
	s := Summary{
		TraceID:        root.TraceID,
		SpanID:         root.SpanID,
		StartedAt:      root.StartedAt,
		ConversationID: root.StringAttr(trace.AttrConversationID),
		AuthContext:    root.StringAttr(trace.AttrAuthContext),
		Traces:         append([]trace.Trace(nil), group...),
	}

	if ms, ok := root.DurationMS(); ok {
		s.DurationMS = &ms
	}

	for _, t := range group {
		if input := t.StringAttr(trace.AttrUserInput); input != "" {
			s.UserInput = input
			break
		}
	}
	for i := len(group) - 1; i >= 0; i-- {
		if response := group[i].StringAttr(trace.AttrAgentResponse); response != "" {
			s.AgentResponse = response
			break
		}
	}
	return s
}

func checkSingleConversation(summaries []Summary) error {
	seen := make(map[Conversation]bool)
	var distinct []Conversation
	for _, s := range summaries {
		conv := s.Conversation()
		if !seen[conv] {
			seen[conv] = true
			distinct = append(distinct, conv)
		}
	}
	if len(distinct) > 1 {
		return &MixedConversationError{Conversations: distinct}
	}
	return nil
}

// AttachMeasurements fills each summary's per-span measurement map from
// byTraceSpan, preserving the order measurements were supplied in.
// Measurements keyed to an unknown trace id are dropped: they indicate an
// inconsistency upstream, not a user-facing error.
func AttachMeasurements(summaries []Summary, byTraceSpan map[SpanKey][]measure.Measurement) {
	byTraceID := make(map[string]*Summary, len(summaries))
	for i := range summaries {
		byTraceID[summaries[i].TraceID] = &summaries[i]
	}

	for key, measurements := range byTraceSpan {
		s, ok := byTraceID[key.TraceID]
		if !ok {
			continue
		}
		if s.Measurements == nil {
			s.Measurements = make(map[SpanKey][]measure.Measurement)
		}
		s.Measurements[key] = append(s.Measurements[key], measurements...)
	}
}
