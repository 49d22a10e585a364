// Package transcript assembles trace summaries into chat-style message
// sequences for a markdown-aware rendering surface.
package transcript

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chatlens-ai/chatlens/internal/markdown"
	"github.com/chatlens-ai/chatlens/internal/measure"
	"github.com/chatlens-ai/chatlens/internal/summary"
	"github.com/chatlens-ai/chatlens/internal/trace"
)

// Visibility controls which traces appear between the user and assistant
// messages of a turn.
type Visibility string

const (
	ShowConversationOnly Visibility = "conversation"
	ShowCore             Visibility = "core"
	ShowAll              Visibility = "all"
)

// ParseVisibility maps a CLI flag value to a Visibility.
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(strings.ToLower(s)) {
	case ShowConversationOnly:
		return ShowConversationOnly, nil
	case ShowCore:
		return ShowCore, nil
	case ShowAll:
		return ShowAll, nil
	}
	return "", fmt.Errorf("invalid visibility %q (must be conversation, core or all)", s)
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const StatusDone = "done"

// Meta carries display metadata for one message. A zero DurationSec means
// the duration is unknown; an empty Status means in flight or failed.
type Meta struct {
	Title       string
	ID          string
	ParentID    string
	Status      string
	DurationSec float64
}

// Message is one entry of a rendered transcript. Content is markdown with
// HTML already neutralized outside code fences.
type Message struct {
	Role    string
	Content string
	Meta    Meta
}

// Options configures transcript assembly.
type Options struct {
	Show                Visibility
	IncludeMeasurements bool
}

// FromTraces summarizes traces and assembles the full transcript. It returns
// the conversation id and auth context shared by all turns. Empty input
// yields an empty transcript.
func FromTraces(traces []trace.Trace, opt Options) (string, string, []Message, error) {
	summaries, err := summary.Summarize(traces)
	if err != nil {
		return "", "", nil, err
	}
	if len(summaries) == 0 {
		return "", "", nil, nil
	}

	var messages []Message
	for _, s := range summaries {
		turn, err := FromSummary(s, opt)
		if err != nil {
			return "", "", nil, err
		}
		messages = append(messages, turn...)
	}
	return summaries[0].ConversationID, summaries[0].AuthContext, messages, nil
}

// FromConversationMeasurements assembles the transcript of one evaluated
// conversation, attaching span-level measurements to their traces and
// conversation-level measurements after the final turn.
func FromConversationMeasurements(cm measure.ConversationMeasurements, opt Options) (string, string, []Message, error) {
	traces := make([]trace.Trace, 0, len(cm.Traces))
	byTraceSpan := make(map[summary.SpanKey][]measure.Measurement, len(cm.Traces))
	for _, tm := range cm.Traces {
		traces = append(traces, tm.Trace)
		if len(tm.Measurements) > 0 {
			key := summary.SpanKey{TraceID: tm.Trace.TraceID, SpanID: tm.Trace.SpanID}
			byTraceSpan[key] = append(byTraceSpan[key], tm.Measurements...)
		}
	}

	summaries, err := summary.Summarize(traces)
	if err != nil {
		return "", "", nil, err
	}
	if len(summaries) == 0 {
		return "", "", nil, nil
	}
	summary.AttachMeasurements(summaries, byTraceSpan)

	var messages []Message
	for _, s := range summaries {
		turn, err := FromSummary(s, opt)
		if err != nil {
			return "", "", nil, err
		}
		messages = append(messages, turn...)
	}

	if opt.IncludeMeasurements {
		last := summaries[len(summaries)-1]
		for _, m := range cm.Measurements {
			messages = append(messages, measurementMessage(m, last.SpanID))
		}
	}
	return summaries[0].ConversationID, summaries[0].AuthContext, messages, nil
}

// FromSummary renders one conversation turn: the user message, the member
// trace messages allowed by the visibility mode, and the assistant message.
func FromSummary(s summary.Summary, opt Options) ([]Message, error) {
	var durationSec float64
	if s.DurationMS != nil {
		durationSec = float64(*s.DurationMS) / 1000
	}

	messages := []Message{{
		Role:    RoleUser,
		Content: markdown.EscapeHTMLExceptCode(s.UserInput, markdown.FenceBacktick),
		Meta:    Meta{Title: "User", DurationSec: durationSec},
	}}

	if opt.Show != ShowConversationOnly {
		for _, t := range s.Traces {
			msg, ok, err := traceMessage(t, opt.Show)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			messages = append(messages, msg)

			if !opt.IncludeMeasurements {
				continue
			}
			key := summary.SpanKey{TraceID: t.TraceID, SpanID: t.SpanID}
			for _, m := range s.Measurements[key] {
				messages = append(messages, measurementMessage(m, t.SpanID))
			}
		}
	}

	messages = append(messages, Message{
		Role:    RoleAssistant,
		Content: markdown.EscapeHTMLExceptCode(s.AgentResponse, markdown.FenceBacktick),
		Meta:    Meta{Title: "Assistant", ID: s.SpanID, DurationSec: durationSec},
	})
	return messages, nil
}

// traceMessage renders one member trace. The second return is false when the
// visibility mode filters the trace out.
func traceMessage(t trace.Trace, show Visibility) (Message, bool, error) {
	meta := Meta{
		Title:  t.SpanName,
		ID:     t.SpanID,
		Status: StatusDone,
	}
	if peer := t.StringAttr(trace.AttrPeerService); peer != "" {
		meta.Title = peer
	}
	if sec, ok := t.DurationMS(); ok {
		meta.DurationSec = float64(sec) / 1000
	}
	if _, ok := t.Attr(trace.AttrExceptionMessage); ok {
		meta.Status = ""
	}

	switch t.Type() {
	case trace.TypeToolInvocation:
		meta.Title += toolTitleSuffix(t)
		if _, ok := t.Attr(trace.AttrToolError); ok {
			meta.Status = ""
		}
		content, err := markdown.RenderToolInvocation(t)
		if err != nil {
			return Message{}, false, err
		}
		return Message{Role: RoleAssistant, Content: content, Meta: meta}, true, nil

	case trace.TypeLLMInvocation:
		if _, ok := t.Attr(trace.AttrLLMResponseError); ok {
			meta.Status = ""
		}
		content, err := markdown.RenderLLMInvocation(t)
		if err != nil {
			return Message{}, false, err
		}
		return Message{Role: RoleAssistant, Content: content, Meta: meta}, true, nil

	default:
		if show != ShowAll {
			return Message{}, false, nil
		}
		return Message{Role: RoleAssistant, Content: markdown.RenderGeneric(t), Meta: meta}, true, nil
	}
}

func measurementMessage(m measure.Measurement, parentID string) Message {
	title := "Measurement: " + m.Name
	if m.Failed() {
		title += " [NOK]"
	}
	meta := Meta{Title: title, ParentID: parentID}
	if !m.Failed() {
		meta.Status = StatusDone
	}
	return Message{Role: RoleAssistant, Content: markdown.RenderMeasurement(m), Meta: meta}
}

// toolTitleSuffix summarizes the tool input as " [k=v ...]", truncated to
// 300 runes.
func toolTitleSuffix(t trace.Trace) string {
	input, _ := t.Attr(trace.AttrToolInput)
	args, ok := input.(map[string]any)
	if !ok {
		return ""
	}

	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+displayValue(args[key]))
	}
	joined := strings.Join(parts, " ")
	if runes := []rune(joined); len(runes) > 300 {
		joined = string(runes[:297]) + "..."
	}
	return " [" + joined + "]"
}

// displayValue quotes strings, turning http(s) URLs into links that open in
// a new tab.
func displayValue(v any) string {
	if s, ok := v.(string); ok {
		if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
			return fmt.Sprintf("<a href=%s target='_blank' rel='noopener noreferrer'>%s</a>", s, s)
		}
		return strconv.Quote(s)
	}
	return fmt.Sprint(v)
}
