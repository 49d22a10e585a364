package summary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlens-ai/chatlens/internal/measure"
	"github.com/chatlens-ai/chatlens/internal/trace"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func tr(traceID, spanID string, offset time.Duration, attrs map[string]any) trace.Trace {
	if attrs == nil {
		attrs = map[string]any{}
	}
	if _, ok := attrs[trace.AttrConversationID]; !ok {
		attrs[trace.AttrConversationID] = "conv-1"
	}
	return trace.Trace{
		TraceID:    traceID,
		SpanID:     spanID,
		SpanName:   "span-" + spanID,
		StartedAt:  t0.Add(offset),
		Attributes: attrs,
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summaries, err := Summarize(nil)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestSummarizeGroupsByTraceID(t *testing.T) {
	// Interleaved on purpose: grouping must not depend on input order.
	traces := []trace.Trace{
		tr("b", "b2", 30*time.Second, nil),
		tr("a", "a1", 0, map[string]any{trace.AttrUserInput: "first question"}),
		tr("b", "b1", 20*time.Second, map[string]any{trace.AttrUserInput: "second question"}),
		tr("a", "a2", 10*time.Second, map[string]any{trace.AttrAgentResponse: "first answer"}),
	}

	summaries, err := Summarize(traces)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "a", summaries[0].TraceID)
	assert.Equal(t, "a1", summaries[0].SpanID)
	assert.Equal(t, "first question", summaries[0].UserInput)
	assert.Equal(t, "first answer", summaries[0].AgentResponse)
	require.Len(t, summaries[0].Traces, 2)
	assert.Equal(t, "a1", summaries[0].Traces[0].SpanID)
	assert.Equal(t, "a2", summaries[0].Traces[1].SpanID)

	assert.Equal(t, "b", summaries[1].TraceID)
	assert.Equal(t, "b1", summaries[1].SpanID)
	assert.Equal(t, "second question", summaries[1].UserInput)
	assert.Equal(t, "", summaries[1].AgentResponse)
}

func TestSummarizeOrdersTurnsByStartTime(t *testing.T) {
	traces := []trace.Trace{
		tr("late", "l1", time.Minute, nil),
		tr("early", "e1", 0, nil),
	}

	summaries, err := Summarize(traces)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "early", summaries[0].TraceID)
	assert.Equal(t, "late", summaries[1].TraceID)
}

func TestSummarizeFirstInputLastResponse(t *testing.T) {
	traces := []trace.Trace{
		tr("a", "a1", 0, map[string]any{trace.AttrUserInput: "keep me"}),
		tr("a", "a2", time.Second, map[string]any{
			trace.AttrUserInput:     "ignore me",
			trace.AttrAgentResponse: "draft",
		}),
		tr("a", "a3", 2*time.Second, map[string]any{trace.AttrAgentResponse: "final"}),
	}

	summaries, err := Summarize(traces)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "keep me", summaries[0].UserInput)
	assert.Equal(t, "final", summaries[0].AgentResponse)
}

func TestSummarizeSkipsEmptyValues(t *testing.T) {
	traces := []trace.Trace{
		tr("a", "a1", 0, map[string]any{trace.AttrUserInput: ""}),
		tr("a", "a2", time.Second, map[string]any{trace.AttrUserInput: "real input"}),
		tr("a", "a3", 2*time.Second, map[string]any{trace.AttrAgentResponse: "answer"}),
		tr("a", "a4", 3*time.Second, map[string]any{trace.AttrAgentResponse: ""}),
	}

	summaries, err := Summarize(traces)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "real input", summaries[0].UserInput)
	assert.Equal(t, "answer", summaries[0].AgentResponse)
}

func TestSummarizeDuration(t *testing.T) {
	ended := t0.Add(1500 * time.Millisecond)
	root := tr("a", "a1", 0, nil)
	root.EndedAt = &ended

	summaries, err := Summarize([]trace.Trace{root, tr("a", "a2", time.Second, nil)})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.NotNil(t, summaries[0].DurationMS)
	assert.Equal(t, int64(1500), *summaries[0].DurationMS)
}

func TestSummarizeDurationUnknownWhileInFlight(t *testing.T) {
	summaries, err := Summarize([]trace.Trace{tr("a", "a1", 0, nil)})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Nil(t, summaries[0].DurationMS)
}

func TestSummarizeMixedConversations(t *testing.T) {
	traces := []trace.Trace{
		tr("a", "a1", 0, map[string]any{trace.AttrConversationID: "conv-1"}),
		tr("b", "b1", time.Second, map[string]any{trace.AttrConversationID: "conv-2"}),
	}

	_, err := Summarize(traces)
	var mixed *MixedConversationError
	require.ErrorAs(t, err, &mixed)
	assert.Len(t, mixed.Conversations, 2)
}

func TestSummarizeMixedAuthContext(t *testing.T) {
	// Same conversation id but different auth contexts is still mixed.
	traces := []trace.Trace{
		tr("a", "a1", 0, map[string]any{trace.AttrAuthContext: "tenant-a"}),
		tr("b", "b1", time.Second, map[string]any{trace.AttrAuthContext: "tenant-b"}),
	}

	_, err := Summarize(traces)
	var mixed *MixedConversationError
	require.ErrorAs(t, err, &mixed)
}

func TestSummarizeDoesNotMutateInput(t *testing.T) {
	traces := []trace.Trace{
		tr("b", "b1", time.Minute, nil),
		tr("a", "a1", 0, nil),
	}

	_, err := Summarize(traces)
	require.NoError(t, err)
	assert.Equal(t, "b", traces[0].TraceID)
	assert.Equal(t, "a", traces[1].TraceID)
}

func TestAttachMeasurements(t *testing.T) {
	summaries, err := Summarize([]trace.Trace{
		tr("a", "a1", 0, nil),
		tr("a", "a2", time.Second, nil),
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	m1 := measure.Measurement{Name: "latency", Value: 10}
	m2 := measure.Measurement{Name: "accuracy", Value: 0.8}
	AttachMeasurements(summaries, map[SpanKey][]measure.Measurement{
		{TraceID: "a", SpanID: "a2"}:       {m1, m2},
		{TraceID: "unknown", SpanID: "x1"}: {{Name: "dropped"}},
	})

	got := summaries[0].Measurements[SpanKey{TraceID: "a", SpanID: "a2"}]
	require.Len(t, got, 2)
	assert.Equal(t, "latency", got[0].Name)
	assert.Equal(t, "accuracy", got[1].Name)

	for key := range summaries[0].Measurements {
		assert.NotEqual(t, "unknown", key.TraceID)
	}
}
