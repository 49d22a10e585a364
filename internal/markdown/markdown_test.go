package markdown

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatlens-ai/chatlens/internal/measure"
	"github.com/chatlens-ai/chatlens/internal/trace"
)

func toolTrace(attrs map[string]any) trace.Trace {
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs[trace.AttrTraceType] = trace.TypeToolInvocation
	return trace.Trace{
		TraceID:    "t1",
		SpanID:     "s1",
		SpanName:   "get_weather",
		StartedAt:  time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Attributes: attrs,
	}
}

func TestRenderToolInvocationMissingInput(t *testing.T) {
	_, err := RenderToolInvocation(toolTrace(nil))
	require.Error(t, err)

	var missing *MissingAttributeError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, trace.AttrToolInput, missing.Key)
}

func TestRenderToolInvocationSections(t *testing.T) {
	out, err := RenderToolInvocation(toolTrace(map[string]any{
		trace.AttrToolInput:  map[string]any{"city": "Berlin"},
		trace.AttrToolOutput: map[string]any{"temp": 21},
	}))
	require.NoError(t, err)

	assert.Contains(t, out, "##### Input\n\n~~~json\n")
	assert.Contains(t, out, `"city": "Berlin"`)
	assert.Contains(t, out, "##### Output\n\n~~~json\n")
	assert.Contains(t, out, `"temp": 21`)
	assert.NotContains(t, out, "##### Error")
	assert.NotContains(t, out, "##### Other attributes")
}

func TestRenderToolInvocationScalarOutput(t *testing.T) {
	out, err := RenderToolInvocation(toolTrace(map[string]any{
		trace.AttrToolInput:  map[string]any{},
		trace.AttrToolOutput: "sunny",
	}))
	require.NoError(t, err)

	assert.Contains(t, out, "##### Output\n\n~~~\nsunny\n~~~\n")
}

func TestRenderToolInvocationPrefersTraceback(t *testing.T) {
	out, err := RenderToolInvocation(toolTrace(map[string]any{
		trace.AttrToolInput:          map[string]any{},
		trace.AttrToolError:          "boom",
		trace.AttrToolErrorTraceback: "Traceback: line 1",
	}))
	require.NoError(t, err)

	assert.Contains(t, out, "##### Error\n\n~~~\nTraceback: line 1\n~~~\n")
	assert.NotContains(t, out, "~~~\nboom\n~~~")
}

func TestRenderToolInvocationErrorWithoutTraceback(t *testing.T) {
	out, err := RenderToolInvocation(toolTrace(map[string]any{
		trace.AttrToolInput: map[string]any{},
		trace.AttrToolError: "boom",
	}))
	require.NoError(t, err)

	assert.Contains(t, out, "##### Error\n\n~~~\nboom\n~~~\n")
}

func TestRenderToolInvocationExcludesRoutingAttrs(t *testing.T) {
	out, err := RenderToolInvocation(toolTrace(map[string]any{
		trace.AttrToolInput:      map[string]any{},
		trace.AttrConversationID: "conv-1",
		trace.AttrAuthContext:    "tenant-a",
		trace.AttrPeerService:    "weather",
	}))
	require.NoError(t, err)

	assert.NotContains(t, out, "##### Other attributes")
	assert.NotContains(t, out, "conv-1")
	assert.NotContains(t, out, "tenant-a")
}

func TestRenderToolInvocationOtherAttributes(t *testing.T) {
	out, err := RenderToolInvocation(toolTrace(map[string]any{
		trace.AttrToolInput: map[string]any{},
		"custom.key":        "custom-value",
	}))
	require.NoError(t, err)

	assert.Contains(t, out, "##### Other attributes")
	assert.Contains(t, out, `"custom.key": "custom-value"`)
}

func TestRenderToolInvocationEscapesOutsideFences(t *testing.T) {
	out, err := RenderToolInvocation(toolTrace(map[string]any{
		trace.AttrToolInput: map[string]any{"html": "<script>"},
	}))
	require.NoError(t, err)

	// Inside the tilde fence the value stays verbatim.
	assert.Contains(t, out, `"html": "<script>"`)
	assert.NotContains(t, out, "&lt;script&gt;")
}

func llmTrace(attrs map[string]any) trace.Trace {
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrs[trace.AttrTraceType] = trace.TypeLLMInvocation
	return trace.Trace{
		TraceID:    "t1",
		SpanID:     "s2",
		SpanName:   "invoke_model",
		StartedAt:  time.Date(2026, 8, 1, 12, 0, 1, 0, time.UTC),
		Attributes: attrs,
	}
}

func TestRenderLLMInvocationMissingMandatory(t *testing.T) {
	var missing *MissingAttributeError

	_, err := RenderLLMInvocation(llmTrace(nil))
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, trace.AttrLLMRequestMessages, missing.Key)

	_, err = RenderLLMInvocation(llmTrace(map[string]any{
		trace.AttrLLMRequestMessages: []any{},
	}))
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, trace.AttrLLMRequestModelID, missing.Key)
}

func TestRenderLLMInvocationWithoutOutput(t *testing.T) {
	out, err := RenderLLMInvocation(llmTrace(map[string]any{
		trace.AttrLLMRequestMessages: []any{map[string]any{"role": "user", "content": "hi"}},
		trace.AttrLLMRequestModelID:  "gpt-4o",
	}))
	require.NoError(t, err)

	assert.Contains(t, out, "**Model ID**\ngpt-4o\n")
	assert.Contains(t, out, "**Inference Config**\n-\n")
	assert.Contains(t, out, "**System Prompt**\n-\n")
	assert.Contains(t, out, "**Messages**\n")
	assert.NotContains(t, out, "**Output**")
	assert.NotContains(t, out, "**Stop Reason**")
	assert.NotContains(t, out, "**Error**")
}

func TestRenderLLMInvocationWithOutput(t *testing.T) {
	out, err := RenderLLMInvocation(llmTrace(map[string]any{
		trace.AttrLLMRequestMessages:    []any{map[string]any{"role": "user", "content": "hi"}},
		trace.AttrLLMRequestModelID:     "claude-sonnet",
		trace.AttrLLMResponseOutput:     map[string]any{"text": "hello"},
		trace.AttrLLMResponseStopReason: "end_turn",
		trace.AttrLLMResponseUsage:      map[string]any{"input_tokens": 3},
	}))
	require.NoError(t, err)

	assert.Contains(t, out, "**Output**")
	assert.Contains(t, out, "**Stop Reason**\nend_turn\n")
	assert.Contains(t, out, "**Usage**")
	assert.Contains(t, out, "**Metrics**\n-\n")
}

func TestRenderLLMInvocationErrorFirst(t *testing.T) {
	out, err := RenderLLMInvocation(llmTrace(map[string]any{
		trace.AttrLLMRequestMessages: []any{},
		trace.AttrLLMRequestModelID:  "gpt-4o",
		trace.AttrLLMResponseError:   "rate limited",
	}))
	require.NoError(t, err)

	assert.Contains(t, out, "**Error**\nrate limited\n")
	assert.Less(t, strings.Index(out, "**Error**"), strings.Index(out, "**Model ID**"))
}

func TestRenderGeneric(t *testing.T) {
	out := RenderGeneric(trace.Trace{
		SpanKind: "INTERNAL",
		Attributes: map[string]any{
			trace.AttrTraceType: "retrieval",
			"index.name":        "docs",
		},
	})

	assert.Contains(t, out, "**Trace type**\nretrieval\n")
	assert.Contains(t, out, "**Span kind**\nINTERNAL\n")
	// The attribute dump is unfenced, so its quotes are escaped.
	assert.Contains(t, out, "&#34;index.name&#34;: &#34;docs&#34;")
}

func TestRenderMeasurementUnits(t *testing.T) {
	out := RenderMeasurement(measure.Measurement{Name: "latency", Value: 120, Unit: measure.UnitMilliseconds})
	assert.Contains(t, out, "**latency**\n120 (milliseconds)\n")

	out = RenderMeasurement(measure.Measurement{Name: "score", Value: 0.9, Unit: measure.UnitNone})
	assert.Contains(t, out, "**score**\n0.9\n")
	assert.NotContains(t, out, "(none)")

	out = RenderMeasurement(measure.Measurement{Name: "score", Value: 0.9})
	assert.NotContains(t, out, "(")
}

func TestRenderMeasurementExtras(t *testing.T) {
	out := RenderMeasurement(measure.Measurement{
		Name:           "helpfulness",
		Value:          4,
		Unit:           measure.UnitCount,
		Dimensions:     map[string]string{"judge": "gpt-4o"},
		AdditionalInfo: map[string]any{"rationale": "clear answer"},
	})

	assert.Contains(t, out, "**helpfulness**\n4 (count)\n")
	assert.Contains(t, out, "**Additional Info**")
	assert.Contains(t, out, "&#34;rationale&#34;: &#34;clear answer&#34;")
	assert.Contains(t, out, "**Dimensions**")
	assert.Contains(t, out, "&#34;judge&#34;: &#34;gpt-4o&#34;")
}
