// Package markdown formats traces and measurements into markdown with HTML
// neutralized outside code fences.
package markdown

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chatlens-ai/chatlens/internal/measure"
	"github.com/chatlens-ai/chatlens/internal/trace"
	"github.com/chatlens-ai/chatlens/internal/util"
)

// MissingAttributeError reports that a trace lacks an attribute the renderer
// cannot do without, which means the producing system emitted a malformed
// trace.
type MissingAttributeError struct {
	Key string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("trace attribute %q is required", e.Key)
}

// Routing metadata, never shown in attribute dumps.
var excludedAttrs = map[string]bool{
	trace.AttrConversationID: true,
	trace.AttrTraceType:      true,
	trace.AttrAuthContext:    true,
	trace.AttrPeerService:    true,
}

// RenderToolInvocation formats a tool-invocation trace. The tool input
// attribute is mandatory; output, error and traceback are optional.
func RenderToolInvocation(t trace.Trace) (string, error) {
	input, ok := t.Attr(trace.AttrToolInput)
	if !ok {
		return "", &MissingAttributeError{Key: trace.AttrToolInput}
	}
	output, hasOutput := t.Attr(trace.AttrToolOutput)
	errValue, hasError := t.Attr(trace.AttrToolError)
	traceback, hasTraceback := t.Attr(trace.AttrToolErrorTraceback)

	var b strings.Builder
	fmt.Fprintf(&b, "##### Input\n\n~~~json\n%s\n~~~\n", util.Dump(input))

	if hasOutput && output != nil {
		b.WriteString("\n##### Output\n\n")
		if isScalar(output) {
			fmt.Fprintf(&b, "~~~\n%v\n~~~\n", output)
		} else {
			fmt.Fprintf(&b, "~~~json\n%s\n~~~\n", util.Dump(output))
		}
	}

	if (hasTraceback && traceback != nil) || (hasError && errValue != nil) {
		errText := fmt.Sprint(errValue)
		if hasTraceback && traceback != nil {
			errText = fmt.Sprint(traceback)
		}
		fmt.Fprintf(&b, "\n##### Error\n\n~~~\n%s\n~~~\n", errText)
	}

	if rest := remainingAttrs(t, trace.AttrToolInput, trace.AttrToolOutput,
		trace.AttrToolError, trace.AttrToolErrorTraceback); len(rest) > 0 {
		fmt.Fprintf(&b, "\n##### Other attributes\n\n~~~json\n%s\n~~~\n", util.Dump(rest))
	}

	return EscapeHTMLExceptCode(b.String(), FenceTilde), nil
}

// RenderLLMInvocation formats a model-invocation trace. Request messages and
// model id are mandatory; the response sections appear only when an output
// was recorded.
func RenderLLMInvocation(t trace.Trace) (string, error) {
	messages, ok := t.Attr(trace.AttrLLMRequestMessages)
	if !ok {
		return "", &MissingAttributeError{Key: trace.AttrLLMRequestMessages}
	}
	modelID, ok := t.Attr(trace.AttrLLMRequestModelID)
	if !ok {
		return "", &MissingAttributeError{Key: trace.AttrLLMRequestModelID}
	}

	var b strings.Builder
	if errValue, ok := t.Attr(trace.AttrLLMResponseError); ok && errValue != nil {
		fmt.Fprintf(&b, "**Error**\n%s\n\n", formatValue(errValue))
	}

	fmt.Fprintf(&b, "**Inference Config**\n%s\n\n", formatValue(attrOrNil(t, trace.AttrLLMRequestInferenceConfig)))
	fmt.Fprintf(&b, "**Model ID**\n%s\n\n", formatValue(modelID))
	fmt.Fprintf(&b, "**System Prompt**\n%s\n\n", formatValue(attrOrNil(t, trace.AttrLLMRequestSystem)))
	fmt.Fprintf(&b, "**Tool Config**\n%s\n\n", formatValue(attrOrNil(t, trace.AttrLLMRequestToolConfig)))
	fmt.Fprintf(&b, "**Messages**\n%s\n", formatValue(messages))

	if output, ok := t.Attr(trace.AttrLLMResponseOutput); ok && output != nil {
		fmt.Fprintf(&b, "\n**Output**\n%s\n\n", formatValue(output))
		fmt.Fprintf(&b, "**Stop Reason**\n%s\n\n", formatValue(attrOrNil(t, trace.AttrLLMResponseStopReason)))
		fmt.Fprintf(&b, "**Usage**\n%s\n\n", formatValue(attrOrNil(t, trace.AttrLLMResponseUsage)))
		fmt.Fprintf(&b, "**Metrics**\n%s\n", formatValue(attrOrNil(t, trace.AttrLLMResponseMetrics)))
	}

	if rest := remainingAttrs(t,
		trace.AttrLLMRequestMessages, trace.AttrLLMRequestModelID,
		trace.AttrLLMRequestSystem, trace.AttrLLMRequestToolConfig,
		trace.AttrLLMRequestInferenceConfig, trace.AttrLLMResponseOutput,
		trace.AttrLLMResponseError, trace.AttrLLMResponseStopReason,
		trace.AttrLLMResponseUsage, trace.AttrLLMResponseMetrics); len(rest) > 0 {
		fmt.Fprintf(&b, "\n**Attributes**\n%s\n", util.Dump(rest))
	}

	return EscapeHTMLExceptCode(b.String(), FenceTilde), nil
}

// RenderGeneric formats any other trace: type, span kind and the attribute
// dump.
func RenderGeneric(t trace.Trace) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Trace type**\n%s\n\n", formatValue(attrOrNil(t, trace.AttrTraceType)))
	fmt.Fprintf(&b, "**Span kind**\n%s\n\n", formatValue(t.SpanKind))
	fmt.Fprintf(&b, "**Attributes**\n%s\n", util.Dump(remainingAttrs(t)))
	return EscapeHTMLExceptCode(b.String(), FenceTilde)
}

// RenderMeasurement formats a measurement: name and value, with the unit in
// parentheses unless it is the none unit.
func RenderMeasurement(m measure.Measurement) string {
	var b strings.Builder
	value := formatValue(m.Value)
	if m.Unit != "" && m.Unit != measure.UnitNone {
		value = fmt.Sprintf("%s (%s)", value, m.Unit)
	}
	fmt.Fprintf(&b, "**%s**\n%s\n", m.Name, value)

	if m.AdditionalInfo != nil {
		fmt.Fprintf(&b, "\n**Additional Info**\n%s\n", util.Dump(m.AdditionalInfo))
	}
	if len(m.Dimensions) > 0 {
		fmt.Fprintf(&b, "\n**Dimensions**\n%s\n", util.Dump(m.Dimensions))
	}

	return EscapeHTMLExceptCode(b.String(), FenceTilde)
}

// remainingAttrs copies the trace attributes minus the exclusion set and any
// extra keys already rendered elsewhere.
func remainingAttrs(t trace.Trace, consumed ...string) map[string]any {
	skip := make(map[string]bool, len(consumed))
	for _, key := range consumed {
		skip[key] = true
	}
	rest := make(map[string]any)
	for key, value := range t.Attributes {
		if excludedAttrs[key] || skip[key] {
			continue
		}
		rest[key] = value
	}
	return rest
}

func attrOrNil(t trace.Trace, key string) any {
	v, _ := t.Attr(key)
	return v
}

// formatValue renders scalars plainly and structured values as a canonical
// dump. Absent values show as a dash.
func formatValue(v any) string {
	if v == nil {
		return "-"
	}
	if s, ok := v.(string); ok {
		return s
	}
	if isScalar(v) {
		return fmt.Sprint(v)
	}
	return util.Dump(v)
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		return true
	default:
		return false
	}
}
