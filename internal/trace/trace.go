package trace

import (
	"fmt"
	"time"
)

// Attribute keys shared between the capture pipeline and the renderers.
// Traces produced by external agent runtimes are expected to use the same
// keys.
const (
	AttrConversationID   = "ai.conversation.id"
	AttrTraceType        = "ai.trace.type"
	AttrAuthContext      = "ai.auth.context"
	AttrPeerService      = "peer.service"
	AttrUserInput        = "ai.user.input"
	AttrAgentResponse    = "ai.agent.response"
	AttrExceptionMessage = "exception.message"

	AttrToolInput          = "ai.tool.input"
	AttrToolOutput         = "ai.tool.output"
	AttrToolError          = "ai.tool.error"
	AttrToolErrorTraceback = "ai.tool.error.traceback"

	AttrLLMRequestMessages        = "ai.llm.request.messages"
	AttrLLMRequestModelID         = "ai.llm.request.model.id"
	AttrLLMRequestSystem          = "ai.llm.request.system"
	AttrLLMRequestToolConfig      = "ai.llm.request.tool.config"
	AttrLLMRequestInferenceConfig = "ai.llm.request.inference.config"
	AttrLLMResponseOutput         = "ai.llm.response.output"
	AttrLLMResponseError          = "ai.llm.response.error"
	AttrLLMResponseStopReason     = "ai.llm.response.stop.reason"
	AttrLLMResponseUsage          = "ai.llm.response.usage"
	AttrLLMResponseMetrics        = "ai.llm.response.metrics"
)

// Values stored under AttrTraceType.
const (
	TypeToolInvocation = "tool-invocation"
	TypeLLMInvocation  = "llm-invocation"
)

// Trace is one recorded unit of work within a conversation turn. All traces
// sharing a TraceID belong to the same turn; SpanID identifies a trace within
// that turn. Traces are treated as immutable once recorded.
type Trace struct {
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	SpanName   string         `json:"span_name"`
	SpanKind   string         `json:"span_kind,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    *time.Time     `json:"ended_at,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Type returns the trace type attribute, or "" when unset.
func (t Trace) Type() string {
	return t.StringAttr(AttrTraceType)
}

// Attr looks up an attribute by key.
func (t Trace) Attr(key string) (any, bool) {
	v, ok := t.Attributes[key]
	return v, ok
}

// StringAttr returns the attribute under key rendered as a string. Missing
// attributes yield "".
func (t Trace) StringAttr(key string) string {
	v, ok := t.Attributes[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// DurationMS reports the trace duration in whole milliseconds. The second
// return is false while the trace is still in flight.
func (t Trace) DurationMS() (int64, bool) {
	if t.EndedAt == nil {
		return 0, false
	}
	return t.EndedAt.Sub(t.StartedAt).Milliseconds(), true
}
