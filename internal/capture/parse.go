package capture

import (
	"encoding/json"
	"strings"
)

// parsedRequest is the provider-neutral view of a chat completion request
// body.
type parsedRequest struct {
	ModelID   string
	System    string
	Messages  []any
	Inference map[string]any
	UserInput string
}

// parsedResponse is the provider-neutral view of a chat completion response
// body.
type parsedResponse struct {
	Output     any
	Text       string
	StopReason string
	Usage      map[string]any
}

// Keys copied from the request body into the inference config attribute.
var inferenceKeys = []string{"temperature", "top_p", "max_tokens", "max_output_tokens", "stop", "stop_sequences"}

// parseRequestBody understands the OpenAI chat completions and Anthropic
// messages shapes; anything else yields a zero value.
func parseRequestBody(body []byte) parsedRequest {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return parsedRequest{}
	}

	req := parsedRequest{}
	if model, ok := payload["model"].(string); ok {
		req.ModelID = model
	}

	// Anthropic carries the system prompt at the top level.
	switch system := payload["system"].(type) {
	case string:
		req.System = system
	case []any:
		req.System = joinTextBlocks(system)
	}

	messages, _ := payload["messages"].([]any)
	for _, raw := range messages {
		msg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := msg["role"].(string)
		if role == "system" {
			// OpenAI carries the system prompt as a message.
			if req.System == "" {
				req.System = contentText(msg["content"])
			}
			continue
		}
		req.Messages = append(req.Messages, msg)
		if role == "user" {
			if text := contentText(msg["content"]); text != "" {
				req.UserInput = text
			}
		}
	}

	inference := make(map[string]any)
	for _, key := range inferenceKeys {
		if v, ok := payload[key]; ok {
			inference[key] = v
		}
	}
	if len(inference) > 0 {
		req.Inference = inference
	}
	return req
}

func parseResponseBody(body []byte) parsedResponse {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return parsedResponse{}
	}

	resp := parsedResponse{}
	if usage, ok := payload["usage"].(map[string]any); ok {
		resp.Usage = usage
	}

	// OpenAI: choices[0].message + finish_reason.
	if choices, ok := payload["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if reason, ok := choice["finish_reason"].(string); ok {
				resp.StopReason = reason
			}
			if message, ok := choice["message"].(map[string]any); ok {
				resp.Output = message
				resp.Text = contentText(message["content"])
			}
		}
		return resp
	}

	// Anthropic: content blocks + stop_reason.
	if content, ok := payload["content"].([]any); ok {
		resp.Output = content
		resp.Text = joinTextBlocks(content)
		if reason, ok := payload["stop_reason"].(string); ok {
			resp.StopReason = reason
		}
	}
	return resp
}

// contentText flattens a message content field: either a plain string or a
// list of typed blocks.
func contentText(content any) string {
	switch v := content.(type) {
	case string:
		return v
	case []any:
		return joinTextBlocks(v)
	}
	return ""
}

func joinTextBlocks(blocks []any) string {
	var parts []string
	for _, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if text, ok := block["text"].(string); ok {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
