// Package agent wraps the external coding agent CLI. It invokes the agent
// in streaming mode, parses the emitted event stream, and reduces it to a
// single Result per invocation.
package agent

import (
	"encoding/json"
	"strings"
)

// Message kinds emitted by the agent's stream-json output.
const (
	TypeSystem    = "system"
	TypeAssistant = "assistant"
	TypeUser      = "user"
	TypeResult    = "result"
)

// Message is one structured event from the agent's output stream. The raw
// payload is kept verbatim so nothing is lost between streaming display and
// persistence.
type Message struct {
	Type string
	Raw  map[string]any
}

// ParseMessage decodes one line of stream-json output.
func ParseMessage(line []byte) (Message, error) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return Message{}, err
	}
	typ, _ := raw["type"].(string)
	return Message{Type: typ, Raw: raw}, nil
}

// MarshalJSON serializes the message as its raw payload.
func (m Message) MarshalJSON() ([]byte, error) {
	if m.Raw == nil {
		return []byte("null"), nil
	}
	return json.Marshal(m.Raw)
}

// UnmarshalJSON restores a message from its raw payload.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Raw = raw
	m.Type, _ = raw["type"].(string)
	return nil
}

// Subtype returns the message subtype, if any.
func (m Message) Subtype() string {
	s, _ := m.Raw["subtype"].(string)
	return s
}

// Text extracts the textual content of an assistant or user message by
// concatenating its text-typed segments. Non-text segments such as images
// and tool blocks are ignored. Returns "" for messages with no text.
func (m Message) Text() string {
	inner, ok := m.Raw["message"].(map[string]any)
	if !ok {
		return ""
	}
	content, ok := inner["content"].([]any)
	if !ok {
		// Some payloads carry content as a plain string.
		if s, ok := inner["content"].(string); ok {
			return s
		}
		return ""
	}

	var sb strings.Builder
	for _, seg := range content {
		block, ok := seg.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := block["type"].(string); t != "text" {
			continue
		}
		if text, ok := block["text"].(string); ok {
			sb.WriteString(text)
		}
	}
	return sb.String()
}

// HasText reports whether the message contains at least one text segment.
func (m Message) HasText() bool {
	return m.Text() != ""
}

// ToolUse describes a tool invocation found inside an assistant message.
type ToolUse struct {
	Name  string
	Input map[string]any
}

// ToolUses extracts tool invocations from an assistant message.
func (m Message) ToolUses() []ToolUse {
	inner, ok := m.Raw["message"].(map[string]any)
	if !ok {
		return nil
	}
	content, ok := inner["content"].([]any)
	if !ok {
		return nil
	}

	var uses []ToolUse
	for _, seg := range content {
		block, ok := seg.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := block["type"].(string); t != "tool_use" {
			continue
		}
		use := ToolUse{}
		use.Name, _ = block["name"].(string)
		use.Input, _ = block["input"].(map[string]any)
		uses = append(uses, use)
	}
	return uses
}

// ToolResultText extracts the textual payload of a tool result carried in a
// user message. Returns "" when the message holds no tool result.
func (m Message) ToolResultText() string {
	inner, ok := m.Raw["message"].(map[string]any)
	if !ok {
		return ""
	}
	content, ok := inner["content"].([]any)
	if !ok {
		return ""
	}

	var sb strings.Builder
	for _, seg := range content {
		block, ok := seg.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := block["type"].(string); t != "tool_result" {
			continue
		}
		switch c := block["content"].(type) {
		case string:
			sb.WriteString(c)
		case []any:
			for _, part := range c {
				if pm, ok := part.(map[string]any); ok {
					if text, ok := pm["text"].(string); ok {
						sb.WriteString(text)
					}
				}
			}
		}
	}
	return sb.String()
}

// Cost returns the total cost in USD reported by a result event, or 0.
func (m Message) Cost() float64 {
	c, _ := m.Raw["total_cost_usd"].(float64)
	return c
}

// DurationMillis returns the duration reported by a result event, or 0.
func (m Message) DurationMillis() int64 {
	d, _ := m.Raw["duration_ms"].(float64)
	return int64(d)
}

// IsError reports whether a result event marks the run as failed.
func (m Message) IsError() bool {
	e, _ := m.Raw["is_error"].(bool)
	return e
}
