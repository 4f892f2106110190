package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assistantMsg(blocks ...map[string]any) Message {
	content := make([]any, len(blocks))
	for i, b := range blocks {
		content[i] = b
	}
	return Message{
		Type: TypeAssistant,
		Raw: map[string]any{
			"type":    "assistant",
			"message": map[string]any{"role": "assistant", "content": content},
		},
	}
}

func textBlock(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}

func TestParseMessage(t *testing.T) {
	line := []byte(`{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}`)
	msg, err := ParseMessage(line)
	require.NoError(t, err)
	assert.Equal(t, TypeAssistant, msg.Type)
	assert.Equal(t, "hi", msg.Text())

	_, err = ParseMessage([]byte("not json"))
	assert.Error(t, err)
}

func TestTextIgnoresNonTextSegments(t *testing.T) {
	msg := assistantMsg(
		map[string]any{"type": "image", "source": map[string]any{"data": "..."}},
		textBlock("Text content"),
	)
	assert.Equal(t, "Text content", msg.Text())
}

func TestTextConcatenatesSegments(t *testing.T) {
	msg := assistantMsg(textBlock("part one "), textBlock("part two"))
	assert.Equal(t, "part one part two", msg.Text())
}

func TestTextPlainStringContent(t *testing.T) {
	msg := Message{
		Type: TypeAssistant,
		Raw: map[string]any{
			"type":    "assistant",
			"message": map[string]any{"content": "plain"},
		},
	}
	assert.Equal(t, "plain", msg.Text())
}

func TestToolUses(t *testing.T) {
	msg := assistantMsg(
		textBlock("running a command"),
		map[string]any{
			"type":  "tool_use",
			"name":  "Bash",
			"input": map[string]any{"command": "ls"},
		},
	)
	uses := msg.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "Bash", uses[0].Name)
	assert.Equal(t, "ls", uses[0].Input["command"])
}

func TestToolResultText(t *testing.T) {
	msg := Message{
		Type: TypeUser,
		Raw: map[string]any{
			"type": "user",
			"message": map[string]any{
				"content": []any{
					map[string]any{"type": "tool_result", "content": "file.go\nmain.go"},
				},
			},
		},
	}
	assert.Equal(t, "file.go\nmain.go", msg.ToolResultText())
}

func TestMessageJSONRoundTrip(t *testing.T) {
	orig := assistantMsg(textBlock("hello"))
	data, err := json.Marshal(orig)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeAssistant, decoded.Type)
	assert.Equal(t, "hello", decoded.Text())
}

func TestReduceDefaultsWithoutResultEvent(t *testing.T) {
	messages := []Message{
		{Type: TypeSystem, Raw: map[string]any{"type": "system", "subtype": "init"}},
		assistantMsg(textBlock("done")),
	}
	res := Reduce(messages, 1234)
	assert.True(t, res.Success)
	assert.Zero(t, res.Cost)
	assert.Equal(t, int64(1234), res.DurationMillis)
	assert.Equal(t, "done", res.FinalResponse)
	assert.Len(t, res.Messages, 2)
}

func TestReduceReadsResultEvent(t *testing.T) {
	messages := []Message{
		assistantMsg(textBlock("first")),
		assistantMsg(textBlock("final answer")),
		{Type: TypeResult, Raw: map[string]any{
			"type":           "result",
			"is_error":       true,
			"total_cost_usd": 0.42,
			"duration_ms":    float64(9000),
		}},
	}
	res := Reduce(messages, 50)
	assert.False(t, res.Success)
	assert.Equal(t, 0.42, res.Cost)
	assert.Equal(t, int64(9000), res.DurationMillis)
	assert.Equal(t, "final answer", res.FinalResponse)
}

func TestReduceFinalResponseSkipsTextlessAssistant(t *testing.T) {
	messages := []Message{
		assistantMsg(textBlock("the real answer")),
		assistantMsg(map[string]any{
			"type":  "tool_use",
			"name":  "Edit",
			"input": map[string]any{},
		}),
	}
	res := Reduce(messages, 0)
	assert.Equal(t, "the real answer", res.FinalResponse)
}

func TestReduceEmptyStream(t *testing.T) {
	res := Reduce(nil, 10)
	assert.True(t, res.Success)
	assert.Empty(t, res.FinalResponse)
	assert.Empty(t, res.Messages)
}
