package agent

import "context"

// Options configures one agent invocation.
type Options struct {
	// WorkDir is the directory the agent runs in. Empty means the current
	// directory.
	WorkDir string
	// Model overrides the agent's default model when non-empty.
	Model string
	// PermissionMode is passed through to the agent CLI when non-empty.
	PermissionMode string
	// MaxTurns caps agent-internal turns. 0 means the agent's default.
	MaxTurns int
	// Events, when non-nil, receives every parsed message as it arrives so
	// a consumer can render live progress. The runner closes the channel
	// when the stream ends. Sending never blocks the drain loop longer than
	// the consumer takes to receive.
	Events chan<- Message
}

// Result is the reduction of one agent invocation's message stream.
type Result struct {
	// Messages is the full ordered event sequence, never truncated.
	Messages []Message `json:"messages"`
	// FinalResponse is the text of the last assistant message that carried
	// at least one text segment, or "" if none did.
	FinalResponse string `json:"finalResponse"`
	// Success is read from the terminal result event. It defaults to true
	// when the stream ended without one.
	Success bool `json:"success"`
	// Cost is the run cost in USD from the result event, or 0.
	Cost float64 `json:"cost"`
	// DurationMillis is the run duration. It comes from the result event
	// when present, else from wall-clock measurement.
	DurationMillis int64 `json:"duration"`
}

// Runner dispatches one prompt to the external agent and returns the
// reduced result. Implementations return *errors.AgentExecutionError for
// every failure mode so callers handle a single error kind.
type Runner interface {
	Run(ctx context.Context, prompt string, opts Options) (*Result, error)
}

// Reduce collapses a drained message sequence into a Result. FinalResponse
// comes from the last assistant message with textual content; success and
// cost come from the terminal result event when one was emitted.
func Reduce(messages []Message, elapsed int64) *Result {
	res := &Result{
		Messages:       messages,
		Success:        true,
		DurationMillis: elapsed,
	}

	for _, m := range messages {
		switch m.Type {
		case TypeAssistant:
			if text := m.Text(); text != "" {
				res.FinalResponse = text
			}
		case TypeResult:
			res.Success = !m.IsError()
			res.Cost = m.Cost()
			if d := m.DurationMillis(); d > 0 {
				res.DurationMillis = d
			}
		}
	}
	return res
}
