// Package stream renders the agent's live message stream as one-line
// progress output while buffering the full sequence for persistence.
package stream

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"codexloop/internal/agent"
)

// displayBudget is the maximum rune length of a rendered detail snippet.
// Only the displayed string is truncated, never the buffered message.
const displayBudget = 200

var (
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	toolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	resultStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	timeStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// Options control which message kinds are rendered. They affect display
// only; the returned buffer always holds every message.
type Options struct {
	ShowToolCalls  bool
	ShowTimestamps bool
	Verbose        bool
}

// Processor formats stream messages for human consumption.
type Processor struct {
	opts   Options
	out    io.Writer
	styled bool
	now    func() time.Time
}

// New creates a processor writing to out. Styling is enabled only when out
// is a terminal.
func New(out io.Writer, opts Options) *Processor {
	if out == nil {
		out = os.Stdout
	}
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &Processor{opts: opts, out: out, styled: styled, now: time.Now}
}

// Process drains the channel, printing a progress line per message, and
// returns the complete ordered sequence it consumed.
func (p *Processor) Process(ch <-chan agent.Message) []agent.Message {
	var messages []agent.Message
	for msg := range ch {
		messages = append(messages, msg)
		p.Print(msg)
	}
	return messages
}

// Print renders a single message if the options allow its kind.
func (p *Processor) Print(msg agent.Message) {
	line, ok := p.formatMessage(msg)
	if !ok {
		return
	}
	if p.opts.ShowTimestamps {
		stamp := p.now().Format("15:04:05")
		line = p.style(timeStyle, stamp) + " " + line
	}
	fmt.Fprintln(p.out, line)
}

func (p *Processor) formatMessage(msg agent.Message) (string, bool) {
	switch msg.Type {
	case agent.TypeSystem:
		if msg.Subtype() == "init" {
			return p.style(systemStyle, "* agent session started"), true
		}
		if p.opts.Verbose {
			return p.style(systemStyle, "* system: "+msg.Subtype()), true
		}
		return "", false

	case agent.TypeAssistant:
		if uses := msg.ToolUses(); len(uses) > 0 {
			if !p.opts.ShowToolCalls {
				return "", false
			}
			parts := make([]string, len(uses))
			for i, u := range uses {
				parts[i] = formatToolUse(u)
			}
			return p.style(toolStyle, "> "+strings.Join(parts, ", ")), true
		}
		if text := msg.Text(); text != "" {
			return p.style(assistantStyle, truncate(firstLine(text))), true
		}
		return "", false

	case agent.TypeUser:
		if !p.opts.ShowToolCalls {
			return "", false
		}
		if result := msg.ToolResultText(); result != "" {
			return p.style(systemStyle, "  "+truncate(firstLine(result))), true
		}
		return "", false

	case agent.TypeResult:
		if msg.IsError() {
			return p.style(errorStyle, "x run failed"), true
		}
		summary := fmt.Sprintf("+ done ($%.4f, %s)",
			msg.Cost(), (time.Duration(msg.DurationMillis()) * time.Millisecond).Round(100*time.Millisecond))
		return p.style(resultStyle, summary), true

	default:
		if p.opts.Verbose {
			return p.style(systemStyle, "* "+msg.Type), true
		}
		return "", false
	}
}

func (p *Processor) style(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func formatToolUse(u agent.ToolUse) string {
	name := u.Name
	if name == "" {
		name = "tool"
	}
	if detail := toolDetail(u); detail != "" {
		return name + "(" + truncateTo(detail, 60) + ")"
	}
	return name
}

// toolDetail picks the most informative input field for a one-line summary.
func toolDetail(u agent.ToolUse) string {
	for _, key := range []string{"command", "file_path", "path", "pattern", "url"} {
		if v, ok := u.Input[key].(string); ok && v != "" {
			return firstLine(v)
		}
	}
	return ""
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string) string {
	return truncateTo(s, displayBudget)
}

func truncateTo(s string, budget int) string {
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget]) + "..."
}
