package github

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// BodyContext holds the information the PR body template renders.
type BodyContext struct {
	SpecPath   string
	Summary    string
	Iterations int
	Cost       float64
}

const bodyTemplate = `## Summary

{{.Summary}}

## Details

- Spec: ` + "`{{.SpecPath}}`" + `
- Review iterations: {{.Iterations}}
{{- if gt .Cost 0.0}}
- Agent cost: ${{printf "%.4f" .Cost}}
{{- end}}
`

// RenderBody builds the pull request body from a run's outcome. The summary
// is trimmed to its leading paragraph so the PR opens with prose, not a
// transcript.
func RenderBody(ctx BodyContext) (string, error) {
	ctx.Summary = leadingParagraph(ctx.Summary)
	if ctx.Summary == "" {
		ctx.Summary = "Automated implementation of the referenced specification."
	}

	tmpl, err := template.New("body").Parse(bodyTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse PR body template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("failed to render PR body: %w", err)
	}
	return buf.String(), nil
}

func leadingParagraph(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "\n\n"); i >= 0 {
		s = s[:i]
	}
	const maxLen = 1000
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}
