package workflow

import (
	"fmt"
	"strings"
)

const coderPromptTemplate = `You are implementing a feature based on a specification.

## Specification

%s

## Instructions

Implement the specification completely. Write tests for the behavior you add.
Commit nothing yourself; your working tree is collected automatically.
When you are done, summarize what you changed and why.`

const coderRevisionSection = `

## Previous Review Feedback

Your earlier implementation was reviewed and changes were requested. Address
every point below before finishing.

%s`

const reviewerPromptTemplate = `You are reviewing an implementation against its specification. Be strict:
the specification is the contract, and anything it requires that is missing
or wrong must be called out.

## Specification

%s

## Implementer's Summary

%s

## Instructions

Examine the working tree and compare it against the specification. List every
problem you find, ordered by severity. If the implementation satisfies the
specification, say so.

End your response with exactly one line of the form:

VERDICT: APPROVED

or

VERDICT: REVISE`

// coderPrompt builds the prompt for a coding turn. For iterations after the
// first, the accumulated review feedback is appended so the coder addresses
// it directly.
func coderPrompt(spec string, feedback []string) string {
	prompt := fmt.Sprintf(coderPromptTemplate, spec)
	if len(feedback) == 0 {
		return prompt
	}

	var sb strings.Builder
	for i, f := range feedback {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(fmt.Sprintf("### Review %d\n\n%s", i+1, f))
	}
	return prompt + fmt.Sprintf(coderRevisionSection, sb.String())
}

// reviewerPrompt builds the prompt for a reviewing turn.
func reviewerPrompt(spec, coderSummary string) string {
	if coderSummary == "" {
		coderSummary = "(the implementer provided no summary)"
	}
	return fmt.Sprintf(reviewerPromptTemplate, spec, coderSummary)
}
