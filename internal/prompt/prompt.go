// Package prompt renders the bounded log context into model messages.
//
// The rendered context block is computed once per Context and cached, so
// every question in an interactive session reuses the same bytes. That keeps
// answers comparable across questions and makes token accounting stable.
package prompt

import (
	"fmt"
	"strings"

	"github.com/bimmerbailey/eksight/internal/budget"
	"github.com/bimmerbailey/eksight/internal/llm"
)

// Context pairs a budgeted log context with its rendered form.
type Context struct {
	cluster string
	block   string
}

// NewContext renders the budgeted context for a cluster once. The result is
// immutable; build a new Context after re-budgeting.
func NewContext(cluster string, bc *budget.Context) *Context {
	return &Context{cluster: cluster, block: render(cluster, bc)}
}

// Block returns the rendered context block. Identical across all questions
// asked against this Context.
func (c *Context) Block() string { return c.block }

// Messages builds the conversation for one question: the analyst system
// prompt with the context block, then the question as the user turn.
func (c *Context) Messages(question string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: systemPrompt + "\n\n" + c.block},
		{Role: "user", Content: "Question: " + strings.TrimSpace(question)},
	}
}

func render(cluster string, bc *budget.Context) string {
	var b strings.Builder

	b.WriteString("=== EKS CONTROL PLANE LOG CONTEXT ===\n")
	fmt.Fprintf(&b, "Cluster: %s\n", cluster)
	fmt.Fprintf(&b, "Time range: %s\n", bc.Window)
	fmt.Fprintf(&b, "Events collected: %d\n", bc.TotalRecords)

	b.WriteString("Events by category:")
	if len(bc.CategoryCounts) == 0 {
		b.WriteString(" none")
	}
	for _, cat := range bc.Categories() {
		fmt.Fprintf(&b, " %s=%d", cat, bc.CategoryCounts[cat])
	}
	b.WriteString("\n")

	if len(bc.MissingCategories) > 0 {
		names := make([]string, len(bc.MissingCategories))
		for i, cat := range bc.MissingCategories {
			names[i] = cat.String()
		}
		fmt.Fprintf(&b, "Categories with no data in window: %s\n", strings.Join(names, ", "))
	}
	if bc.Truncated {
		fmt.Fprintf(&b, "Note: context truncated to the %d most recent events, balanced across categories.\n",
			len(bc.Records))
	}

	b.WriteString("\n=== LOG RECORDS (oldest first) ===\n")
	if len(bc.Records) == 0 {
		b.WriteString("(no log records in the selected window)\n")
	}
	for _, r := range bc.Records {
		b.WriteString(budget.Line(r))
		b.WriteString("\n")
	}

	return b.String()
}
