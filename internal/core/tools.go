package core

import (
	"fmt"
	"strings"

	"github.com/kiraleos/chatterd/internal/store"
)

// ToolKind names a transcript-analysis capability. Tools run over an existing
// transcript rather than a live prompt.
type ToolKind string

const (
	ToolSummarize ToolKind = "summarize"
	ToolNextSteps ToolKind = "next-steps"
	ToolTasks     ToolKind = "tasks"
)

// MinToolTurns is the shortest transcript a tool accepts; anything less
// produces degenerate output.
const MinToolTurns = 2

type toolSpec struct {
	instruction string
	leadIn      string
}

var toolSpecs = map[ToolKind]toolSpec{
	ToolSummarize: {
		instruction: "Summarize the following conversation transcript in a short paragraph. " +
			"Mention who wanted what and what was concluded. Do not invent details.",
		leadIn: "Here's a summary of the conversation:",
	},
	ToolNextSteps: {
		instruction: "Read the following conversation transcript and suggest sensible next steps " +
			"for the user. Keep the list short and concrete.",
		leadIn: "Based on the conversation, here are some suggested next steps:",
	},
	ToolTasks: {
		instruction: "Extract any actionable tasks from the following conversation transcript. " +
			"List each task on its own line. If there are none, say so.",
		leadIn: "Here are the tasks I found in the conversation:",
	},
}

// ParseToolKind maps a URL path segment to a known tool kind.
func ParseToolKind(s string) (ToolKind, bool) {
	kind := ToolKind(strings.ToLower(strings.TrimSpace(s)))
	_, ok := toolSpecs[kind]
	return kind, ok
}

// LeadIn returns the fixed sentence a tool's output begins with.
func (k ToolKind) LeadIn() string {
	return toolSpecs[k].leadIn
}

func formatTranscript(transcript []store.Message) string {
	var b strings.Builder
	b.WriteString("Transcript:\n")
	for _, msg := range transcript {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}
