package main

import (
	"fmt"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

func describeUpdate(u *wfmodel.Update) string {
	line := fmt.Sprintf("node %s", u.Node)
	switch u.Merge {
	case wfmodel.MergeAppend:
		line += fmt.Sprintf(": +%d documents", len(u.Documents))
	case wfmodel.MergeReplace:
		line += fmt.Sprintf(": %d documents kept", len(u.Documents))
	}
	if u.WebSearch != nil && *u.WebSearch {
		line += " (web search requested)"
	}
	if u.Generation != nil {
		line += fmt.Sprintf(": generated %d chars", len([]rune(*u.Generation)))
	}
	return line
}
