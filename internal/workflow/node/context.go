package node

import (
	"strings"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// PassageDelimiter 上下文中相邻片段之间的分隔符
const PassageDelimiter = "\n\n---\n\n"

// FormatDocuments 按原顺序渲染片段：来源、标题（若有）与正文
func FormatDocuments(docs []wfmodel.Passage) string {
	if len(docs) == 0 {
		return ""
	}
	blocks := make([]string, 0, len(docs))
	for _, d := range docs {
		var b strings.Builder
		b.WriteString("Source: ")
		b.WriteString(d.Source())
		if title := strings.TrimSpace(d.Title()); title != "" {
			b.WriteString("\nTitle: ")
			b.WriteString(title)
		}
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(d.Content))
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, PassageDelimiter)
}
