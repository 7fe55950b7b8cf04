package model

import (
	"fmt"
	"strings"
)

// 元数据键
const (
	MetaSource     = "source"
	MetaTitle      = "title"
	MetaURLs       = "urls"
	MetaScore      = "score"
	MetaChunkIndex = "chunk_index"
)

// 联网搜索合成片段的哨兵来源
const (
	WebSearchSource = "web_search"
	WebSearchTitle  = "Web Search Results"
	UnknownSource   = "unknown"
)

// Passage 一段检索得到或合成的上下文，创建后不可变
type Passage struct {
	ID       string
	Content  string
	metadata map[string]any
}

// NewPassage 创建 Passage，元数据会被复制；缺少 source 时补为 unknown
func NewPassage(id, content string, metadata map[string]any) Passage {
	md := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	if s, _ := md[MetaSource].(string); strings.TrimSpace(s) == "" {
		md[MetaSource] = UnknownSource
	}
	return Passage{ID: id, Content: content, metadata: md}
}

// Source 来源标识
func (p Passage) Source() string {
	s, _ := p.metadata[MetaSource].(string)
	if s == "" {
		return UnknownSource
	}
	return s
}

// Title 标题，可能为空
func (p Passage) Title() string {
	s, _ := p.metadata[MetaTitle].(string)
	return s
}

// Meta 读取单个元数据
func (p Passage) Meta(key string) (any, bool) {
	v, ok := p.metadata[key]
	return v, ok
}

// Metadata 返回元数据副本
func (p Passage) Metadata() map[string]any {
	out := make(map[string]any, len(p.metadata))
	for k, v := range p.metadata {
		out[k] = v
	}
	return out
}

// MetadataStrings 以字符串形式返回元数据（用于 DTO 与落库）
func (p Passage) MetadataStrings() map[string]string {
	out := make(map[string]string, len(p.metadata))
	for k, v := range p.metadata {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// IsWebSearch 是否为联网搜索合成的片段
func (p Passage) IsWebSearch() bool {
	return p.Source() == WebSearchSource
}

// SearchResult 搜索服务返回的一条结果
type SearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}
