package retrieval

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"agentic-rag-api/pkg/logger"
)

const defaultEncoding = "cl100k_base"

// Splitter 将长文本切为带重叠的窗口
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	enc          *tiktoken.Tiktoken
}

// NewSplitter 按 token 切分；编码表加载失败时退化为按字符切分
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	s := &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
	enc, err := tiktoken.GetEncoding(defaultEncoding)
	if err != nil {
		logger.Warn(context.Background(), "tiktoken encoding unavailable, falling back to rune windows", "error", err.Error())
		return s
	}
	s.enc = enc
	return s
}

func (s *Splitter) Split(text string) []string {
	if s.enc == nil {
		return splitByRunes(text, s.chunkSize, s.chunkOverlap)
	}
	return splitByTokens(s.enc, text, s.chunkSize, s.chunkOverlap)
}

func splitByTokens(enc *tiktoken.Tiktoken, s string, maxTokens, overlap int) []string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	if maxTokens <= 0 {
		return []string{raw}
	}
	tokens := enc.Encode(raw, nil, nil)
	if len(tokens) <= maxTokens {
		return []string{raw}
	}
	return windows(len(tokens), maxTokens, overlap, func(start, end int) string {
		return decodeWindow(enc, tokens[start:end])
	})
}

// decodeWindow 窗口边界可能落在多字节字符中间：起点前移、终点后撤，直到解码结果是合法 UTF-8
func decodeWindow(enc *tiktoken.Tiktoken, tokens []int) string {
	start, end := 0, len(tokens)
	for start < end {
		head := enc.Decode(tokens[start : start+1])
		if head != "" && utf8.RuneStart(head[0]) {
			break
		}
		start++
	}
	for ; end > start; end-- {
		if text := enc.Decode(tokens[start:end]); utf8.ValidString(text) {
			return text
		}
	}
	return ""
}

func splitByRunes(s string, maxRunes int, overlapRunes int) []string {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return nil
	}
	if maxRunes <= 0 {
		return []string{raw}
	}
	runes := []rune(raw)
	if len(runes) <= maxRunes {
		return []string{raw}
	}
	return windows(len(runes), maxRunes, overlapRunes, func(start, end int) string {
		return string(runes[start:end])
	})
}

// windows 以 size 为窗口、size-overlap 为步长遍历 [0,n)
func windows(n, size, overlap int, slice func(start, end int) string) []string {
	if overlap < 0 {
		overlap = 0
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	out := make([]string, 0, (n/step)+1)
	for start := 0; start < n; start += step {
		end := start + size
		if end > n {
			end = n
		}
		chunk := strings.TrimSpace(slice(start, end))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end >= n {
			break
		}
	}
	return out
}
