package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"agentic-rag-api/pkg/logger"
)

// WebLoader 抓取网页并提取正文
type WebLoader struct {
	client *resty.Client
}

func NewWebLoader(timeout time.Duration) *WebLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "agentic-rag-api/ingest").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second)
	return &WebLoader{client: client}
}

// NewWebLoaderWithClient 使用外部构造的 resty 客户端
func NewWebLoaderWithClient(client *resty.Client) *WebLoader {
	return &WebLoader{client: client}
}

// Load 逐个抓取 URL；任一失败即返回错误
func (l *WebLoader) Load(ctx context.Context, urls []string) ([]SourceDocument, error) {
	out := make([]SourceDocument, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		doc, err := l.loadOne(ctx, u)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (l *WebLoader) loadOne(ctx context.Context, url string) (SourceDocument, error) {
	start := time.Now()
	resp, err := l.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return SourceDocument{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return SourceDocument{}, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}

	title, text, err := ExtractText(resp.Body())
	if err != nil {
		return SourceDocument{}, fmt.Errorf("parse %s: %w", url, err)
	}
	logger.Debug(ctx, "page loaded", "url", url, "chars", len(text), "duration_ms", time.Since(start).Milliseconds())
	return SourceDocument{Source: url, Title: title, Content: text}, nil
}

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Svg:      true,
	atom.Form:     true,
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Pre: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Tr: true, atom.Blockquote: true, atom.Section: true, atom.Article: true,
}

// ExtractText 解析 HTML，返回 <title> 与去除脚本/导航等噪声后的正文
func ExtractText(body []byte) (string, string, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}

	var title string
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if n.DataAtom == atom.Title && title == "" && n.FirstChild != nil {
				title = strings.TrimSpace(n.FirstChild.Data)
				return
			}
			if skippedElements[n.DataAtom] {
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.DataAtom] {
			sb.WriteByte('\n')
		}
	}
	walk(root)
	return title, normalizeWhitespace(sb.String()), nil
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
