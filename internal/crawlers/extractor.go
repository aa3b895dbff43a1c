package crawlers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"golang.org/x/net/html"
)

const (
	// minBlockChars 最大文本块兜底策略的最小字符数
	minBlockChars = 200

	// strippedSelector 提取前剔除的噪声标签
	strippedSelector = "script,style,nav,header,footer,aside,noscript"
)

// contentSelectors 正文容器选择器,按优先级排列
// 取第一个产出非空文本的选择器
var contentSelectors = []string{
	"article",
	"main",
	`[class*="content"]`,
	`[class*="post"]`,
	"body",
}

// blockTags 视为段落边界的块级标签
var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true, "pre": true,
	"ul": true, "ol": true, "table": true,
}

// ContentExtractor 内容提取器
// 职责:
//   - 剔除脚本、样式和导航类噪声标签
//   - 按选择器优先级提取正文文本
//   - 收集同源链接(保持文档顺序,去重)
//
// 保证: 只要输入文档含有任何文本,Extract产出的Text就非空
type ContentExtractor struct{}

// NewContentExtractor 创建内容提取器
func NewContentExtractor() *ContentExtractor {
	return &ContentExtractor{}
}

// Extract 从HTML中提取正文文本与同源链接
// pageURL用于解析相对链接和判定同源
func (ce *ContentExtractor) Extract(htmlStr, pageURL string) (*models.ExtractedPage, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("解析页面URL失败: %w", err)
	}

	// 先剔除噪声标签,再提取文本与链接
	doc.Find(strippedSelector).Remove()

	return &models.ExtractedPage{
		Text:  ce.extractText(doc),
		Links: ce.extractLinks(doc, base),
	}, nil
}

// extractText 按优先级提取正文文本
// 提取顺序:
//  1. 选择器优先级: article → main → [class*=content] → [class*=post] → body
//  2. 兜底1: 文档中最大的文本块 (超过200字符才采用)
//  3. 兜底2: 整个文档的全部文本
func (ce *ContentExtractor) extractText(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		selection := doc.Find(selector)
		if selection.Length() == 0 {
			continue
		}

		parts := make([]string, 0, selection.Length())
		selection.Each(func(_ int, s *goquery.Selection) {
			for _, node := range s.Nodes {
				if text := nodeText(node); text != "" {
					parts = append(parts, text)
				}
			}
		})
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}

	// 选择器全部落空,找最大的文本块
	if len(doc.Nodes) > 0 {
		if largest := largestTextBlock(doc.Nodes[0]); len(largest) > minBlockChars {
			return largest
		}
		// 最后的兜底: 整个文档
		return nodeText(doc.Nodes[0])
	}

	return ""
}

// extractLinks 收集同源链接
// 保持文档顺序,按解析后的绝对URL去重
func (ce *ContentExtractor) extractLinks(doc *goquery.Document, base *url.URL) []models.Link {
	seen := make(map[string]bool)
	links := make([]models.Link, 0)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "javascript:") ||
			strings.HasPrefix(lower, "mailto:") ||
			strings.HasPrefix(lower, "tel:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}

		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}

		// 仅保留同源链接 (协议+主机一致)
		if !strings.EqualFold(abs.Scheme, base.Scheme) || !strings.EqualFold(abs.Host, base.Host) {
			return
		}

		absURL := abs.String()
		if seen[absURL] {
			return
		}
		seen[absURL] = true

		anchor := strings.Join(strings.Fields(s.Text()), " ")
		links = append(links, models.Link{
			URL:    absURL,
			Anchor: anchor,
		})
	})

	return links
}

// nodeText 提取节点下的全部文本
// 文本节点以空格连接,块级标签结束处换行,行内多余空白被折叠
func nodeText(n *html.Node) string {
	var sb strings.Builder
	collectText(n, &sb)

	lines := strings.Split(sb.String(), "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if fields := strings.Fields(line); len(fields) > 0 {
			cleaned = append(cleaned, strings.Join(fields, " "))
		}
	}
	return strings.Join(cleaned, "\n")
}

// collectText 递归收集文本节点
func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte(' ')
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}

	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteByte('\n')
	}
}

// largestTextBlock 找到文档中文本量最大的块级元素
func largestTextBlock(root *html.Node) string {
	var largest string

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && blockTags[n.Data] {
			if text := nodeText(n); len(text) > len(largest) {
				largest = text
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return largest
}
