package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/core"
)

// PageMetaName 内置页面元数据抽取器的名称
const PageMetaName = "page-meta"

// maxHeadings 最多保留的小标题数
const maxHeadings = 50

// PageMetaExtractor 抽取任何页面类型都有的通用字段
// title, canonical, h1, description, headings 以及登录状态
type PageMetaExtractor struct{}

// NewPageMetaExtractor 创建页面元数据抽取器
func NewPageMetaExtractor() *PageMetaExtractor {
	return &PageMetaExtractor{}
}

// Name 实现 FieldExtractor
func (e *PageMetaExtractor) Name() string {
	return PageMetaName
}

// Extract 实现 FieldExtractor
func (e *PageMetaExtractor) Extract(html, university string) (Fields, error) {
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyPage
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	canonical, _ := doc.Find(`link[rel~="canonical"]`).First().Attr("href")
	description, _ := doc.Find(`meta[name="description"]`).First().Attr("content")

	headings := make([]string, 0)
	seen := make(map[string]bool)
	doc.Find("h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if text != "" && !seen[text] {
			seen[text] = true
			headings = append(headings, text)
		}
		return len(headings) < maxHeadings
	})

	login := core.DetectLoginState(html)
	return Fields{
		"university":  university,
		"title":       cleanText(doc.Find("title").First().Text()),
		"canonical":   strings.TrimSpace(canonical),
		"h1":          cleanText(doc.Find("h1").First().Text()),
		"description": cleanText(description),
		"headings":    headings,
		"login_state": string(login.State),
		"premium":     login.Premium,
		"truncated":   strings.Contains(html, strings.TrimSpace(core.TruncatedComment)),
	}, nil
}

// cleanText 合并空白
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
