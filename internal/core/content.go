package core

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// TruncatedComment 截断后追加在页面末尾的注释
const TruncatedComment = "\n<!-- Truncated before recommendations widget -->\n"

// widgetMarkers 推荐组件的DOM标记
// 这些组件加载与当前大学无关的跨站内容
var widgetMarkers = []string{
	`<div id="blueshift-recommendations-widget"`,
	`id="blueshift-recommendations-widget"`,
	`blueshift-recommendations-widget`,
	`<div id="null-recommendations-widget"`,
	`id="null-recommendations-widget"`,
	`null-recommendations-widget`,
	`SailthruRecommend__Container`,
}

// WidgetCutIndex 所有标记中最早出现的位置, 未找到返回-1
func WidgetCutIndex(content string) int {
	earliest := -1
	for _, marker := range widgetMarkers {
		idx := strings.Index(content, marker)
		if idx != -1 && (earliest == -1 || idx < earliest) {
			earliest = idx
		}
	}
	return earliest
}

// TruncateAtWidget 在最早的推荐组件标记处截断
// 标记位于开头(索引0)时不截断
func TruncateAtWidget(content string) (string, bool) {
	idx := WidgetCutIndex(content)
	if idx <= 0 {
		return content, false
	}
	return content[:idx] + TruncatedComment, true
}

// ExtractCanonical 读取 <link rel="canonical" href="..."> 的href
func ExtractCanonical(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "link" || !hasAttr {
				continue
			}
			var rel, href string
			for {
				key, val, more := z.TagAttr()
				switch string(key) {
				case "rel":
					rel = string(val)
				case "href":
					href = string(val)
				}
				if !more {
					break
				}
			}
			if href != "" && hasToken(rel, "canonical") {
				return href
			}
		}
	}
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(list) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}

// lastPathSegment URL路径最后一个非空段
func lastPathSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segs := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segs) == 0 {
		return ""
	}
	return segs[len(segs)-1]
}

// IsRedirectedToMain 非主页类型是否被站点静默跳回了概览页
// 先比较最终URL的最后一段, 再比较canonical链接
func IsRedirectedToMain(finalURL, content, segment string) bool {
	if segment == "" {
		return false
	}
	if finalURL != "" && lastPathSegment(finalURL) != segment {
		return true
	}
	if canonical := ExtractCanonical(content); canonical != "" && lastPathSegment(canonical) != segment {
		return true
	}
	return false
}
