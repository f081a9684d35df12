package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/gocolly/colly/v2"
)

// rankingRowSelector 排名页中每所大学的行
const rankingRowSelector = "div[name]"

// profileLinkSelector 行内指向大学详情页的链接
const profileLinkSelector = `a[href^="/best-colleges/"]`

// CatalogBuilder 从保存的排名页生成大学目录
type CatalogBuilder struct {
	fetcher *crawlers.StaticFetcher
}

// NewCatalogBuilder 创建目录生成器
func NewCatalogBuilder(fetcher *crawlers.StaticFetcher) *CatalogBuilder {
	return &CatalogBuilder{fetcher: fetcher}
}

// Build 读取排名页(本地路径或http(s) URL)并提取大学列表
// 名称取自行的name属性, 链接去掉查询参数, 按名称去重并保持顺序
func (b *CatalogBuilder) Build(ctx context.Context, source string) ([]models.UniversityRecord, error) {
	records := make([]models.UniversityRecord, 0)
	seen := make(map[string]bool)
	skipped := 0

	_, err := b.fetcher.FetchHTML(ctx, source, rankingRowSelector, func(e *colly.HTMLElement) {
		name := strings.TrimSpace(e.Attr("name"))
		href, ok := e.DOM.Find(profileLinkSelector).First().Attr("href")
		if name == "" || !ok {
			skipped++
			return
		}

		if i := strings.IndexAny(href, "?#"); i >= 0 {
			href = href[:i]
		}
		if seen[name] {
			return
		}
		seen[name] = true
		records = append(records, models.UniversityRecord{Name: name, URLPath: href})
	})
	if err != nil {
		return nil, fmt.Errorf("读取排名页失败: %w", err)
	}

	if skipped > 0 {
		utils.Debugf("跳过 %d 个没有大学链接的行", skipped)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: 排名页中没有找到大学 (%s)", ErrCatalogEmpty, source)
	}

	utils.Infof("🏫 从排名页提取了 %d 所大学", len(records))
	return records, nil
}

// WriteCatalog 以 [{"name","link"}] 格式写入目录文件
func WriteCatalog(path string, records []models.UniversityRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("序列化目录失败: %w", err)
	}

	if err := utils.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("写入目录文件失败 [%s]: %w", path, err)
	}

	utils.Infof("💾 已保存 %d 所大学到 %s", len(records), path)
	return nil
}
