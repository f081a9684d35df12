package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
)

// 名称匹配模式
const (
	MatchExactFirst = "exact-first"
	MatchSubstring  = "substring"
)

var (
	// ErrUniversityNotFound 目录中没有匹配的大学
	ErrUniversityNotFound = errors.New("未找到大学")
	// ErrCatalogEmpty 目录文件中没有有效条目
	ErrCatalogEmpty = errors.New("大学目录为空")
)

// Catalog 大学目录, 加载后只读
type Catalog struct {
	records   []models.UniversityRecord
	matchMode string
}

// LoadCatalog 读取 [{"name": ..., "link": ...}] 格式的目录文件
// 名称或链接为空的条目会被丢弃
func LoadCatalog(path, matchMode string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取大学目录失败 [%s]: %w", path, err)
	}

	var raw []models.UniversityRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析大学目录失败 [%s]: %w", path, err)
	}

	records := make([]models.UniversityRecord, 0, len(raw))
	for i, r := range raw {
		r.Name = strings.TrimSpace(r.Name)
		r.URLPath = strings.TrimSpace(r.URLPath)
		if r.Name == "" || r.URLPath == "" {
			utils.Warnf("⚠️ 目录第%d条缺少名称或链接,已忽略", i+1)
			continue
		}
		records = append(records, r)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCatalogEmpty, path)
	}

	utils.Infof("📚 已加载 %d 所大学", len(records))
	return NewCatalog(records, matchMode), nil
}

// NewCatalog 由内存中的记录创建目录
func NewCatalog(records []models.UniversityRecord, matchMode string) *Catalog {
	if matchMode == "" {
		matchMode = MatchExactFirst
	}
	return &Catalog{
		records:   append([]models.UniversityRecord(nil), records...),
		matchMode: matchMode,
	}
}

// Lookup 不区分大小写查找
// exact-first: 先完全匹配, 再取第一个包含关系的匹配; substring: 直接取第一个包含关系的匹配
func (c *Catalog) Lookup(name string) (models.UniversityRecord, bool) {
	query := strings.ToLower(strings.TrimSpace(name))
	if query == "" {
		return models.UniversityRecord{}, false
	}

	if c.matchMode != MatchSubstring {
		for _, r := range c.records {
			if strings.ToLower(r.Name) == query {
				return r, true
			}
		}
	}

	var (
		found   models.UniversityRecord
		matched int
	)
	for _, r := range c.records {
		if strings.Contains(strings.ToLower(r.Name), query) {
			if matched == 0 {
				found = r
			}
			matched++
		}
	}

	if matched > 1 {
		utils.Debugf("名称 %q 匹配到 %d 所大学,使用第一个: %s", name, matched, found.Name)
	}
	return found, matched > 0
}

// Exact 名称完全相同(区分大小写)的条目, 不受匹配模式影响
func (c *Catalog) Exact(name string) (models.UniversityRecord, bool) {
	name = strings.TrimSpace(name)
	for _, r := range c.records {
		if r.Name == name {
			return r, true
		}
	}
	return models.UniversityRecord{}, false
}

// Find 与Lookup相同, 未找到时返回 ErrUniversityNotFound
func (c *Catalog) Find(name string) (models.UniversityRecord, error) {
	r, ok := c.Lookup(name)
	if !ok {
		return r, fmt.Errorf("%w: %s", ErrUniversityNotFound, name)
	}
	return r, nil
}

// List 所有记录的副本
func (c *Catalog) List() []models.UniversityRecord {
	return append([]models.UniversityRecord(nil), c.records...)
}

// Names 所有大学名称
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.records))
	for _, r := range c.records {
		names = append(names, r.Name)
	}
	return names
}

// Len 记录数
func (c *Catalog) Len() int {
	return len(c.records)
}
