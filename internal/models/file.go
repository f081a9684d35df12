package models

import (
	"fmt"
	"time"
)

const (
	// MaxPageSize 单个HTML页面最大大小 50MB
	MaxPageSize = 50 * 1024 * 1024
)

// SaveStatus 页面保存结果
type SaveStatus string

const (
	SaveWritten   SaveStatus = "written"   // 新写入或内容变化后覆盖
	SaveUnchanged SaveStatus = "unchanged" // 与磁盘上同一文件内容一致
	SaveDuplicate SaveStatus = "duplicate" // 与同一大学其他页面内容一致,未保存
)

// SavedPage 已保存的页面
type SavedPage struct {
	University string     `json:"university"`
	PageType   PageType   `json:"page_type"`
	URL        string     `json:"url"`
	FinalURL   string     `json:"final_url"`
	FilePath   string     `json:"file_path"`
	Hash       string     `json:"hash"`
	Size       int64      `json:"size"`
	Truncated  bool       `json:"truncated"`
	Status     SaveStatus `json:"status"`
	SavedAt    time.Time  `json:"saved_at"`
}

// ValidateSize 验证页面大小
func (p *SavedPage) ValidateSize() error {
	if p.Size <= 0 {
		return fmt.Errorf("页面内容为空")
	}
	if p.Size > MaxPageSize {
		return fmt.Errorf("页面大小超过限制: %d > %d", p.Size, MaxPageSize)
	}
	return nil
}
