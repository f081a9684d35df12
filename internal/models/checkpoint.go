package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint 批量下载检查点
// 记录已完成和失败的大学, 供 download-all --retry-failed 使用
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	Completed []string  `json:"completed"` // 已保存页面或目录已完整
	Failed    []string  `json:"failed"`    // 意外错误或未保存任何页面
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCheckpoint 创建检查点
func NewCheckpoint(runID string) *Checkpoint {
	now := time.Now()
	return &Checkpoint{
		RunID:     runID,
		Completed: make([]string, 0),
		Failed:    make([]string, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record 记录一个大学的结果, 同名条目以最新结果为准
func (c *Checkpoint) Record(name string, ok bool) {
	c.Completed = removeName(c.Completed, name)
	c.Failed = removeName(c.Failed, name)
	if ok {
		c.Completed = append(c.Completed, name)
	} else {
		c.Failed = append(c.Failed, name)
	}
	c.UpdatedAt = time.Now()
}

func removeName(list []string, name string) []string {
	out := list[:0]
	for _, n := range list {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// ToJSON 序列化为JSON
func (c *Checkpoint) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// FromJSON 从JSON反序列化
func (c *Checkpoint) FromJSON(data []byte) error {
	return json.Unmarshal(data, c)
}

// SaveToFile 保存到文件(先写临时文件再重命名)
func (c *Checkpoint) SaveToFile(path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建检查点目录失败: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCheckpointFromFile 从文件加载
func LoadCheckpointFromFile(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cp Checkpoint
	if err := cp.FromJSON(data); err != nil {
		return nil, fmt.Errorf("解析检查点失败 [%s]: %w", path, err)
	}

	return &cp, nil
}
