// Package extract 从已保存的HTML中抽取字段
package extract

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Fields 一个页面的抽取结果, 直接写入JSON
type Fields map[string]interface{}

// FieldExtractor 字段抽取器
// 对能解析的畸形HTML不能panic; 无法抽取时返回错误
type FieldExtractor interface {
	Name() string
	Extract(html, university string) (Fields, error)
}

var (
	// ErrUnknownExtractor 注册表中没有该名称
	ErrUnknownExtractor = errors.New("未知的抽取器")
	// ErrEmptyPage 页面内容为空
	ErrEmptyPage = errors.New("页面内容为空")
)

// Registry 按名称管理抽取器
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]FieldExtractor
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{extractors: make(map[string]FieldExtractor)}
}

// DefaultRegistry 注册了内置抽取器的注册表
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register(NewPageMetaExtractor())
	return r
}

// Register 注册抽取器, 名称重复时返回错误
func (r *Registry) Register(e FieldExtractor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if name == "" {
		return fmt.Errorf("抽取器名称不能为空")
	}
	if _, ok := r.extractors[name]; ok {
		return fmt.Errorf("抽取器已注册: %s", name)
	}
	r.extractors[name] = e
	return nil
}

// Get 按名称查找
func (r *Registry) Get(name string) (FieldExtractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.extractors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (可选: %v)", ErrUnknownExtractor, name, r.namesLocked())
	}
	return e, nil
}

// Names 已注册的名称(排序)
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
