package models

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ContentHashSet 单个大学范围内的内容哈希集合
// 用于发现两个页面类型返回了完全相同的HTML(通常是被重定向回主页)
type ContentHashSet struct {
	hashes map[string]string // hash -> 已保存文件路径
}

// NewContentHashSet 创建哈希集合
func NewContentHashSet() *ContentHashSet {
	return &ContentHashSet{hashes: make(map[string]string)}
}

// HashContent 计算内容的SHA-256
func HashContent(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// Reset 清空集合(每个大学开始时调用)
func (s *ContentHashSet) Reset() {
	s.hashes = make(map[string]string)
}

// Add 记录哈希与对应文件
func (s *ContentHashSet) Add(hash, path string) {
	s.hashes[hash] = path
}

// Lookup 查询哈希, 返回已保存的文件路径
func (s *ContentHashSet) Lookup(hash string) (string, bool) {
	path, ok := s.hashes[hash]
	return path, ok
}

// Contains 哈希是否已存在
func (s *ContentHashSet) Contains(hash string) bool {
	_, ok := s.hashes[hash]
	return ok
}

// Len 集合大小
func (s *ContentHashSet) Len() int {
	return len(s.hashes)
}

// SeedFromDir 将目录中已存在的.html文件加入集合
// 返回加入的文件数; 目录不存在时返回0
func (s *ContentHashSet) SeedFromDir(dir string) (int, error) {
	files, err := ListHTMLFiles(dir)
	if err != nil {
		return 0, err
	}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("读取已有文件失败 [%s]: %w", path, err)
		}
		s.Add(HashContent(content), path)
	}
	return len(files), nil
}

// ListHTMLFiles 列出目录下的.html文件(按文件名排序)
// 目录不存在时返回空列表
func ListHTMLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("读取目录失败 [%s]: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".html") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
