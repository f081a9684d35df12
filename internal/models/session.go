package models

import (
	"net/url"
	"strings"
)

// Cookie 浏览器Cookie (字段与CDP Network.Cookie对应)
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"` // Unix秒, 0表示会话Cookie
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
}

// Key Cookie的唯一标识 (name+domain+path)
func (c Cookie) Key() string {
	return c.Name + "|" + strings.TrimPrefix(c.Domain, ".") + "|" + c.Path
}

// SessionState 从已登录浏览器抓取的会话状态
// 生命周期为一次运行,不落盘
type SessionState struct {
	Cookies        []Cookie                     `json:"cookies"`
	LocalStorage   map[string]map[string]string `json:"local_storage"`   // origin -> key -> value
	SessionStorage map[string]map[string]string `json:"session_storage"` // origin -> key -> value
}

// NewSessionState 创建空会话状态
func NewSessionState() *SessionState {
	return &SessionState{
		Cookies:        make([]Cookie, 0),
		LocalStorage:   make(map[string]map[string]string),
		SessionStorage: make(map[string]map[string]string),
	}
}

// IsEmpty 没有任何可回放的内容
func (s *SessionState) IsEmpty() bool {
	return s == nil || s.EntryCount() == 0
}

// EntryCount Cookie与存储条目总数
func (s *SessionState) EntryCount() int {
	if s == nil {
		return 0
	}
	n := len(s.Cookies)
	for _, entries := range s.LocalStorage {
		n += len(entries)
	}
	for _, entries := range s.SessionStorage {
		n += len(entries)
	}
	return n
}

// AddCookies 合并Cookie, 相同Key保留最后一次读取的值
func (s *SessionState) AddCookies(cookies []Cookie) int {
	index := make(map[string]int, len(s.Cookies))
	for i, c := range s.Cookies {
		index[c.Key()] = i
	}
	added := 0
	for _, c := range cookies {
		if i, ok := index[c.Key()]; ok {
			s.Cookies[i] = c
			continue
		}
		index[c.Key()] = len(s.Cookies)
		s.Cookies = append(s.Cookies, c)
		added++
	}
	return added
}

// SetStorage 记录某个origin的存储内容
func (s *SessionState) SetStorage(kind StorageKind, origin string, entries map[string]string) {
	if len(entries) == 0 {
		return
	}
	target := s.LocalStorage
	if kind == SessionStorageKind {
		target = s.SessionStorage
	}
	copied := make(map[string]string, len(entries))
	for k, v := range entries {
		copied[k] = v
	}
	target[NormalizeOrigin(origin)] = copied
}

// Storage 读取某个origin的存储内容
func (s *SessionState) Storage(kind StorageKind, origin string) map[string]string {
	if s == nil {
		return nil
	}
	if kind == SessionStorageKind {
		return s.SessionStorage[NormalizeOrigin(origin)]
	}
	return s.LocalStorage[NormalizeOrigin(origin)]
}

// StorageKind Web存储类型
type StorageKind string

const (
	LocalStorageKind   StorageKind = "localStorage"
	SessionStorageKind StorageKind = "sessionStorage"
)

// NormalizeOrigin 统一为 scheme://host 形式
func NormalizeOrigin(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// DedupeOrigins 去重并保持原顺序
func DedupeOrigins(origins []string) []string {
	seen := make(map[string]bool, len(origins))
	result := make([]string, 0, len(origins))
	for _, o := range origins {
		n := NormalizeOrigin(o)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		result = append(result, n)
	}
	return result
}
