package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// UniversityRecord 大学目录条目
type UniversityRecord struct {
	Name    string `json:"name"`
	URLPath string `json:"link"` // 站内相对路径,如 /best-colleges/example-university-1234
}

// PageType 大学详情页类型
type PageType string

const (
	PageMain            PageType = ""
	PageOverallRankings PageType = "overall-rankings"
	PageApplying        PageType = "applying"
	PagePaying          PageType = "paying"
	PageAcademics       PageType = "academics"
	PageStudentLife     PageType = "student-life"
	PageCampusInfo      PageType = "campus-info"
)

// AllPageTypes 固定的下载顺序
var AllPageTypes = []PageType{
	PageMain,
	PageOverallRankings,
	PageApplying,
	PagePaying,
	PageAcademics,
	PageStudentLife,
	PageCampusInfo,
}

// IsMain 是否为主页(概览页)
func (p PageType) IsMain() bool {
	return p == PageMain
}

// DisplayName 日志中显示的名称
func (p PageType) DisplayName() string {
	if p.IsMain() {
		return "main"
	}
	return string(p)
}

// Filename 保存的文件名: main.html 或 academics.html / student_life.html
func (p PageType) Filename() string {
	if p.IsMain() {
		return "main.html"
	}
	return strings.ReplaceAll(string(p), "-", "_") + ".html"
}

// Segment URL最后一段路径,主页为空
func (p PageType) Segment() string {
	return string(p)
}

// ParsePageType 解析命令行传入的页面类型
func ParsePageType(s string) (PageType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "main" {
		return PageMain, nil
	}
	for _, pt := range AllPageTypes {
		if string(pt) == s {
			return pt, nil
		}
	}
	names := make([]string, 0, len(AllPageTypes))
	for _, pt := range AllPageTypes {
		names = append(names, pt.DisplayName())
	}
	return PageMain, fmt.Errorf("不支持的页面类型 %q (可选: %s)", s, strings.Join(names, ", "))
}

// DownloadTarget 一次下载的目标: URL与本地保存位置
type DownloadTarget struct {
	University UniversityRecord
	PageType   PageType
	URL        string
	Dir        string
	Filename   string
}

// Path 完整文件路径
func (t DownloadTarget) Path() string {
	return filepath.Join(t.Dir, t.Filename)
}

// NewDownloadTarget 由(大学, 页面类型)推导URL和保存路径
// 纯函数: 不含时间戳或计数器,重复运行得到相同路径
func NewDownloadTarget(baseURL, downloadsDir string, record UniversityRecord, pageType PageType) DownloadTarget {
	return DownloadTarget{
		University: record,
		PageType:   pageType,
		URL:        BuildPageURL(baseURL, record.URLPath, pageType),
		Dir:        UniversityDir(downloadsDir, record.Name),
		Filename:   pageType.Filename(),
	}
}

// BuildPageURL origin + path + "/" + pageType, 主页不带尾部斜杠
func BuildPageURL(baseURL, urlPath string, pageType PageType) string {
	base := strings.TrimRight(baseURL, "/")
	path := urlPath
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	if pageType.IsMain() {
		return base + path
	}
	return base + path + "/" + pageType.Segment()
}

// UniversityDir 大学的下载目录
func UniversityDir(downloadsDir, name string) string {
	return filepath.Join(downloadsDir, Slugify(name))
}

// Slugify 将大学名称转换为目录名, 保留Unicode字母和数字
// 名称不同但slug相同的大学会共用一个目录
func Slugify(name string) string {
	s := strings.ReplaceAll(name, " ", "_")
	s = strings.ReplaceAll(s, "&", "and")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, ".", "")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsNumber(r):
			b.WriteRune(r)
		case r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
