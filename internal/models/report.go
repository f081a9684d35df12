package models

import (
	"encoding/json"
	"time"
)

// BatchReport 批量下载报告
type BatchReport struct {
	RunID     string             `json:"run_id"`
	StartTime time.Time          `json:"start_time"`
	EndTime   time.Time          `json:"end_time"`
	Duration  float64            `json:"duration"` // 秒
	Total     int                `json:"total"`
	Processed int                `json:"processed"`
	Succeeded int                `json:"succeeded"`
	Skipped   int                `json:"skipped"`
	Empty     int                `json:"empty"`
	Failed    int                `json:"failed"`
	Cancelled bool               `json:"cancelled"`
	Stats     TaskStats          `json:"stats"`
	Results   []UniversityResult `json:"results"`
}

// UniversityResult 单个大学的处理结果
type UniversityResult struct {
	Name     string     `json:"name"`
	Status   TaskStatus `json:"status"`
	Files    []string   `json:"files"`
	Error    string     `json:"error,omitempty"`
	Stats    TaskStats  `json:"stats"`
	Duration float64    `json:"duration"`
}

// ToJSON 序列化为JSON
func (r *BatchReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// PageCheckResult 单个HTML文件的检查结果
type PageCheckResult struct {
	University  string   `json:"university"`
	FileType    string   `json:"file_type"`
	Path        string   `json:"path"`
	IsLoggedIn  bool     `json:"is_logged_in"`
	IsPremium   bool     `json:"is_premium"`
	IsErrorPage bool     `json:"is_error_page"`
	ContentOK   bool     `json:"content_ok"`
	Issues      []string `json:"issues"`
	FileSize    int64    `json:"file_size"`
}

// AuditSummary 检查汇总
type AuditSummary struct {
	TotalFiles    int `json:"total_files"`
	LoggedInFiles int `json:"logged_in_files"`
	PremiumFiles  int `json:"premium_files"`
	ErrorPages    int `json:"error_pages"`
	ProblemPages  int `json:"problem_pages"`
	Universities  int `json:"universities"`
}

// AuditReport 下载目录检查报告
type AuditReport struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	DownloadsDir string            `json:"downloads_dir"`
	Summary      AuditSummary      `json:"summary"`
	Results      []PageCheckResult `json:"results"`
}

// ProblemPages 未登录或错误页
func (r *AuditReport) ProblemPages() []PageCheckResult {
	problems := make([]PageCheckResult, 0)
	for _, p := range r.Results {
		if !p.IsLoggedIn || p.IsErrorPage {
			problems = append(problems, p)
		}
	}
	return problems
}

// ExtractionSummary 字段抽取汇总
type ExtractionSummary struct {
	TotalUniversities  int `json:"total_universities"`
	ParsedUniversities int `json:"parsed_universities"`
	FailedUniversities int `json:"failed_universities"`
}

// ExtractionReport 字段抽取输出
type ExtractionReport struct {
	Extractor    string                            `json:"extractor"`
	PageType     string                            `json:"page_type"`
	Universities map[string]map[string]interface{} `json:"universities"`
	Summary      ExtractionSummary                 `json:"summary"`
}
