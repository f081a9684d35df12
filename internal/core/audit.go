package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// Auditor 检查已下载的HTML: 登录状态、错误页、付费提示
type Auditor struct {
	downloadsDir string

	// ShowProgress 是否显示进度条
	ShowProgress bool
}

// NewAuditor 创建检查器
func NewAuditor(downloadsDir string) *Auditor {
	return &Auditor{downloadsDir: downloadsDir}
}

// Scan 扫描 downloads/*/*.html
// university 非空时只检查该目录(目录名, 即slug)
func (a *Auditor) Scan(ctx context.Context, university string) (*models.AuditReport, error) {
	report := &models.AuditReport{
		GeneratedAt:  time.Now(),
		DownloadsDir: a.downloadsDir,
		Results:      make([]models.PageCheckResult, 0),
	}

	entries, err := os.ReadDir(a.downloadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			utils.Warnf("下载目录不存在: %s", a.downloadsDir)
			return report, nil
		}
		return nil, fmt.Errorf("读取下载目录失败: %w", err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if university != "" && e.Name() != university && e.Name() != models.Slugify(university) {
			continue
		}
		dirs = append(dirs, e.Name())
	}
	sort.Strings(dirs)
	utils.Infof("🔍 检查 %d 所大学的下载文件", len(dirs))

	var bar *progressbar.ProgressBar
	if a.ShowProgress {
		bar = utils.NewProgressBar(len(dirs), "检查目录")
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		files, err := models.ListHTMLFiles(filepath.Join(a.downloadsDir, dir))
		if err != nil {
			return report, err
		}
		for _, path := range files {
			report.Results = append(report.Results, CheckFile(path))
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	report.Summary = summarize(report.Results, len(dirs))
	return report, nil
}

// CheckFile 检查单个文件
func CheckFile(path string) models.PageCheckResult {
	result := models.PageCheckResult{
		University: filepath.Base(filepath.Dir(path)),
		FileType:   strings.TrimSuffix(filepath.Base(path), ".html"),
		Path:       path,
		ContentOK:  true,
		Issues:     make([]string, 0),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		result.IsErrorPage = true
		result.ContentOK = false
		result.Issues = append(result.Issues, "read_error:"+err.Error())
		return result
	}
	content := string(data)
	result.FileSize = int64(len(data))

	login := DetectLoginState(content)
	if login.Canonical != "" {
		result.Issues = append(result.Issues, "canonical:"+login.Canonical)
	}
	if login.Premium {
		result.IsPremium = true
		result.Issues = append(result.Issues, "premium_by_canonical")
	}
	result.IsLoggedIn = login.LoggedIn()
	result.Issues = append(result.Issues, login.Reason)

	if hit, ok := DetectErrorPage(content); ok {
		result.IsErrorPage = true
		result.Issues = append(result.Issues, "error_hit:"+hit)
	}
	if hit, ok := DetectUpsell(content); ok {
		result.Issues = append(result.Issues, "upsell:"+hit)
	}
	return result
}

func summarize(results []models.PageCheckResult, universities int) models.AuditSummary {
	s := models.AuditSummary{TotalFiles: len(results), Universities: universities}
	for _, r := range results {
		if r.IsLoggedIn {
			s.LoggedInFiles++
		}
		if r.IsPremium {
			s.PremiumFiles++
		}
		if r.IsErrorPage {
			s.ErrorPages++
		}
		if !r.IsLoggedIn || r.IsErrorPage {
			s.ProblemPages++
		}
	}
	return s
}

// PrintAuditSummary 打印检查摘要和问题页面
func PrintAuditSummary(report *models.AuditReport) {
	s := report.Summary
	utils.Info("==================================================")
	utils.Info("📋 HTML状态检查结果")
	utils.Info("==================================================")
	utils.Infof("大学数: %d", s.Universities)
	utils.Infof("总文件数: %d", s.TotalFiles)
	utils.Infof("🔐 已登录: %d", s.LoggedInFiles)
	utils.Infof("⭐ Premium: %d", s.PremiumFiles)
	utils.Infof("❌ 错误页: %d", s.ErrorPages)
	utils.Infof("⚠️ 问题页面: %d", s.ProblemPages)

	for _, p := range report.ProblemPages() {
		utils.Warnf("  - %s/%s: logged_in=%v error=%v", p.University, p.FileType, p.IsLoggedIn, p.IsErrorPage)
	}
}
