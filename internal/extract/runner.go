package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// Runner 对下载目录中某个页面类型的所有文件运行抽取器
type Runner struct {
	fetcher      *crawlers.StaticFetcher
	extractor    FieldExtractor
	downloadsDir string
	reporter     *utils.Reporter

	// ShowProgress 是否显示进度条
	ShowProgress bool
}

// NewRunner 创建抽取运行器, 结果写入 outputDir
func NewRunner(fetcher *crawlers.StaticFetcher, extractor FieldExtractor, downloadsDir, outputDir string) *Runner {
	return &Runner{
		fetcher:      fetcher,
		extractor:    extractor,
		downloadsDir: downloadsDir,
		reporter:     utils.NewReporter(outputDir),
	}
}

// Universities 含有该页面类型文件的大学目录(排序)
func (r *Runner) Universities(pt models.PageType) ([]string, error) {
	entries, err := os.ReadDir(r.downloadsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("读取下载目录失败: %w", err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.downloadsDir, e.Name(), pt.Filename())); err == nil {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Run 抽取所有大学的该页面类型, 单个文件失败只计入failed
// 返回报告和输出文件路径
func (r *Runner) Run(ctx context.Context, pt models.PageType) (*models.ExtractionReport, string, error) {
	dirs, err := r.Universities(pt)
	if err != nil {
		return nil, "", err
	}

	report := &models.ExtractionReport{
		Extractor:    r.extractor.Name(),
		PageType:     pt.DisplayName(),
		Universities: make(map[string]map[string]interface{}),
		Summary:      models.ExtractionSummary{TotalUniversities: len(dirs)},
	}
	if len(dirs) == 0 {
		utils.Warnf("⚠️ 没有找到包含 %s 的大学目录", pt.Filename())
	}
	utils.Infof("🔎 使用 %s 抽取 %d 所大学的 %s 页面", r.extractor.Name(), len(dirs), pt.DisplayName())

	var bar *progressbar.ProgressBar
	if r.ShowProgress {
		bar = utils.NewProgressBar(len(dirs), "抽取字段")
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return report, "", err
		}

		university := strings.ReplaceAll(dir, "_", " ")
		fields, err := r.extractFile(ctx, filepath.Join(r.downloadsDir, dir, pt.Filename()), university)
		if err != nil {
			utils.Warnf("⚠️ %s 抽取失败: %v", university, err)
			report.Summary.FailedUniversities++
		} else {
			report.Universities[university] = fields
			report.Summary.ParsedUniversities++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	name := fmt.Sprintf("%s_%s.json", r.extractor.Name(), strings.ReplaceAll(pt.DisplayName(), "-", "_"))
	path, err := r.reporter.SaveJSON(name, report)
	if err != nil {
		return report, "", err
	}

	utils.Infof("✅ 抽取完成: 成功 %d, 失败 %d, 结果: %s",
		report.Summary.ParsedUniversities, report.Summary.FailedUniversities, path)
	return report, path, nil
}

// extractFile 读取并抽取单个文件, 抽取器panic按失败处理
func (r *Runner) extractFile(ctx context.Context, path, university string) (fields Fields, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			utils.Errorf("抽取器panic: 文件=%s, 错误=%v", path, rec)
			fields, err = nil, fmt.Errorf("抽取器panic: %v", rec)
		}
	}()

	page, err := r.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	return r.extractor.Extract(string(page.Body), university)
}
