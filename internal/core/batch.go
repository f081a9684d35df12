package core

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// BatchDownloader 批量下载器
// 按顺序逐个处理大学, 单个大学的错误不会中止批量任务
type BatchDownloader struct {
	downloader   *Downloader
	reporter     *utils.Reporter
	monitor      *crawlers.ResourceMonitor
	summaryEvery int

	checkpointFile string
	checkpoint     *models.Checkpoint

	// ShowProgress 是否显示进度条
	ShowProgress bool
}

// NewBatchDownloader 创建批量下载器
func NewBatchDownloader(downloader *Downloader, cfg *Config) *BatchDownloader {
	return &BatchDownloader{
		downloader:     downloader,
		reporter:       utils.NewReporter(cfg.Download.ReportsDir),
		monitor:        crawlers.NewResourceMonitor(cfg.Browser.MaxBrowserMemoryMB),
		summaryEvery:   cfg.Download.SummaryEvery,
		checkpointFile: cfg.Download.CheckpointFile,
		ShowProgress:   true,
	}
}

// FailedFromCheckpoint 读取上次运行失败的大学, 供 --retry-failed 使用
func FailedFromCheckpoint(path string) ([]string, error) {
	cp, err := models.LoadCheckpointFromFile(path)
	if err != nil {
		return nil, err
	}
	return cp.Failed, nil
}

// batchItem 待下载的大学; record为nil时按名称查找
type batchItem struct {
	name   string
	record *models.UniversityRecord
}

// DownloadAll 按名称批量下载
// 与目录条目名称完全相同的直接使用该条目, 其余按匹配模式查找
func (bd *BatchDownloader) DownloadAll(ctx context.Context, names []string) (*models.BatchReport, error) {
	items := make([]batchItem, 0, len(names))
	for _, name := range names {
		item := batchItem{name: name}
		if rec, ok := bd.downloader.catalog.Exact(name); ok {
			item.record = &rec
		}
		items = append(items, item)
	}
	return bd.run(ctx, items)
}

// DownloadRecords 按目录条目批量下载
func (bd *BatchDownloader) DownloadRecords(ctx context.Context, records []models.UniversityRecord) (*models.BatchReport, error) {
	items := make([]batchItem, 0, len(records))
	for i := range records {
		items = append(items, batchItem{name: records[i].Name, record: &records[i]})
	}
	return bd.run(ctx, items)
}

// run 批量下载主循环
// 取消只在两个大学之间生效; 浏览器不可用时中止并返回已完成部分的报告
func (bd *BatchDownloader) run(ctx context.Context, items []batchItem) (*models.BatchReport, error) {
	report := &models.BatchReport{
		RunID:     models.NewRunID(),
		StartTime: time.Now(),
		Total:     len(items),
		Results:   make([]models.UniversityResult, 0, len(items)),
	}
	bd.checkpoint = models.NewCheckpoint(report.RunID)

	utils.Infof("🚀 开始批量下载: %d所大学 (run %s)", len(items), report.RunID)

	var bar *progressbar.ProgressBar
	if bd.ShowProgress {
		bar = utils.NewProgressBar(len(items), "下载大学")
	}

	var fatal error
	for i, item := range items {
		if ctx.Err() != nil {
			utils.Warn("⏹️ 收到中断信号,停止批量下载")
			report.Cancelled = true
			break
		}

		utils.Infof("==================== [%d/%d] %s ====================", i+1, len(items), item.name)

		result, err := bd.downloadOne(ctx, item)
		bd.record(report, result)

		if bar != nil {
			_ = bar.Add(1)
		}

		if errors.Is(err, crawlers.ErrBrowserUnavailable) {
			utils.Error(err, "❌ 浏览器不可用,中止批量下载")
			fatal = err
			break
		}

		if bd.summaryEvery > 0 && report.Processed%bd.summaryEvery == 0 && report.Processed < len(items) {
			bd.printSummary(report, false)
		}
	}

	if bar != nil {
		_ = bar.Finish()
	}

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime).Seconds()
	bd.printSummary(report, true)

	if path, err := bd.reporter.SaveBatchReport(report); err != nil {
		utils.Warnf("保存批量报告失败: %v", err)
	} else {
		utils.Infof("📄 批量报告: %s", path)
	}

	return report, fatal
}

// downloadOne 下载单个大学并归类结果
func (bd *BatchDownloader) downloadOne(ctx context.Context, item batchItem) (models.UniversityResult, error) {
	start := time.Now()
	name := item.name
	result := models.UniversityResult{Name: name, Files: []string{}}

	// 中断信号只在两个大学之间检查, 当前大学照常完成
	var (
		dl  *UniversityDownload
		err error
	)
	uctx := context.WithoutCancel(ctx)
	if item.record != nil {
		dl, err = bd.downloader.DownloadRecord(uctx, *item.record)
	} else {
		dl, err = bd.downloader.Download(uctx, name)
	}
	result.Duration = time.Since(start).Seconds()
	if dl != nil {
		result.Name = dl.University.Name
		result.Files = dl.Files
		result.Stats = dl.Stats
	}

	switch {
	case err != nil:
		result.Status = models.TaskStatusFailed
		result.Error = err.Error()
		utils.Errorf("❌ %s 下载失败: %v", name, err)
	case dl.Skipped:
		result.Status = models.TaskStatusSkipped
	case len(dl.Files) > 0:
		result.Status = models.TaskStatusCompleted
	default:
		result.Status = models.TaskStatusEmpty
		utils.Warnf("⚠️ %s 没有保存任何页面", name)
	}
	return result, err
}

// record 更新报告和检查点
func (bd *BatchDownloader) record(report *models.BatchReport, result models.UniversityResult) {
	report.Results = append(report.Results, result)
	report.Processed++
	report.Stats.Add(result.Stats)

	switch result.Status {
	case models.TaskStatusCompleted:
		report.Succeeded++
	case models.TaskStatusSkipped:
		report.Skipped++
	case models.TaskStatusEmpty:
		report.Empty++
	case models.TaskStatusFailed:
		report.Failed++
	}

	if bd.checkpointFile == "" {
		return
	}
	ok := result.Status == models.TaskStatusCompleted || result.Status == models.TaskStatusSkipped
	bd.checkpoint.Record(result.Name, ok)
	if err := bd.checkpoint.SaveToFile(bd.checkpointFile); err != nil {
		utils.Warnf("保存检查点失败: %v", err)
	}
}

// printSummary 打印批量下载摘要
func (bd *BatchDownloader) printSummary(report *models.BatchReport, final bool) {
	title := "📊 进度摘要"
	if final {
		title = "📊 批量下载摘要"
	}

	utils.Info("==================================================")
	utils.Info(title)
	utils.Info("==================================================")
	utils.Infof("已处理: %d/%d", report.Processed, report.Total)
	utils.Infof("✅ 成功: %d", report.Succeeded)
	utils.Infof("⏭️ 已完整跳过: %d", report.Skipped)
	utils.Infof("📭 无页面: %d", report.Empty)
	utils.Infof("❌ 失败: %d", report.Failed)
	utils.Infof("📦 新保存 %d, 未变化 %d, 重复 %d, 重定向 %d",
		report.Stats.Saved, report.Stats.Unchanged, report.Stats.Duplicates, report.Stats.Redirected)
	utils.Infof("🔄 浏览器重启: %d", report.Stats.BrowserRestarts)

	if status, err := bd.monitor.GetMemoryStatus(); err == nil {
		utils.Infof("💾 系统内存: 已用 %.1f%%, 可用 %d MB (%s)",
			status.UsedPercent, status.AvailableMemory/1024/1024, status.MemoryPressure)
	}
	utils.Infof("🖥️ CPU使用率: %.1f%%", bd.monitor.CPUUsage())
	utils.Info("==================================================")

	if final && report.Failed > 0 {
		utils.Warn("失败的大学:")
		for _, r := range report.Results {
			if r.Status == models.TaskStatusFailed {
				utils.Warnf("  - %s: %s", r.Name, r.Error)
			}
		}
	}
	if final && report.Cancelled {
		utils.Warnf("⏹️ 批量下载被中断,剩余 %d 所大学未处理", report.Total-report.Processed)
	}
}

// RemoveCheckpoint 全部成功后删除检查点
func (bd *BatchDownloader) RemoveCheckpoint() {
	if bd.checkpointFile == "" {
		return
	}
	if err := os.Remove(bd.checkpointFile); err != nil && !os.IsNotExist(err) {
		utils.Debugf("删除检查点失败: %v", err)
	}
}
