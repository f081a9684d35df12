package utils

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter JSON报告写入器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告写入器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// SaveBatchReport 保存批量下载报告, 返回文件路径
func (r *Reporter) SaveBatchReport(report *models.BatchReport) (string, error) {
	name := fmt.Sprintf("batch_%s.json", report.RunID)
	return r.SaveJSON(name, report)
}

// SaveJSON 将数据以缩进JSON保存到报告目录
// name 为绝对路径时直接使用
func (r *Reporter) SaveJSON(name string, data interface{}) (string, error) {
	path := name
	if !filepath.IsAbs(name) {
		path = filepath.Join(r.outputDir, name)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := WriteFileAtomic(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return path, nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
