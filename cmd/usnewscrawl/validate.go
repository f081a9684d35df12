package main

import (
	"fmt"
	"sort"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/core"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
)

// ValidateBatchFlags 验证 download-all 的参数
func ValidateBatchFlags(namesFile string, retryFailed bool) error {
	if namesFile != "" && retryFailed {
		return fmt.Errorf("--names-file 和 --retry-failed 不能同时使用")
	}
	return nil
}

// runValidateConfig 验证应用配置和HTTP头部配置, 并显示生效的头部(脱敏)
func runValidateConfig(cfg *core.Config) error {
	utils.Info("🔍 验证配置...")
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	headerManager, err := newHeaderManager()
	if err != nil {
		return err
	}
	if err := headerManager.LoadConfig(); err != nil {
		return fmt.Errorf("加载头部配置失败: %w", err)
	}
	if err := headerManager.Validate(); err != nil {
		return fmt.Errorf("头部配置验证失败: %w", err)
	}

	safeHeaders := headerManager.GetSafeHeaders()
	names := make([]string, 0, len(safeHeaders))
	for name := range safeHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	utils.Info("✅ 配置验证通过!")
	utils.Infof("下载目录: %s", cfg.Download.DownloadsDir)
	utils.Infof("大学目录: %s (%s)", cfg.Catalog.Path, cfg.Catalog.MatchMode)
	utils.Infof("基础URL: %s", cfg.Browser.BaseURL)
	utils.Infof("当前有效的HTTP头部 (%d个):", len(names))
	for _, name := range names {
		utils.Infof("  %s: %s", name, safeHeaders[name])
	}
	return nil
}
