package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/core"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/extract"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/spf13/cobra"
)

// 子命令参数
var (
	pageType      string
	namesFile     string
	retryFailed   bool
	auditTarget   string
	catalogSource string
	catalogOutput string
	extractorName string
	extractType   string
)

var downloadCmd = &cobra.Command{
	Use:   "download <大学名称>",
	Short: "下载一个大学的所有页面 (或 --page-type 指定的单个页面)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		downloader, _, err := newDownloader()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		if pageType != "" {
			pt, err := models.ParsePageType(pageType)
			if err != nil {
				return err
			}
			path, err := downloader.DownloadPage(ctx, args[0], pt)
			if errors.Is(err, core.ErrUniversityNotFound) {
				utils.Errorf("❌ %v", err)
				return nil
			}
			if err != nil {
				return err
			}
			if path == "" {
				utils.Warnf("⚠️ %s 页面未保存", pt.DisplayName())
				return nil
			}
			fmt.Println(path)
			return nil
		}

		files, err := downloader.DownloadUniversity(ctx, args[0])
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		utils.Infof("✨ 完成: %d 个文件", len(files))
		return nil
	},
}

var downloadAllCmd = &cobra.Command{
	Use:   "download-all",
	Short: "按目录(或 --names-file)批量下载",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ValidateBatchFlags(namesFile, retryFailed); err != nil {
			return err
		}

		downloader, catalog, err := newDownloader()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		batch := core.NewBatchDownloader(downloader, appConfig)
		var report *models.BatchReport
		if retryFailed || namesFile != "" {
			names, err := batchNames()
			if err != nil {
				return err
			}
			if len(names) == 0 {
				utils.Info("没有需要下载的大学")
				return nil
			}
			report, err = batch.DownloadAll(ctx, names)
			if err != nil {
				return fmt.Errorf("批量下载中止: %w", err)
			}
		} else {
			report, err = batch.DownloadRecords(ctx, catalog.List())
			if err != nil {
				return fmt.Errorf("批量下载中止: %w", err)
			}
		}
		if report.Failed == 0 && report.Empty == 0 && !report.Cancelled {
			batch.RemoveCheckpoint()
		}

		utils.Info("✨ 批量下载任务完成!")
		return nil
	},
}

// batchNames 下载列表: --retry-failed 优先, 其次 --names-file
func batchNames() ([]string, error) {
	if retryFailed {
		names, err := core.FailedFromCheckpoint(appConfig.Download.CheckpointFile)
		if err != nil {
			return nil, fmt.Errorf("读取检查点失败: %w", err)
		}
		utils.Infof("🔁 重试上次失败的 %d 所大学", len(names))
		return names, nil
	}
	return utils.ReadLinesFromFile(namesFile)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出目录中的大学",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := core.LoadCatalog(appConfig.Catalog.Path, appConfig.Catalog.MatchMode)
		if err != nil {
			return err
		}
		for i, r := range catalog.List() {
			fmt.Printf("%4d. %s  %s\n", i+1, r.Name, r.URLPath)
		}
		fmt.Printf("\n共 %d 所大学\n", catalog.Len())
		return nil
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "检查已下载HTML的登录状态、错误页和付费提示",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		auditor := core.NewAuditor(appConfig.Download.DownloadsDir)
		auditor.ShowProgress = true
		report, err := auditor.Scan(ctx, auditTarget)
		if err != nil {
			return err
		}

		core.PrintAuditSummary(report)
		path, err := utils.NewReporter("").SaveJSON(appConfig.Audit.Output, report)
		if err != nil {
			return err
		}
		utils.Infof("📄 检查报告: %s", path)
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "大学目录工具",
}

var catalogBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "从保存的排名页(本地文件或URL)生成大学目录",
	RunE: func(cmd *cobra.Command, args []string) error {
		if catalogSource == "" {
			return fmt.Errorf("需要 --source 指定排名页")
		}

		hm, err := newHeaderManager()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		fetcher := crawlers.NewStaticFetcher(models.Seconds(appConfig.Browser.PageLoadTimeout), hm)
		records, err := core.NewCatalogBuilder(fetcher).Build(ctx, catalogSource)
		if err != nil {
			return err
		}

		output := catalogOutput
		if output == "" {
			output = appConfig.Catalog.Path
		}
		return core.WriteCatalog(output, records)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "从已保存的页面抽取字段",
	RunE: func(cmd *cobra.Command, args []string) error {
		pt, err := models.ParsePageType(extractType)
		if err != nil {
			return err
		}

		name := extractorName
		if name == "" {
			name = appConfig.Extract.Extractor
		}
		extractor, err := extract.DefaultRegistry().Get(name)
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		fetcher := crawlers.NewStaticFetcher(0, nil)
		runner := extract.NewRunner(fetcher, extractor, appConfig.Download.DownloadsDir, appConfig.Extract.OutputDir)
		runner.ShowProgress = true
		_, _, err = runner.Run(ctx, pt)
		return err
	},
}

var loginCheckCmd = &cobra.Command{
	Use:   "login-check",
	Short: "打开登录检查页面并显示当前会话的登录状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("配置无效: %w", err)
		}
		hm, err := newHeaderManager()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		downloader := core.NewDownloader(appConfig, core.NewCatalog(nil, appConfig.Catalog.MatchMode), nil, hm)
		check, err := downloader.CheckLogin(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("登录状态: %s\n", check.State)
		fmt.Printf("Premium:  %v\n", check.Premium)
		if check.Canonical != "" {
			fmt.Printf("Canonical: %s\n", check.Canonical)
		}
		fmt.Printf("依据: %s\n", check.Reason)
		return nil
	},
}

// newHeaderManager 浏览器和静态读取器共用的头部
func newHeaderManager() (*core.HeaderManager, error) {
	hm, err := core.NewHeaderManager(appConfig.Headers.File, headers, appConfig.Browser.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	return hm, nil
}

// newDownloader 验证配置并加载目录
func newDownloader() (*core.Downloader, *core.Catalog, error) {
	if err := appConfig.Validate(); err != nil {
		return nil, nil, fmt.Errorf("配置无效: %w", err)
	}

	catalog, err := core.LoadCatalog(appConfig.Catalog.Path, appConfig.Catalog.MatchMode)
	if err != nil {
		return nil, nil, err
	}

	hm, err := newHeaderManager()
	if err != nil {
		return nil, nil, err
	}
	if _, err := hm.GetHeaders(); err != nil {
		return nil, nil, fmt.Errorf("HTTP头部配置无效: %w", err)
	}

	if _, err := os.Stat(appConfig.Download.DownloadsDir); os.IsNotExist(err) {
		utils.Infof("📁 下载目录将被创建: %s", appConfig.Download.DownloadsDir)
	}
	return core.NewDownloader(appConfig, catalog, nil, hm), catalog, nil
}

func init() {
	downloadCmd.Flags().StringVarP(&pageType, "page-type", "p", "", "只下载一个页面类型 (main|overall-rankings|applying|paying|academics|student-life|campus-info)")

	downloadAllCmd.Flags().StringVarP(&namesFile, "names-file", "f", "", "大学名称列表文件 (每行一个)")
	downloadAllCmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "只重试检查点中记录的失败大学")

	auditCmd.Flags().StringVarP(&auditTarget, "university", "u", "", "只检查一个大学")

	catalogBuildCmd.Flags().StringVarP(&catalogSource, "source", "s", "", "排名页 (本地HTML文件或http(s) URL)")
	catalogBuildCmd.Flags().StringVarP(&catalogOutput, "output", "o", "", "输出文件 (默认 catalog.path)")
	catalogCmd.AddCommand(catalogBuildCmd)

	extractCmd.Flags().StringVarP(&extractorName, "extractor", "e", "", "抽取器名称 (默认 extract.extractor)")
	extractCmd.Flags().StringVarP(&extractType, "page-type", "p", "main", "要抽取的页面类型")
}
