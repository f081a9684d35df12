package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/core"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string // 自定义HTTP请求头
	validateConfig bool     // 验证配置文件

	// 覆盖配置文件的参数
	downloadsDir    string
	catalogPath     string
	headless        bool
	attach          bool
	debuggerAddress string
	preserveLogin   bool
	verifyLogin     bool
	noTruncate      bool
)

// appConfig 在 PersistentPreRunE 中加载, 已合并命令行参数
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "usnewscrawl",
	Short: "US News 大学详情页下载工具",
	Long: `usnewscrawl - US News 大学详情页HTML下载与检查工具

功能:
  • 按大学目录下载7种详情页 (main, overall-rankings, applying, paying,
    academics, student-life, campus-info)
  • 从已登录的Chrome回放会话 (--preserve-login)
  • 内容哈希去重, 重复运行不重写未变化的文件
  • 检查已下载页面的登录状态和错误页
  • 从排名页生成大学目录, 从已保存页面抽取字段

示例:
  # 下载单个大学
  usnewscrawl download "Example University"

  # 使用已登录的Chrome (chrome --remote-debugging-port=9222)
  usnewscrawl download-all --preserve-login --verify-login

  # 自定义HTTP头部
  usnewscrawl download "Example" -H "Accept-Language: en-US"

  # 验证配置文件
  usnewscrawl --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		config.MergeCLIFlags(cliOverrides(cmd))

		if err := utils.InitLogger(config.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}
		logCommand(cmd, args)

		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateConfig {
			return runValidateConfig(appConfig)
		}
		return cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("usnewscrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// logCommand 在cli组件日志中记录执行的命令
func logCommand(cmd *cobra.Command, args []string) {
	logger := utils.Component("cli")
	logger.Debug().Str("command", cmd.CommandPath()).Strs("args", args).Msg("执行命令")
}

// cliOverrides 只有显式传入的布尔参数才覆盖配置
func cliOverrides(cmd *cobra.Command) core.CLIOverrides {
	flags := cmd.Flags()
	boolFlag := func(name string, value bool) *bool {
		if !flags.Changed(name) {
			return nil
		}
		v := value
		return &v
	}

	level := logLevel
	if verbose && level == "" {
		level = "debug"
	}

	return core.CLIOverrides{
		DownloadsDir:    downloadsDir,
		CatalogPath:     catalogPath,
		Headless:        boolFlag("headless", headless),
		Attach:          boolFlag("attach", attach),
		DebuggerAddress: debuggerAddress,
		PreserveLogin:   boolFlag("preserve-login", preserveLogin),
		VerifyLogin:     boolFlag("verify-login", verifyLogin),
		NoTruncate:      noTruncate,
		LogLevel:        level,
	}
}

// signalContext Ctrl+C 取消ctx; 之后恢复默认行为, 再次 Ctrl+C 直接退出
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			utils.Warn("⏹️ 收到中断信号,当前大学完成后停止 (再次按 Ctrl+C 立即退出)")
			signal.Stop(sigCh)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径 (默认 configs/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证配置文件正确性")

	// 配置覆盖
	rootCmd.PersistentFlags().StringVar(&downloadsDir, "downloads-dir", "", "下载目录")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "大学目录文件 (JSON)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.PersistentFlags().BoolVar(&attach, "attach", false, "直接使用 --debugger-address 上已打开的Chrome")
	rootCmd.PersistentFlags().StringVar(&debuggerAddress, "debugger-address", "", "现有Chrome的调试地址 (如 127.0.0.1:9222)")
	rootCmd.PersistentFlags().BoolVar(&preserveLogin, "preserve-login", false, "从现有Chrome抓取登录会话并回放")
	rootCmd.PersistentFlags().BoolVar(&verifyLogin, "verify-login", false, "保存前检查页面登录状态")
	rootCmd.PersistentFlags().BoolVar(&noTruncate, "no-truncate", false, "不在推荐组件处截断页面")

	// 添加子命令
	rootCmd.AddCommand(
		downloadCmd,
		downloadAllCmd,
		listCmd,
		auditCmd,
		catalogCmd,
		extractCmd,
		loginCheckCmd,
		versionCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
