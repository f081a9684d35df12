package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Download models.DownloadConfig `mapstructure:"download"`
	Browser  models.BrowserConfig  `mapstructure:"browser"`
	Catalog  CatalogConfig         `mapstructure:"catalog"`
	Audit    AuditConfig           `mapstructure:"audit"`
	Extract  ExtractConfig         `mapstructure:"extract"`
	Headers  HeadersConfig         `mapstructure:"headers"`
	Logging  LoggingConfig         `mapstructure:"logging"`
}

// CatalogConfig 大学目录配置
type CatalogConfig struct {
	Path      string `mapstructure:"path"`
	MatchMode string `mapstructure:"match_mode"` // exact-first | substring
}

// AuditConfig 下载检查配置
type AuditConfig struct {
	Output string `mapstructure:"output"`
}

// ExtractConfig 字段抽取配置
type ExtractConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Extractor string `mapstructure:"extractor"`
}

// HeadersConfig 额外请求头配置
type HeadersConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// LoadConfig 加载配置文件
// 找不到配置文件时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".usnewscrawl"))
		}
	}

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 下载
	v.SetDefault("download.downloads_dir", "downloads")
	v.SetDefault("download.truncate_at_widget", true)
	v.SetDefault("download.wait_success_seconds", 10)
	v.SetDefault("download.wait_skip_seconds", 2)
	v.SetDefault("download.preserve_login", false)
	v.SetDefault("download.verify_login", false)
	v.SetDefault("download.login_attempts", 3)
	v.SetDefault("download.summary_every", 10)
	v.SetDefault("download.reports_dir", "reports")
	v.SetDefault("download.checkpoint_file", "reports/checkpoint.json")
	v.SetDefault("download.page_type_overrides", map[string]interface{}{})

	// 浏览器
	v.SetDefault("browser.base_url", "https://premium.usnews.com")
	v.SetDefault("browser.session_origins", []string{"https://www.usnews.com", "https://premium.usnews.com"})
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.attach", false)
	v.SetDefault("browser.debugger_address", "127.0.0.1:9222")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.fallback_binaries", []string{})
	v.SetDefault("browser.page_load_timeout", 20)
	v.SetDefault("browser.response_slow_threshold", 10)
	v.SetDefault("browser.startup_healthcheck_timeout", 10)
	v.SetDefault("browser.pre_nav_healthcheck_timeout", 30)
	v.SetDefault("browser.healthcheck_on_startup", true)
	v.SetDefault("browser.healthcheck_before_navigation", false)
	v.SetDefault("browser.origin_nav_timeout", 30)
	v.SetDefault("browser.origin_settle_seconds", 1)
	v.SetDefault("browser.post_render_wait_seconds", 4)
	v.SetDefault("browser.navigate_retry_count", 1)
	v.SetDefault("browser.retry_backoff_seconds", 60)
	v.SetDefault("browser.restart_pause_seconds", 2)
	v.SetDefault("browser.login_check_url", "https://premium.usnews.com/best-colleges")
	v.SetDefault("browser.max_browser_memory_mb", 0)

	// 目录
	v.SetDefault("catalog.path", "data/universities.json")
	v.SetDefault("catalog.match_mode", MatchExactFirst)

	// 检查与抽取
	v.SetDefault("audit.output", "reports/html_status.json")
	v.SetDefault("extract.output_dir", "data/extracted")
	v.SetDefault("extract.extractor", "page-meta")

	v.SetDefault("headers.file", "configs/headers.yaml")

	// 日志
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Download.Validate(); err != nil {
		return fmt.Errorf("download: %w", err)
	}
	if err := c.Browser.Validate(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	if c.Catalog.MatchMode != MatchExactFirst && c.Catalog.MatchMode != MatchSubstring {
		return fmt.Errorf("catalog.match_mode 无效: %q (可选: %s, %s)", c.Catalog.MatchMode, MatchExactFirst, MatchSubstring)
	}
	return nil
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// CLIOverrides 命令行覆盖项, 零值表示未设置
type CLIOverrides struct {
	DownloadsDir    string
	CatalogPath     string
	Headless        *bool
	Attach          *bool
	DebuggerAddress string
	PreserveLogin   *bool
	VerifyLogin     *bool
	NoTruncate      bool
	LogLevel        string
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(o CLIOverrides) {
	if o.DownloadsDir != "" {
		c.Download.DownloadsDir = o.DownloadsDir
	}
	if o.CatalogPath != "" {
		c.Catalog.Path = o.CatalogPath
	}
	if o.Headless != nil {
		c.Browser.Headless = *o.Headless
	}
	if o.Attach != nil {
		c.Browser.Attach = *o.Attach
	}
	if o.DebuggerAddress != "" {
		c.Browser.DebuggerAddress = o.DebuggerAddress
	}
	if o.PreserveLogin != nil {
		c.Download.PreserveLogin = *o.PreserveLogin
	}
	if o.VerifyLogin != nil {
		c.Download.VerifyLogin = *o.VerifyLogin
	}
	if o.NoTruncate {
		c.Download.TruncateAtWidget = false
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
}
