package models

import (
	"fmt"
	"time"
)

// TaskStatus 大学下载任务状态
type TaskStatus string

const (
	TaskStatusCompleted TaskStatus = "completed" // 至少保存了一个页面
	TaskStatusSkipped   TaskStatus = "skipped"   // 目录已完整,未访问网络
	TaskStatusEmpty     TaskStatus = "empty"     // 没有保存任何页面
	TaskStatusFailed    TaskStatus = "failed"    // 发生意外错误
)

// PageTypeOverride 单个页面类型的超时/重试覆盖
type PageTypeOverride struct {
	Timeout int  `mapstructure:"timeout" json:"timeout"` // 秒, 0表示使用默认
	Retries *int `mapstructure:"retries" json:"retries,omitempty"`
}

// DownloadConfig 下载编排配置
type DownloadConfig struct {
	DownloadsDir       string                      `mapstructure:"downloads_dir" json:"downloads_dir"`
	TruncateAtWidget   bool                        `mapstructure:"truncate_at_widget" json:"truncate_at_widget"`
	WaitSuccessSeconds int                         `mapstructure:"wait_success_seconds" json:"wait_success_seconds"`
	WaitSkipSeconds    int                         `mapstructure:"wait_skip_seconds" json:"wait_skip_seconds"`
	PreserveLogin      bool                        `mapstructure:"preserve_login" json:"preserve_login"`
	VerifyLogin        bool                        `mapstructure:"verify_login" json:"verify_login"`
	LoginAttempts      int                         `mapstructure:"login_attempts" json:"login_attempts"`
	SummaryEvery       int                         `mapstructure:"summary_every" json:"summary_every"`
	ReportsDir         string                      `mapstructure:"reports_dir" json:"reports_dir"`
	CheckpointFile     string                      `mapstructure:"checkpoint_file" json:"checkpoint_file"`
	PageTypeOverrides  map[string]PageTypeOverride `mapstructure:"page_type_overrides" json:"page_type_overrides"`
}

// DefaultPageRetries 未配置覆盖时每个页面类型的重试次数
const DefaultPageRetries = 1

// Override 查询页面类型的覆盖配置
// 返回 超时(0表示默认) 和 重试次数
func (c DownloadConfig) Override(pt PageType) (time.Duration, int) {
	key := pt.DisplayName()
	o, ok := c.PageTypeOverrides[key]
	if !ok && pt.IsMain() {
		o, ok = c.PageTypeOverrides[""]
	}
	if !ok {
		return 0, DefaultPageRetries
	}
	retries := DefaultPageRetries
	if o.Retries != nil {
		retries = *o.Retries
	}
	return Seconds(o.Timeout), retries
}

// Validate 验证下载配置
func (c DownloadConfig) Validate() error {
	if c.DownloadsDir == "" {
		return fmt.Errorf("下载目录不能为空")
	}
	if c.WaitSuccessSeconds < 0 || c.WaitSkipSeconds < 0 {
		return fmt.Errorf("等待时间不能为负数")
	}
	if c.LoginAttempts < 0 {
		return fmt.Errorf("登录尝试次数不能为负数")
	}
	for name, o := range c.PageTypeOverrides {
		if _, err := ParsePageType(name); err != nil {
			return fmt.Errorf("page_type_overrides: %w", err)
		}
		if o.Timeout < 0 {
			return fmt.Errorf("page_type_overrides[%s]: 超时不能为负数", name)
		}
		if o.Retries != nil && *o.Retries < 0 {
			return fmt.Errorf("page_type_overrides[%s]: 重试次数不能为负数", name)
		}
	}
	return nil
}

// BrowserConfig 浏览器会话配置 (单位: 秒)
type BrowserConfig struct {
	BaseURL                     string   `mapstructure:"base_url" json:"base_url"`
	SessionOrigins              []string `mapstructure:"session_origins" json:"session_origins"`
	Headless                    bool     `mapstructure:"headless" json:"headless"`
	Attach                      bool     `mapstructure:"attach" json:"attach"`
	DebuggerAddress             string   `mapstructure:"debugger_address" json:"debugger_address"`
	UserAgent                   string   `mapstructure:"user_agent" json:"user_agent"`
	FallbackBinaries            []string `mapstructure:"fallback_binaries" json:"fallback_binaries"`
	PageLoadTimeout             int      `mapstructure:"page_load_timeout" json:"page_load_timeout"`
	ResponseSlowThreshold       int      `mapstructure:"response_slow_threshold" json:"response_slow_threshold"`
	StartupHealthcheckTimeout   int      `mapstructure:"startup_healthcheck_timeout" json:"startup_healthcheck_timeout"`
	PreNavHealthcheckTimeout    int      `mapstructure:"pre_nav_healthcheck_timeout" json:"pre_nav_healthcheck_timeout"`
	HealthcheckOnStartup        bool     `mapstructure:"healthcheck_on_startup" json:"healthcheck_on_startup"`
	HealthcheckBeforeNavigation bool     `mapstructure:"healthcheck_before_navigation" json:"healthcheck_before_navigation"`
	OriginNavTimeout            int      `mapstructure:"origin_nav_timeout" json:"origin_nav_timeout"`
	OriginSettleSeconds         int      `mapstructure:"origin_settle_seconds" json:"origin_settle_seconds"`
	PostRenderWaitSeconds       int      `mapstructure:"post_render_wait_seconds" json:"post_render_wait_seconds"`
	NavigateRetryCount          int      `mapstructure:"navigate_retry_count" json:"navigate_retry_count"`
	RetryBackoffSeconds         int      `mapstructure:"retry_backoff_seconds" json:"retry_backoff_seconds"`
	RestartPauseSeconds         int      `mapstructure:"restart_pause_seconds" json:"restart_pause_seconds"`
	LoginCheckURL               string   `mapstructure:"login_check_url" json:"login_check_url"`
	MaxBrowserMemoryMB          int      `mapstructure:"max_browser_memory_mb" json:"max_browser_memory_mb"`
}

// Validate 验证浏览器配置
func (c BrowserConfig) Validate() error {
	if err := ValidateURL(c.BaseURL); err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	for _, origin := range c.SessionOrigins {
		if err := ValidateURL(origin); err != nil {
			return fmt.Errorf("session_origins[%s]: %w", origin, err)
		}
	}
	if c.PageLoadTimeout <= 0 {
		return fmt.Errorf("页面加载超时必须大于0")
	}
	if c.OriginNavTimeout <= 0 {
		return fmt.Errorf("origin访问超时必须大于0")
	}
	if c.NavigateRetryCount < 0 {
		return fmt.Errorf("导航重试次数不能为负数")
	}
	if c.Attach && c.DebuggerAddress == "" {
		return fmt.Errorf("附加模式需要debugger_address")
	}
	return nil
}

// Seconds 秒数转time.Duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// TaskStats 单个大学的下载统计
type TaskStats struct {
	Saved           int     `json:"saved"`            // 新写入的文件
	Unchanged       int     `json:"unchanged"`        // 内容与磁盘一致,未重写
	Duplicates      int     `json:"duplicates"`       // 与其他页面类型内容重复
	Redirected      int     `json:"redirected"`       // 被重定向到主页而跳过
	PermanentErrors int     `json:"permanent_errors"` // 永久性错误跳过
	TransientErrors int     `json:"transient_errors"` // 重试耗尽后跳过
	EmptyPages      int     `json:"empty_pages"`      // 空HTML
	BrowserRestarts int     `json:"browser_restarts"` // 浏览器重启次数
	Duration        float64 `json:"duration"`         // 秒
}

// Add 累加统计
func (s *TaskStats) Add(other TaskStats) {
	s.Saved += other.Saved
	s.Unchanged += other.Unchanged
	s.Duplicates += other.Duplicates
	s.Redirected += other.Redirected
	s.PermanentErrors += other.PermanentErrors
	s.TransientErrors += other.TransientErrors
	s.EmptyPages += other.EmptyPages
	s.BrowserRestarts += other.BrowserRestarts
	s.Duration += other.Duration
}
