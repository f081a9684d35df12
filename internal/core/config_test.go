package core_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/core"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
)

const partialConfig = `download:
  downloads_dir: "custom-downloads"
  page_type_overrides:
    academics:
      timeout: 45
      retries: 2
browser:
  headless: false
catalog:
  match_mode: substring
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(partialConfig), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := core.LoadConfig(path)
	if err != nil {
		t.Fatalf("加载配置失败: %v", err)
	}

	t.Run("配置文件中的值", func(t *testing.T) {
		if cfg.Download.DownloadsDir != "custom-downloads" {
			t.Errorf("DownloadsDir = %s", cfg.Download.DownloadsDir)
		}
		if cfg.Browser.Headless {
			t.Error("Headless 应为 false")
		}
		if cfg.Catalog.MatchMode != core.MatchSubstring {
			t.Errorf("MatchMode = %s", cfg.Catalog.MatchMode)
		}
		o, ok := cfg.Download.PageTypeOverrides["academics"]
		if !ok || o.Timeout != 45 || o.Retries == nil || *o.Retries != 2 {
			t.Errorf("academics 覆盖 = %+v", o)
		}
	})

	t.Run("未设置的使用默认值", func(t *testing.T) {
		if cfg.Browser.BaseURL != "https://premium.usnews.com" {
			t.Errorf("BaseURL = %s", cfg.Browser.BaseURL)
		}
		if cfg.Browser.PageLoadTimeout != 20 || cfg.Browser.RetryBackoffSeconds != 60 {
			t.Errorf("PageLoadTimeout=%d RetryBackoffSeconds=%d", cfg.Browser.PageLoadTimeout, cfg.Browser.RetryBackoffSeconds)
		}
		if cfg.Download.WaitSuccessSeconds != 10 || cfg.Download.WaitSkipSeconds != 2 {
			t.Errorf("等待时间 = %d/%d", cfg.Download.WaitSuccessSeconds, cfg.Download.WaitSkipSeconds)
		}
		if !cfg.Download.TruncateAtWidget {
			t.Error("默认应截断推荐组件")
		}
		if len(cfg.Browser.SessionOrigins) != 2 {
			t.Errorf("SessionOrigins = %v", cfg.Browser.SessionOrigins)
		}
	})

	if err := cfg.Validate(); err != nil {
		t.Errorf("配置应有效: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*core.Config)
	}{
		{"无效的匹配模式", func(c *core.Config) { c.Catalog.MatchMode = "fuzzy" }},
		{"附加模式缺少地址", func(c *core.Config) { c.Browser.Attach = true; c.Browser.DebuggerAddress = "" }},
		{"负数等待时间", func(c *core.Config) { c.Download.WaitSkipSeconds = -1 }},
		{"未知页面类型覆盖", func(c *core.Config) {
			c.Download.PageTypeOverrides = map[string]models.PageTypeOverride{"admissions": {Timeout: 10}}
		}},
		{"无效的base_url", func(c *core.Config) { c.Browser.BaseURL = "not a url" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if err := cfg.Validate(); err != nil {
				t.Fatalf("基础配置应有效: %v", err)
			}
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("期望验证失败")
			}
		})
	}
}

func TestConfig_MergeCLIFlags(t *testing.T) {
	cfg := testConfig(t)
	headless := false
	preserve := true

	cfg.MergeCLIFlags(core.CLIOverrides{
		DownloadsDir:  "cli-downloads",
		Headless:      &headless,
		PreserveLogin: &preserve,
		NoTruncate:    true,
		LogLevel:      "debug",
	})

	if cfg.Download.DownloadsDir != "cli-downloads" {
		t.Errorf("DownloadsDir = %s", cfg.Download.DownloadsDir)
	}
	if cfg.Browser.Headless || !cfg.Download.PreserveLogin || cfg.Download.TruncateAtWidget {
		t.Errorf("布尔覆盖未生效: headless=%v preserve=%v truncate=%v",
			cfg.Browser.Headless, cfg.Download.PreserveLogin, cfg.Download.TruncateAtWidget)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s", cfg.Logging.Level)
	}
	if cfg.Browser.DebuggerAddress != "127.0.0.1:9222" {
		t.Error("未设置的参数不应覆盖配置")
	}
}
