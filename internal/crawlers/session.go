package crawlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
)

// BrowserSession 管理一个浏览器实例的生命周期
// 同一时间只持有一个Driver; 重启会替换Driver, 调用方需重新获取
type BrowserSession struct {
	cfg     models.BrowserConfig
	factory DriverFactory
	headers models.HeaderProvider
	monitor *ResourceMonitor

	driver   Driver
	opts     LaunchOptions
	restarts int
}

// NewBrowserSession 创建会话; factory为nil时使用rod
func NewBrowserSession(cfg models.BrowserConfig, factory DriverFactory, headers models.HeaderProvider) *BrowserSession {
	if factory == nil {
		factory = NewRodDriver
	}
	return &BrowserSession{
		cfg:     cfg,
		factory: factory,
		headers: headers,
		monitor: NewResourceMonitor(cfg.MaxBrowserMemoryMB),
	}
}

// Start 启动浏览器
// 所有启动策略失败时返回 ErrBrowserUnavailable
func (s *BrowserSession) Start(ctx context.Context, headless, attach bool) (Driver, error) {
	s.opts = LaunchOptions{
		Headless:         headless,
		Attach:           attach,
		DebuggerAddress:  s.cfg.DebuggerAddress,
		UserAgent:        s.cfg.UserAgent,
		FallbackBinaries: s.cfg.FallbackBinaries,
	}

	d, err := s.launch(ctx)
	if err != nil {
		return nil, err
	}

	if s.cfg.HealthcheckOnStartup {
		if !s.HealthCheck(ctx, models.Seconds(s.cfg.StartupHealthcheckTimeout)) {
			utils.Warn("⚠️ 启动后健康检查未通过,继续运行")
		}
	}
	return d, nil
}

func (s *BrowserSession) launch(ctx context.Context) (Driver, error) {
	if s.driver != nil {
		s.Stop()
	}

	d, err := s.factory(ctx, s.opts)
	if err != nil {
		if errors.Is(err, ErrBrowserUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
	}
	s.driver = d

	s.applyHeaders(ctx)
	return d, nil
}

// applyHeaders 把header manager的头部注入浏览器请求
func (s *BrowserSession) applyHeaders(ctx context.Context) {
	if s.headers == nil {
		return
	}
	h, err := s.headers.GetHeaders()
	if err != nil {
		utils.Warnf("获取HTTP头部失败: %v", err)
		return
	}
	flat := models.FlattenHeaders(h)
	if len(flat) == 0 {
		return
	}
	if err := s.driver.SetExtraHeaders(ctx, flat); err != nil {
		utils.Warnf("设置浏览器额外头部失败: %v", err)
		return
	}
	utils.Debugf("浏览器额外头部: %s", utils.NewHeaderRedactor().RedactToString(h))
}

// Driver 当前Driver, 未启动时为nil
func (s *BrowserSession) Driver() Driver {
	return s.driver
}

// Restarts 本会话的重启次数
func (s *BrowserSession) Restarts() int {
	return s.restarts
}

// HealthCheck 检查浏览器是否可用
// document.readyState 必须为 complete 且响应不慢于阈值
func (s *BrowserSession) HealthCheck(ctx context.Context, timeout time.Duration) bool {
	if s.driver == nil {
		return false
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	state, err := s.driver.Eval(hctx, ReadyStateScript)
	elapsed := time.Since(start)
	if err != nil {
		utils.Warnf("❌ 浏览器无响应: %v", err)
		return false
	}

	if threshold := models.Seconds(s.cfg.ResponseSlowThreshold); threshold > 0 && elapsed > threshold {
		utils.Warnf("⚠️ 浏览器响应过慢 (%.2fs > %s)", elapsed.Seconds(), threshold)
		return false
	}

	if rs := jsonString(state); rs != "complete" {
		utils.Warnf("⚠️ 页面状态异常: readyState=%s", rs)
		return false
	}

	if ok, reason := s.monitor.CheckBrowser(s.driver.PID()); !ok {
		utils.Warnf("⚠️ %s", reason)
		return false
	}

	utils.Debugf("浏览器健康检查通过 (%.2fs)", elapsed.Seconds())
	return true
}

// Restart 停止后以相同参数重新启动, 并做一次健康检查
func (s *BrowserSession) Restart(ctx context.Context) (Driver, error) {
	s.restarts++
	utils.Warnf("🔄 重启浏览器 (第%d次)", s.restarts)

	s.Stop()
	if err := utils.Sleep(ctx, models.Seconds(s.cfg.RestartPauseSeconds)); err != nil {
		return nil, err
	}

	d, err := s.launch(ctx)
	if err != nil {
		return nil, err
	}

	if !s.HealthCheck(ctx, models.Seconds(s.cfg.StartupHealthcheckTimeout)) {
		utils.Warn("⚠️ 重启后健康检查未通过")
	}
	return d, nil
}

// Stop 关闭浏览器, 可重复调用
func (s *BrowserSession) Stop() {
	if s.driver == nil {
		return
	}
	if err := s.driver.Close(); err != nil {
		utils.Debugf("关闭浏览器时出错: %v", err)
	}
	s.driver = nil
}

// ClearData 清除Cookie、Web存储和缓存
// 尽力而为, 失败只记录日志
func (s *BrowserSession) ClearData(ctx context.Context) {
	if s.driver == nil {
		return
	}

	if err := s.driver.ClearCookies(ctx); err != nil {
		utils.Warnf("清除Cookie失败: %v", err)
	}
	if _, err := s.driver.Eval(ctx, ClearStorageScript); err != nil {
		utils.Warnf("清除Web存储失败: %v", err)
	}
	if err := s.driver.ClearBrowserCache(ctx); err != nil {
		utils.Warnf("清除浏览器缓存失败: %v", err)
	}
	utils.Debug("🧹 浏览器数据已清除")
}
