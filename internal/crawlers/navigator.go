package crawlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
)

// NavigateOptions 单次抓取的参数
type NavigateOptions struct {
	Timeout time.Duration // 0 使用 browser.page_load_timeout
	Retries int           // 超时/异常后的重试次数, 负数使用 browser.navigate_retry_count
}

// DefaultNavigateOptions 全部使用配置默认值
func DefaultNavigateOptions() NavigateOptions {
	return NavigateOptions{Retries: -1}
}

// Navigator 在BrowserSession上抓取页面并分类结果
type Navigator struct {
	session *BrowserSession
	cfg     models.BrowserConfig
}

// NewNavigator 创建导航器
func NewNavigator(session *BrowserSession, cfg models.BrowserConfig) *Navigator {
	return &Navigator{session: session, cfg: cfg}
}

// Navigate 打开URL并返回分类后的结果
// 超时或驱动异常时重启浏览器重试; 页面级错误(状态码/CDN)直接返回, 由调用方决定
func (n *Navigator) Navigate(ctx context.Context, url string, opts NavigateOptions) models.FetchOutcome {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = models.Seconds(n.cfg.PageLoadTimeout)
	}
	retries := opts.Retries
	if retries < 0 {
		retries = n.cfg.NavigateRetryCount
	}

	for attempt := 1; ; attempt++ {
		outcome, err := n.attempt(ctx, url, timeout)
		if err == nil {
			outcome.Attempts = attempt
			return outcome
		}

		if ctx.Err() != nil {
			return models.FetchOutcome{Kind: models.FetchTransient, Err: ctx.Err(), Attempts: attempt}
		}

		kind := models.FetchTransient
		if errors.Is(err, ErrNavigationTimeout) {
			kind = models.FetchTimeout
		}

		if attempt > retries {
			utils.Warnf("❌ 加载失败,重试已用尽 (%d/%d): %s: %v", attempt, retries+1, url, err)
			return models.FetchOutcome{Kind: kind, Err: err, Attempts: attempt}
		}

		utils.Warnf("⚠️ 加载异常 (%d/%d): %s: %v", attempt, retries+1, url, err)
		if _, rerr := n.session.Restart(ctx); rerr != nil {
			return models.FetchOutcome{Kind: models.FetchTransient, Err: rerr, Attempts: attempt}
		}
	}
}

// attempt 单次尝试; 驱动的panic转换为 ErrBrowserCrashed
func (n *Navigator) attempt(ctx context.Context, url string, timeout time.Duration) (outcome models.FetchOutcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("浏览器操作panic: URL=%s, 错误=%v", url, r)
			err = fmt.Errorf("%w: %v", ErrBrowserCrashed, r)
		}
	}()

	drv := n.session.Driver()
	if drv == nil {
		return outcome, ErrSessionNotStarted
	}

	if n.cfg.HealthcheckBeforeNavigation &&
		!n.session.HealthCheck(ctx, models.Seconds(n.cfg.PreNavHealthcheckTimeout)) {
		if drv, err = n.session.Restart(ctx); err != nil {
			return outcome, err
		}
	}

	utils.Debugf("访问页面: %s", url)
	if err := drv.Navigate(ctx, url, timeout); err != nil {
		return outcome, err
	}

	if err := utils.Sleep(ctx, models.Seconds(n.cfg.PostRenderWaitSeconds)); err != nil {
		return outcome, err
	}

	html, err := drv.HTML(ctx)
	if err != nil {
		return outcome, err
	}

	info := n.GetErrorInfo(ctx, drv)
	finalURL := url
	if info != nil && info.URL != "" {
		finalURL = info.URL
	} else if current, err := drv.CurrentURL(ctx); err == nil {
		finalURL = current
	}

	outcome = models.FetchOutcome{Kind: models.FetchLoaded, HTML: html, FinalURL: finalURL, Error: info}
	if info != nil {
		outcome.Kind = models.FetchTransient
		if IsPermanentError(info) {
			outcome.Kind = models.FetchPermanent
		}
		utils.Debugf("页面错误 [%s]: %s (%s)", url, info, outcome.Kind)
	}
	return outcome, nil
}

// GetErrorInfo 读取当前页面的URL、状态码和内容并分类
// 正常页面返回nil
func (n *Navigator) GetErrorInfo(ctx context.Context, drv Driver) *models.ErrorInfo {
	body, err := drv.HTML(ctx)
	if err != nil {
		utils.Debugf("读取页面内容失败: %v", err)
	}
	current, err := drv.CurrentURL(ctx)
	if err != nil {
		utils.Debugf("读取当前URL失败: %v", err)
	}
	status, hasStatus := responseStatus(ctx, drv)
	return ClassifyResponse(current, body, status, hasStatus)
}

// responseStatus 先用同步XHR探测, XHR抛出异常时再读 performance navigation 条目
// XHR正常返回0表示网络错误, 不再走后备方案
func responseStatus(ctx context.Context, drv Driver) (int, bool) {
	res, err := drv.Eval(ctx, StatusProbeScript)
	if err == nil {
		if status := jsonInt(res); status > 0 {
			return status, true
		}
		return 0, false
	}
	utils.Debugf("XHR状态探测失败: %v", err)

	res, err = drv.Eval(ctx, NavigationStatusScript)
	if err != nil {
		utils.Warnf("⚠️ 状态码确认失败: %v", err)
		return 0, false
	}
	if status := jsonInt(res); status > 0 {
		return status, true
	}
	return 0, false
}
