package crawlers

import (
	"context"
	"errors"
	"time"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/ysmood/gson"
)

// 错误类型定义
var (
	ErrBrowserUnavailable = errors.New("无法启动浏览器")
	ErrNavigationTimeout  = errors.New("页面加载超时")
	ErrBrowserCrashed     = errors.New("浏览器崩溃")
	ErrSessionNotStarted  = errors.New("浏览器会话未启动")
)

// Driver 单个浏览器标签页的操作接口
// 生产实现基于rod, 测试使用 crawlertest 中的脚本化实现
type Driver interface {
	// Navigate 打开URL并等待DOMContentLoaded
	// 超时返回 ErrNavigationTimeout
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	CurrentURL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error)

	Cookies(ctx context.Context, urls []string) ([]models.Cookie, error)
	SetCookies(ctx context.Context, cookies []models.Cookie) error
	ClearCookies(ctx context.Context) error
	ClearBrowserCache(ctx context.Context) error
	SetExtraHeaders(ctx context.Context, headers map[string]string) error

	// PID 浏览器进程ID, 附加模式下为0
	PID() int
	// Close 关闭标签页; 自己启动的浏览器会一并终止
	Close() error
}

// LaunchOptions 浏览器启动参数
type LaunchOptions struct {
	Headless         bool
	Attach           bool
	DebuggerAddress  string
	UserAgent        string
	FallbackBinaries []string
}

// DriverFactory 创建Driver; BrowserSession每次启动/重启都会调用
type DriverFactory func(ctx context.Context, opts LaunchOptions) (Driver, error)

// 页面内执行的脚本
const (
	ReadyStateScript = `() => document.readyState`

	// StatusProbeScript 同步XHR重新请求当前地址, 读取状态码
	StatusProbeScript = `() => {
		var req = new XMLHttpRequest();
		req.open('GET', window.location.href, false);
		req.send();
		return req.status;
	}`

	// NavigationStatusScript XHR抛出异常时的后备方案
	// 读不到 responseStatus 时视为页面已正常加载
	NavigationStatusScript = `() => {
		var entries = performance.getEntriesByType('navigation');
		if (entries.length > 0) {
			return entries[0].responseStatus || 200;
		}
		return 200;
	}`

	// ReadStorageScript 参数: "localStorage" 或 "sessionStorage"
	ReadStorageScript = `(kind) => {
		var out = {};
		var store = window[kind];
		if (!store) {
			return out;
		}
		for (var i = 0; i < store.length; i++) {
			var k = store.key(i);
			out[k] = store.getItem(k);
		}
		return out;
	}`

	// WriteStorageScript 参数: kind, {key: value}; 返回写入条数
	WriteStorageScript = `(kind, entries) => {
		var store = window[kind];
		var n = 0;
		if (!store) {
			return n;
		}
		for (var k in entries) {
			try {
				store.setItem(k, entries[k]);
				n++;
			} catch (e) {
				// ignore
			}
		}
		return n;
	}`

	ClearStorageScript = `() => {
		if (typeof localStorage !== 'undefined' && localStorage !== null) {
			try {
				localStorage.clear();
			} catch (e) {
				// ignore
			}
		}
		if (typeof sessionStorage !== 'undefined' && sessionStorage !== null) {
			try {
				sessionStorage.clear();
			} catch (e) {
				// ignore
			}
		}
		return true;
	}`
)
