package crawlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// DefaultUserAgent 固定的桌面Chrome UA
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// DefaultFallbackBinaries 系统与下载策略都失败时尝试的路径
var DefaultFallbackBinaries = []string{
	"/opt/homebrew/bin/chromium",
	"/usr/bin/chromium",
	"/usr/bin/chromium-browser",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

// rodDriver 基于rod的Driver实现
type rodDriver struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher // 附加模式下为nil
	attached bool
}

// NewRodDriver 启动(或附加到)Chrome并打开一个空白标签页
func NewRodDriver(ctx context.Context, opts LaunchOptions) (Driver, error) {
	if opts.Attach {
		return attachRodDriver(ctx, opts)
	}

	var lastErr error
	for _, strategy := range binaryStrategies(opts.FallbackBinaries) {
		bin, err := strategy.resolve()
		if err != nil {
			utils.Debugf("浏览器策略 [%s] 不可用: %v", strategy.name, err)
			lastErr = err
			continue
		}

		d, err := launchRodDriver(ctx, bin, opts)
		if err != nil {
			utils.Warnf("浏览器策略 [%s] 启动失败: %v", strategy.name, err)
			lastErr = err
			continue
		}

		utils.Infof("🌐 浏览器已启动 (策略=%s, PID=%d)", strategy.name, d.PID())
		return d, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrBrowserUnavailable, lastErr)
}

type binaryStrategy struct {
	name    string
	resolve func() (string, error)
}

// binaryStrategies 按顺序: system -> download -> fallback
func binaryStrategies(fallback []string) []binaryStrategy {
	if len(fallback) == 0 {
		fallback = DefaultFallbackBinaries
	}

	return []binaryStrategy{
		{name: "system", resolve: func() (string, error) {
			if bin, ok := launcher.LookPath(); ok {
				return bin, nil
			}
			return "", errors.New("PATH中未找到Chrome")
		}},
		{name: "download", resolve: func() (string, error) {
			return launcher.NewBrowser().Get()
		}},
		{name: "fallback", resolve: func() (string, error) {
			for _, p := range fallback {
				if info, err := os.Stat(p); err == nil && !info.IsDir() {
					return p, nil
				}
			}
			return "", fmt.Errorf("后备路径均不存在: %s", strings.Join(fallback, ", "))
		}},
	}
}

func launchRodDriver(ctx context.Context, bin string, opts LaunchOptions) (*rodDriver, error) {
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	l := launcher.New().
		Bin(bin).
		Headless(opts.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-extensions").
		Set("disable-notifications").
		Set("mute-audio").
		Set("disable-http2").
		Set("disable-quic").
		Set("blink-settings", "imagesEnabled=false").
		Set("window-size", "1920,1080").
		Set("ignore-certificate-errors").
		Set("user-agent", ua)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}

	// 阻断证书错误页, 与 --ignore-certificate-errors 配合
	if err := browser.IgnoreCertErrors(true); err != nil {
		utils.Debugf("设置忽略证书错误失败: %v", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("创建标签页失败: %w", err)
	}

	return &rodDriver{browser: browser, page: page, launcher: l}, nil
}

// attachRodDriver 连接到已运行的Chrome (--remote-debugging-port)
// 只打开并关闭自己的标签页
func attachRodDriver(ctx context.Context, opts LaunchOptions) (Driver, error) {
	addr := opts.DebuggerAddress
	if addr == "" {
		addr = "127.0.0.1:9222"
	}

	wsURL, err := launcher.ResolveURL(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: 解析调试地址失败 [%s]: %v", ErrBrowserUnavailable, addr, err)
	}

	browser := rod.New().ControlURL(wsURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("%w: 附加到浏览器失败 [%s]: %v", ErrBrowserUnavailable, addr, err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("%w: 创建标签页失败: %v", ErrBrowserUnavailable, err)
	}

	utils.Infof("🔗 已附加到现有浏览器: %s", addr)
	return &rodDriver{browser: browser, page: page, attached: true}, nil
}

// Navigate 只等待DOMContentLoaded (eager加载策略)
func (d *rodDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := d.page.Context(navCtx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)

	if err := page.Navigate(url); err != nil {
		// net::ERR_* 时Chrome已切换到错误页, 交给分类逻辑处理
		var navErr *rod.NavigationError
		if errors.As(err, &navErr) {
			utils.Debugf("导航返回网络错误 [%s]: %s", url, navErr.Reason)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", ErrNavigationTimeout, url)
		}
		return fmt.Errorf("导航失败 [%s]: %w", url, err)
	}

	wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if navCtx.Err() != nil {
		return fmt.Errorf("%w: %s (%s)", ErrNavigationTimeout, url, timeout)
	}
	return nil
}

func (d *rodDriver) CurrentURL(ctx context.Context) (string, error) {
	info, err := d.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("读取当前URL失败: %w", err)
	}
	return info.URL, nil
}

func (d *rodDriver) HTML(ctx context.Context) (string, error) {
	html, err := d.page.Context(ctx).HTML()
	if err != nil {
		return "", fmt.Errorf("读取页面HTML失败: %w", err)
	}
	return html, nil
}

func (d *rodDriver) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	res, err := d.page.Context(ctx).Eval(js, args...)
	if err != nil {
		return gson.New(nil), fmt.Errorf("执行脚本失败: %w", err)
	}
	return res.Value, nil
}

func (d *rodDriver) Cookies(ctx context.Context, urls []string) ([]models.Cookie, error) {
	raw, err := d.page.Context(ctx).Cookies(urls)
	if err != nil {
		return nil, fmt.Errorf("读取Cookie失败: %w", err)
	}

	cookies := make([]models.Cookie, 0, len(raw))
	for _, c := range raw {
		cookies = append(cookies, models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return cookies, nil
}

func (d *rodDriver) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		}
		if c.Expires > 0 {
			p.Expires = proto.TimeSinceEpoch(c.Expires)
		}
		params = append(params, p)
	}

	if err := d.page.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("写入Cookie失败: %w", err)
	}
	return nil
}

func (d *rodDriver) ClearCookies(ctx context.Context) error {
	return proto.NetworkClearBrowserCookies{}.Call(d.page.Context(ctx))
}

func (d *rodDriver) ClearBrowserCache(ctx context.Context) error {
	return proto.NetworkClearBrowserCache{}.Call(d.page.Context(ctx))
}

func (d *rodDriver) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	if len(headers) == 0 {
		return nil
	}
	dict := make([]string, 0, len(headers)*2)
	for name, value := range headers {
		dict = append(dict, name, value)
	}
	_, err := d.page.Context(ctx).SetExtraHeaders(dict)
	return err
}

func (d *rodDriver) PID() int {
	if d.launcher == nil {
		return 0
	}
	return d.launcher.PID()
}

// Close 附加模式只关闭自己的标签页
func (d *rodDriver) Close() error {
	var firstErr error

	if d.page != nil {
		if err := d.page.Close(); err != nil {
			firstErr = err
		}
	}

	if d.attached {
		return firstErr
	}

	if d.browser != nil {
		if err := d.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
	return firstErr
}
