// Package crawlertest 提供脚本化的内存Driver, 用于不启动Chrome的测试
package crawlertest

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/ysmood/gson"
)

// Response 一次导航的脚本化结果
type Response struct {
	HTML     string
	FinalURL string // 为空时等于请求URL
	Status   int    // 0 表示 200
	NoStatus bool   // 页面没有状态码 (XHR返回0, navigation条目没有 responseStatus)
	XHRFails bool   // 同步XHR抛出异常
	Err      error  // Navigate直接返回的错误
	Panic    bool   // Navigate时panic
}

// OK 200响应
func OK(html string) Response {
	return Response{HTML: html, Status: 200}
}

// Redirect 跳转到另一个地址的200响应
func Redirect(finalURL, html string) Response {
	return Response{HTML: html, FinalURL: finalURL, Status: 200}
}

// Status 指定状态码的响应
func Status(code int, html string) Response {
	return Response{HTML: html, Status: code}
}

// Timeout 加载超时
func Timeout() Response {
	return Response{Err: crawlers.ErrNavigationTimeout}
}

// Site 一组脚本化页面, 由它创建的所有Driver共享
// 同一URL的响应按顺序返回, 最后一个重复使用
type Site struct {
	mu sync.Mutex

	pages  map[string][]Response
	served map[string]int
	visits []string

	drivers  []*Driver
	launches int

	// LaunchErr 非nil时Factory直接返回该错误
	LaunchErr error
	// ReadyState 健康检查返回值, 默认 complete
	ReadyState string

	// 供Capture读取的已登录状态
	cookies []models.Cookie
	storage map[string]map[models.StorageKind]map[string]string

	setCookieCalls int
	storageWrites  int
}

// NewSite 创建空站点
// 没有注册的 origin 根路径返回空白200页面, 其他地址返回404
func NewSite() *Site {
	return &Site{
		pages:   make(map[string][]Response),
		served:  make(map[string]int),
		storage: make(map[string]map[models.StorageKind]map[string]string),
	}
}

// Serve 注册URL的响应序列
func (s *Site) Serve(rawURL string, responses ...Response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[rawURL] = responses
	s.served[rawURL] = 0
}

// LoggedIn 设置供Capture读取的Cookie与存储
func (s *Site) LoggedIn(cookies []models.Cookie, origin string, kind models.StorageKind, entries map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = append(s.cookies, cookies...)
	if len(entries) == 0 {
		return
	}
	o := models.NormalizeOrigin(origin)
	if s.storage[o] == nil {
		s.storage[o] = make(map[models.StorageKind]map[string]string)
	}
	s.storage[o][kind] = entries
}

// Factory 每次调用创建一个新Driver
func (s *Site) Factory() crawlers.DriverFactory {
	return func(ctx context.Context, opts crawlers.LaunchOptions) (crawlers.Driver, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.LaunchErr != nil {
			return nil, s.LaunchErr
		}
		s.launches++
		d := &Driver{site: s, opts: opts, current: "about:blank", status: 200, hasStatus: true}
		s.drivers = append(s.drivers, d)
		return d, nil
	}
}

// Launches Driver创建次数(启动+重启)
func (s *Site) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches
}

// Visits 所有导航过的URL
func (s *Site) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// VisitCount 某个URL被导航的次数
func (s *Site) VisitCount(rawURL string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.visits {
		if v == rawURL {
			n++
		}
	}
	return n
}

// Drivers 已创建的Driver
func (s *Site) Drivers() []*Driver {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Driver(nil), s.drivers...)
}

// SetCookieCalls SetCookies调用次数
func (s *Site) SetCookieCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCookieCalls
}

// StorageWrites 写入的存储条目总数
func (s *Site) StorageWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storageWrites
}

func (s *Site) next(rawURL string) Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visits = append(s.visits, rawURL)

	responses, ok := s.pages[rawURL]
	if !ok || len(responses) == 0 {
		if u, err := url.Parse(rawURL); err == nil && (u.Path == "" || u.Path == "/") {
			return OK("<html><head></head><body></body></html>")
		}
		return Status(404, "<html><body><h1>404 Not Found</h1></body></html>")
	}

	i := s.served[rawURL]
	if i >= len(responses) {
		i = len(responses) - 1
	}
	s.served[rawURL]++
	return responses[i]
}

// Driver 脚本化Driver
type Driver struct {
	site *Site
	opts crawlers.LaunchOptions

	mu        sync.Mutex
	current   string
	html      string
	status    int
	hasStatus bool
	xhrFails  bool
	closed    bool

	cookies []models.Cookie
	storage map[string]map[models.StorageKind]map[string]string
	headers map[string]string
	cleared int
}

var errClosed = errors.New("driver已关闭")

// Options 启动参数
func (d *Driver) Options() crawlers.LaunchOptions {
	return d.opts
}

// Closed 是否已关闭
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// AppliedCookies 写入本Driver的Cookie
func (d *Driver) AppliedCookies() []models.Cookie {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.Cookie(nil), d.cookies...)
}

// Headers 设置的额外请求头
func (d *Driver) Headers() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.headers
}

// Cleared ClearCookies调用次数
func (d *Driver) Cleared() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cleared
}

func (d *Driver) Navigate(ctx context.Context, rawURL string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	resp := d.site.next(rawURL)
	if resp.Panic {
		panic(fmt.Sprintf("脚本化崩溃: %s", rawURL))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errClosed
	}
	if resp.Err != nil {
		return resp.Err
	}

	d.current = rawURL
	if resp.FinalURL != "" {
		d.current = resp.FinalURL
	}
	d.html = resp.HTML
	d.status = resp.Status
	if d.status == 0 {
		d.status = 200
	}
	d.hasStatus = !resp.NoStatus
	d.xhrFails = resp.XHRFails
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", errClosed
	}
	return d.current, nil
}

func (d *Driver) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", errClosed
	}
	return d.html, nil
}

func (d *Driver) Eval(ctx context.Context, js string, args ...interface{}) (gson.JSON, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return gson.New(nil), errClosed
	}

	switch js {
	case crawlers.ReadyStateScript:
		d.site.mu.Lock()
		state := d.site.ReadyState
		d.site.mu.Unlock()
		if state == "" {
			state = "complete"
		}
		return gson.New(state), nil

	case crawlers.StatusProbeScript:
		if d.xhrFails {
			return gson.New(nil), errors.New("脚本化XHR异常")
		}
		if !d.hasStatus {
			return gson.New(0), nil
		}
		return gson.New(d.status), nil

	case crawlers.NavigationStatusScript:
		// 与页面脚本一致: responseStatus || 200
		if !d.hasStatus {
			return gson.New(200), nil
		}
		return gson.New(d.status), nil

	case crawlers.ReadStorageScript:
		kind := models.StorageKind(fmt.Sprint(args[0]))
		d.site.mu.Lock()
		entries := d.site.storage[models.NormalizeOrigin(d.current)][kind]
		d.site.mu.Unlock()
		out := make(map[string]interface{}, len(entries))
		for k, v := range entries {
			out[k] = v
		}
		return gson.New(out), nil

	case crawlers.WriteStorageScript:
		kind := models.StorageKind(fmt.Sprint(args[0]))
		entries, _ := args[1].(map[string]string)
		origin := models.NormalizeOrigin(d.current)
		if d.storage == nil {
			d.storage = make(map[string]map[models.StorageKind]map[string]string)
		}
		if d.storage[origin] == nil {
			d.storage[origin] = make(map[models.StorageKind]map[string]string)
		}
		d.storage[origin][kind] = entries
		d.site.mu.Lock()
		d.site.storageWrites += len(entries)
		d.site.mu.Unlock()
		return gson.New(len(entries)), nil

	case crawlers.ClearStorageScript:
		d.storage = nil
		return gson.New(true), nil
	}

	return gson.New(nil), fmt.Errorf("不支持的脚本: %.40s", js)
}

func (d *Driver) Cookies(ctx context.Context, urls []string) ([]models.Cookie, error) {
	d.site.mu.Lock()
	defer d.site.mu.Unlock()

	out := make([]models.Cookie, 0)
	for _, c := range d.site.cookies {
		for _, raw := range urls {
			u, err := url.Parse(raw)
			if err == nil && crawlers.CookieMatchesHost(c.Domain, u.Hostname()) {
				out = append(out, c)
				break
			}
		}
	}
	return out, nil
}

func (d *Driver) SetCookies(ctx context.Context, cookies []models.Cookie) error {
	d.mu.Lock()
	d.cookies = append(d.cookies, cookies...)
	d.mu.Unlock()

	d.site.mu.Lock()
	d.site.setCookieCalls++
	d.site.mu.Unlock()
	return nil
}

func (d *Driver) ClearCookies(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cookies = nil
	d.cleared++
	return nil
}

func (d *Driver) ClearBrowserCache(ctx context.Context) error {
	return nil
}

func (d *Driver) SetExtraHeaders(ctx context.Context, headers map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.headers = headers
	return nil
}

func (d *Driver) PID() int {
	return 0
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
