package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
)

// Downloader 下载编排器
// 每个大学使用一个浏览器会话, 按固定顺序下载全部页面类型
type Downloader struct {
	download models.DownloadConfig
	browser  models.BrowserConfig
	catalog  *Catalog

	factory crawlers.DriverFactory
	headers models.HeaderProvider
	capture *crawlers.SessionCapture

	// 从现有浏览器抓取的登录会话, 每次运行只抓取一次
	state    *models.SessionState
	captured bool
}

// UniversityDownload 单个大学的下载结果
type UniversityDownload struct {
	University models.UniversityRecord
	Files      []string
	Pages      []models.SavedPage
	Skipped    bool // 目录已完整, 未启动浏览器
	Stats      models.TaskStats
}

// NewDownloader 创建下载器; factory为nil时使用rod
func NewDownloader(cfg *Config, catalog *Catalog, factory crawlers.DriverFactory, headers models.HeaderProvider) *Downloader {
	if factory == nil {
		factory = crawlers.NewRodDriver
	}
	return &Downloader{
		download: cfg.Download,
		browser:  cfg.Browser,
		catalog:  catalog,
		factory:  factory,
		headers:  headers,
		capture:  crawlers.NewSessionCapture(cfg.Browser),
	}
}

// SetSessionState 直接指定要回放的会话(跳过抓取)
func (d *Downloader) SetSessionState(state *models.SessionState) {
	d.state = state
	d.captured = true
}

// preserveLogin 附加模式下浏览器本身就是已登录的, 不需要回放
func (d *Downloader) preserveLogin() bool {
	return d.download.PreserveLogin && !d.browser.Attach
}

// EnsureSession 首次调用时从 debugger_address 上的浏览器抓取登录会话
// 失败只记录警告, 之后以未登录状态继续
func (d *Downloader) EnsureSession(ctx context.Context) *models.SessionState {
	if !d.preserveLogin() || d.captured {
		return d.state
	}
	d.captured = true

	utils.Infof("🔐 从现有浏览器抓取登录会话: %s", d.browser.DebuggerAddress)
	source, err := d.factory(ctx, crawlers.LaunchOptions{
		Attach:          true,
		DebuggerAddress: d.browser.DebuggerAddress,
	})
	if err != nil {
		utils.Warnf("⚠️ 无法连接现有浏览器,以未登录状态继续: %v", err)
		return nil
	}
	defer source.Close()

	state, err := d.capture.Capture(ctx, source, d.browser.SessionOrigins)
	if err != nil {
		utils.Warnf("⚠️ 会话抓取失败,以未登录状态继续: %v", err)
		return nil
	}

	utils.Infof("✅ 会话抓取完成: Cookie %d个, 存储条目 %d个", len(state.Cookies), state.EntryCount())
	d.state = state
	return d.state
}

// DownloadUniversity 下载一个大学的所有页面类型
// 返回保存(或确认未变化)的文件路径; 空列表表示全部失败, 不是错误
func (d *Downloader) DownloadUniversity(ctx context.Context, name string) ([]string, error) {
	result, err := d.Download(ctx, name)
	if errors.Is(err, ErrUniversityNotFound) {
		utils.Errorf("❌ %v", err)
		return []string{}, nil
	}
	if result == nil {
		return []string{}, err
	}
	return result.Files, err
}

// Download 与DownloadUniversity相同, 但返回完整结果
func (d *Downloader) Download(ctx context.Context, name string) (*UniversityDownload, error) {
	record, err := d.catalog.Find(name)
	if err != nil {
		return nil, err
	}
	return d.DownloadRecord(ctx, record)
}

// DownloadRecord 下载已确定的目录条目, 不再按名称查找
func (d *Downloader) DownloadRecord(ctx context.Context, record models.UniversityRecord) (*UniversityDownload, error) {
	result := &UniversityDownload{University: record, Files: make([]string, 0), Pages: make([]models.SavedPage, 0)}
	start := time.Now()
	defer func() { result.Stats.Duration = time.Since(start).Seconds() }()

	dir := models.UniversityDir(d.download.DownloadsDir, record.Name)
	existing, err := models.ListHTMLFiles(dir)
	if err != nil {
		return result, err
	}
	expected := len(models.AllPageTypes)
	if len(existing) >= expected {
		utils.Infof("⏭️ %s 已完整下载 (%d个文件),跳过", record.Name, len(existing))
		result.Files = existing
		result.Skipped = true
		return result, nil
	}
	if len(existing) > 0 {
		utils.Infof("⚠️ %s 仅部分下载 (%d/%d),继续下载剩余页面", record.Name, len(existing), expected)
	}

	utils.Infof("📚 开始下载: %s", record.Name)

	run, err := d.newRun(ctx, record)
	if err != nil {
		return result, err
	}
	defer run.close(ctx)

	for i, pt := range models.AllPageTypes {
		page, err := run.fetchPage(ctx, pt)
		if err != nil {
			result.Stats = run.stats
			result.Stats.BrowserRestarts = run.session.Restarts()
			return result, err
		}
		if page != nil {
			result.Files = append(result.Files, page.FilePath)
			result.Pages = append(result.Pages, *page)
		}

		if i == len(models.AllPageTypes)-1 {
			break
		}
		wait := models.Seconds(d.download.WaitSkipSeconds)
		if page != nil {
			wait = models.Seconds(d.download.WaitSuccessSeconds)
		}
		if err := utils.Sleep(ctx, wait); err != nil {
			result.Stats = run.stats
			result.Stats.BrowserRestarts = run.session.Restarts()
			return result, err
		}
	}

	result.Stats = run.stats
	result.Stats.BrowserRestarts = run.session.Restarts()
	utils.Infof("📦 %s 完成: 保存 %d, 未变化 %d, 重复 %d, 跳过 %d",
		record.Name, run.stats.Saved, run.stats.Unchanged, run.stats.Duplicates,
		run.stats.PermanentErrors+run.stats.TransientErrors+run.stats.EmptyPages+run.stats.Redirected)
	return result, nil
}

// DownloadPage 下载单个页面类型
// 内容与磁盘一致时不重写, 直接返回已有路径
func (d *Downloader) DownloadPage(ctx context.Context, name string, pageType models.PageType) (string, error) {
	record, err := d.catalog.Find(name)
	if err != nil {
		return "", err
	}

	run, err := d.newRun(ctx, record)
	if err != nil {
		return "", err
	}
	defer run.close(ctx)

	page, err := run.fetchPage(ctx, pageType)
	if err != nil || page == nil {
		return "", err
	}
	return page.FilePath, nil
}

// CheckLogin 打开 login_check_url 并检测登录状态, 不写任何文件
func (d *Downloader) CheckLogin(ctx context.Context) (LoginCheck, error) {
	run, err := d.newRun(ctx, models.UniversityRecord{})
	if err != nil {
		return LoginCheck{}, err
	}
	defer run.close(ctx)

	out := run.nav.Navigate(ctx, d.browser.LoginCheckURL, crawlers.DefaultNavigateOptions())
	if !out.Loaded() {
		return LoginCheck{}, fmt.Errorf("打开登录检查页面失败: %s", out.Reason())
	}

	check := DetectLoginState(out.HTML)
	utils.Infof("🔐 登录状态: %s (%s)", check.State, check.Reason)
	return check, nil
}

// universityRun 一个大学的下载过程
type universityRun struct {
	d       *Downloader
	record  models.UniversityRecord
	session *crawlers.BrowserSession
	nav     *crawlers.Navigator
	hashes  *models.ContentHashSet
	stats   models.TaskStats
}

// newRun 启动浏览器, 回放登录会话, 并用目录中已有文件初始化哈希集合
func (d *Downloader) newRun(ctx context.Context, record models.UniversityRecord) (*universityRun, error) {
	d.EnsureSession(ctx)

	session := crawlers.NewBrowserSession(d.browser, d.factory, d.headers)
	if _, err := session.Start(ctx, d.browser.Headless, d.browser.Attach); err != nil {
		return nil, err
	}

	run := &universityRun{
		d:       d,
		record:  record,
		session: session,
		nav:     crawlers.NewNavigator(session, d.browser),
		hashes:  models.NewContentHashSet(),
	}

	if err := run.applyLoginWithRetries(ctx); err != nil {
		session.Stop()
		return nil, err
	}

	if record.Name != "" {
		run.hashes.Reset()
		dir := models.UniversityDir(d.download.DownloadsDir, record.Name)
		n, err := run.hashes.SeedFromDir(dir)
		if err != nil {
			session.Stop()
			return nil, err
		}
		if n > 0 {
			utils.Debugf("已载入 %d 个已有文件的哈希", n)
		}
	}
	return run, nil
}

func (r *universityRun) close(ctx context.Context) {
	r.session.ClearData(ctx)
	r.session.Stop()
}

func (r *universityRun) hasState() bool {
	return r.d.preserveLogin() && r.d.state != nil && !r.d.state.IsEmpty()
}

// applyLogin 回放一次会话, 整体受 origin_nav_timeout 限制
func (r *universityRun) applyLogin(ctx context.Context) bool {
	drv := r.session.Driver()
	if drv == nil {
		return false
	}
	actx, cancel := context.WithTimeout(ctx, models.Seconds(r.d.browser.OriginNavTimeout))
	defer cancel()
	return r.d.capture.Apply(actx, drv, r.d.browser.SessionOrigins, r.d.state)
}

// applyLoginWithRetries 失败时重启浏览器重试; 全部失败后再重启一次, 以未登录状态继续
func (r *universityRun) applyLoginWithRetries(ctx context.Context) error {
	if !r.hasState() {
		return nil
	}

	attempts := r.d.download.LoginAttempts
	if attempts <= 0 {
		attempts = 1
	}
	for i := 1; i <= attempts; i++ {
		utils.Infof("🔐 应用登录会话 (%d/%d)", i, attempts)
		if r.applyLogin(ctx) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if i < attempts {
			if _, err := r.session.Restart(ctx); err != nil {
				return err
			}
		}
	}

	utils.Errorf("❌ %d次尝试后仍未能应用登录会话,以未登录状态继续", attempts)
	_, err := r.session.Restart(ctx)
	return err
}

// fetchPage 单个页面类型的完整流程
// 返回nil表示跳过; 错误只用于意外失败(文件系统、浏览器不可用、取消)
func (r *universityRun) fetchPage(ctx context.Context, pt models.PageType) (*models.SavedPage, error) {
	cfg := r.d
	target := models.NewDownloadTarget(cfg.browser.BaseURL, cfg.download.DownloadsDir, r.record, pt)
	name := pt.DisplayName()
	timeout, retries := cfg.download.Override(pt)
	opts := crawlers.NavigateOptions{Timeout: timeout, Retries: -1}

	utils.Infof("📥 下载 %s 页面: %s", name, target.URL)

	out, err := r.fetchWithRetries(ctx, target.URL, name, opts, retries)
	if err != nil || out == nil {
		return nil, err
	}

	html := out.HTML
	finalURL := out.FinalURL
	if strings.TrimSpace(html) == "" {
		utils.Warnf("⚠️ %s 页面内容为空,跳过", name)
		r.stats.EmptyPages++
		return nil, nil
	}

	if !pt.IsMain() && IsRedirectedToMain(finalURL, html, pt.Segment()) {
		utils.Infof("🔁 %s 页面被重定向 (%s),重新应用会话后重试", name, finalURL)
		if r.hasState() {
			r.applyLogin(ctx)
		}
		retry := r.nav.Navigate(ctx, target.URL, opts)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !retry.Loaded() || strings.TrimSpace(retry.HTML) == "" {
			utils.Warnf("⚠️ %s 页面重试失败: %s", name, retry.Reason())
			return nil, fatalOrNil(retry.Err)
		}
		html, finalURL = retry.HTML, retry.FinalURL
		if IsRedirectedToMain(finalURL, html, pt.Segment()) {
			utils.Infof("⏭️ %s 页面仍被重定向到主页,跳过保存", name)
			r.stats.Redirected++
			return nil, nil
		}
	}

	if cfg.download.VerifyLogin {
		html, finalURL = r.verifyLogin(ctx, target.URL, name, pt, opts, html, finalURL)
	}

	truncated := false
	if cfg.download.TruncateAtWidget {
		html, truncated = TruncateAtWidget(html)
		if truncated {
			utils.Debugf("✂️ %s 页面已在推荐组件前截断", name)
		}
	}

	return r.save(target, finalURL, html, truncated)
}

// fetchWithRetries 页面级暂时性错误按 backoff → 重启 → 重试 处理
// 返回nil结果表示跳过
func (r *universityRun) fetchWithRetries(ctx context.Context, url, name string, opts crawlers.NavigateOptions, retries int) (*models.FetchOutcome, error) {
	for attempt := 0; ; attempt++ {
		out := r.nav.Navigate(ctx, url, opts)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch out.Kind {
		case models.FetchLoaded:
			return &out, nil

		case models.FetchPermanent:
			utils.Warnf("⚠️ %s 页面跳过 - %s", name, out.Reason())
			r.stats.PermanentErrors++
			return nil, nil

		case models.FetchTimeout:
			utils.Errorf("❌ %s 页面加载超时,跳过", name)
			r.stats.TransientErrors++
			return nil, nil
		}

		// 驱动级失败(重试已在Navigator中用尽)
		if out.Error == nil {
			if err := fatalOrNil(out.Err); err != nil {
				return nil, err
			}
			utils.Errorf("❌ %s 页面加载失败: %s", name, out.Reason())
			r.stats.TransientErrors++
			return nil, nil
		}

		if attempt >= retries {
			utils.Errorf("❌ %s 页面重试失败 - %s", name, out.Reason())
			r.stats.TransientErrors++
			return nil, nil
		}

		backoff := models.Seconds(r.d.browser.RetryBackoffSeconds)
		utils.Warnf("⚠️ %s 页面错误 (%s) - %.0f秒后重试 (%d/%d)", name, out.Reason(), backoff.Seconds(), attempt+1, retries)
		if err := utils.Sleep(ctx, backoff); err != nil {
			return nil, err
		}
		if _, err := r.session.Restart(ctx); err != nil {
			return nil, err
		}
	}
}

// verifyLogin 页面显示未登录时重启并重新应用会话后再取一次
// 重新获取失败或被重定向到主页时继续使用原内容
func (r *universityRun) verifyLogin(ctx context.Context, url, name string, pt models.PageType, opts crawlers.NavigateOptions, html, finalURL string) (string, string) {
	check := DetectLoginState(html)
	if check.LoggedIn() {
		return html, finalURL
	}
	utils.Warnf("⚠️ %s 页面未显示登录状态 (%s)", name, check.Reason)
	if !r.hasState() {
		return html, finalURL
	}

	if _, err := r.session.Restart(ctx); err != nil {
		utils.Warnf("⚠️ 登录验证时重启失败: %v", err)
		return html, finalURL
	}
	r.applyLogin(ctx)

	out := r.nav.Navigate(ctx, url, opts)
	if !out.Loaded() || strings.TrimSpace(out.HTML) == "" {
		utils.Warnf("⚠️ 登录验证重试失败,使用原内容: %s", out.Reason())
		return html, finalURL
	}
	if !pt.IsMain() && IsRedirectedToMain(out.FinalURL, out.HTML, pt.Segment()) {
		utils.Warnf("⚠️ 登录验证重新获取的 %s 页面被重定向到主页,使用原内容", name)
		return html, finalURL
	}
	if DetectLoginState(out.HTML).LoggedIn() {
		utils.Info("🔐 重新应用会话后已登录")
	}
	return out.HTML, out.FinalURL
}

// save 哈希检查后原子写入
// 同一路径内容未变化时不重写; 与其他页面类型重复时不保存
func (r *universityRun) save(target models.DownloadTarget, finalURL, html string, truncated bool) (*models.SavedPage, error) {
	data := []byte(html)
	path := target.Path()
	page := &models.SavedPage{
		University: r.record.Name,
		PageType:   target.PageType,
		URL:        target.URL,
		FinalURL:   finalURL,
		FilePath:   path,
		Hash:       models.HashContent(data),
		Size:       int64(len(data)),
		Truncated:  truncated,
		SavedAt:    time.Now(),
	}
	name := target.PageType.DisplayName()

	if existing, ok := r.hashes.Lookup(page.Hash); ok {
		if existing == path {
			utils.Infof("✅ %s 内容未变化: %s", name, path)
			page.Status = models.SaveUnchanged
			r.stats.Unchanged++
			return page, nil
		}
		utils.Infof("⏭️ %s 内容与 %s 重复,不保存", name, existing)
		r.stats.Duplicates++
		return nil, nil
	}

	if err := page.ValidateSize(); err != nil {
		utils.Warnf("⚠️ %s 页面无法保存: %v", name, err)
		r.stats.EmptyPages++
		return nil, nil
	}

	if err := os.MkdirAll(target.Dir, 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败 [%s]: %w", target.Dir, err)
	}
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return nil, fmt.Errorf("保存文件失败 [%s]: %w", path, err)
	}

	r.hashes.Add(page.Hash, path)
	page.Status = models.SaveWritten
	r.stats.Saved++
	utils.Infof("✅ 已保存: %s (%d字节)", path, page.Size)
	return page, nil
}

// fatalOrNil 浏览器不可用需要向上传递, 其他驱动错误只跳过当前页面
func fatalOrNil(err error) error {
	if errors.Is(err, crawlers.ErrBrowserUnavailable) {
		return err
	}
	return nil
}
