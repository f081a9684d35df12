package crawlers_test

import (
	"context"
	"errors"
	"testing"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/crawlers"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/crawlers/crawlertest"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
)

const academicsURL = premiumOrigin + "/best-colleges/example-university-1234/academics"

func startNavigator(t *testing.T, site *crawlertest.Site) *crawlers.Navigator {
	t.Helper()
	cfg := testBrowserConfig()
	session := crawlers.NewBrowserSession(cfg, site.Factory(), nil)
	if _, err := session.Start(context.Background(), true, false); err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	t.Cleanup(session.Stop)
	return crawlers.NewNavigator(session, cfg)
}

func TestNavigator_Navigate(t *testing.T) {
	tests := []struct {
		name         string
		responses    []crawlertest.Response
		retries      int
		wantKind     models.FetchKind
		wantAttempts int
		wantLaunches int
		wantCategory models.ErrorCategory
	}{
		{
			name:         "正常加载",
			responses:    []crawlertest.Response{crawlertest.OK("<html>academics</html>")},
			retries:      1,
			wantKind:     models.FetchLoaded,
			wantAttempts: 1,
			wantLaunches: 1,
		},
		{
			name:         "404为永久错误且不重启",
			responses:    []crawlertest.Response{crawlertest.Status(404, "<html>missing</html>")},
			retries:      1,
			wantKind:     models.FetchPermanent,
			wantAttempts: 1,
			wantLaunches: 1,
			wantCategory: models.CategoryNotFound,
		},
		{
			name:         "503为暂时错误",
			responses:    []crawlertest.Response{crawlertest.Status(503, "<html>busy</html>")},
			retries:      1,
			wantKind:     models.FetchTransient,
			wantAttempts: 1,
			wantLaunches: 1,
			wantCategory: models.CategoryServiceUnavailable,
		},
		{
			name:         "CDN错误页",
			responses:    []crawlertest.Response{crawlertest.OK("<p>Reference #18.1</p>")},
			retries:      1,
			wantKind:     models.FetchPermanent,
			wantAttempts: 1,
			wantLaunches: 1,
			wantCategory: models.CategoryCDN,
		},
		{
			name: "网络错误页",
			responses: []crawlertest.Response{
				{FinalURL: "chrome-error://chromewebdata/", NoStatus: true},
			},
			retries:      1,
			wantKind:     models.FetchTransient,
			wantAttempts: 1,
			wantLaunches: 1,
			wantCategory: models.CategoryNetworkFailure,
		},
		{
			name: "XHR异常时读navigation条目",
			responses: []crawlertest.Response{
				{HTML: "<html>academics</html>", NoStatus: true, XHRFails: true},
			},
			retries:      1,
			wantKind:     models.FetchLoaded,
			wantAttempts: 1,
			wantLaunches: 1,
		},
		{
			name: "XHR异常且navigation条目为404",
			responses: []crawlertest.Response{
				{HTML: "<html>missing</html>", Status: 404, XHRFails: true},
			},
			retries:      1,
			wantKind:     models.FetchPermanent,
			wantAttempts: 1,
			wantLaunches: 1,
			wantCategory: models.CategoryNotFound,
		},
		{
			name:         "超时后重启重试成功",
			responses:    []crawlertest.Response{crawlertest.Timeout(), crawlertest.OK("<html>ok</html>")},
			retries:      1,
			wantKind:     models.FetchLoaded,
			wantAttempts: 2,
			wantLaunches: 2,
		},
		{
			name:         "超时重试耗尽",
			responses:    []crawlertest.Response{crawlertest.Timeout()},
			retries:      1,
			wantKind:     models.FetchTimeout,
			wantAttempts: 2,
			wantLaunches: 2,
		},
		{
			name:         "不重试",
			responses:    []crawlertest.Response{crawlertest.Timeout()},
			retries:      0,
			wantKind:     models.FetchTimeout,
			wantAttempts: 1,
			wantLaunches: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := crawlertest.NewSite()
			site.Serve(academicsURL, tt.responses...)
			nav := startNavigator(t, site)

			out := nav.Navigate(context.Background(), academicsURL, crawlers.NavigateOptions{Retries: tt.retries})

			if out.Kind != tt.wantKind {
				t.Errorf("Kind = %s, 期望 %s (原因: %s)", out.Kind, tt.wantKind, out.Reason())
			}
			if out.Attempts != tt.wantAttempts {
				t.Errorf("Attempts = %d, 期望 %d", out.Attempts, tt.wantAttempts)
			}
			if site.Launches() != tt.wantLaunches {
				t.Errorf("Launches = %d, 期望 %d", site.Launches(), tt.wantLaunches)
			}
			if tt.wantCategory != "" {
				if out.Error == nil || out.Error.Category != tt.wantCategory {
					t.Errorf("Error = %+v, 期望分类 %s", out.Error, tt.wantCategory)
				}
			}
		})
	}
}

func TestNavigator_Redirect(t *testing.T) {
	mainURL := premiumOrigin + "/best-colleges/example-university-1234"
	site := crawlertest.NewSite()
	site.Serve(academicsURL, crawlertest.Redirect(mainURL, "<html>main</html>"))
	nav := startNavigator(t, site)

	out := nav.Navigate(context.Background(), academicsURL, crawlers.DefaultNavigateOptions())
	if !out.Loaded() {
		t.Fatalf("期望加载成功, 得到 %s", out.Reason())
	}
	if out.FinalURL != mainURL {
		t.Errorf("FinalURL = %q, 期望 %q", out.FinalURL, mainURL)
	}
	if out.HTML != "<html>main</html>" {
		t.Errorf("HTML = %q", out.HTML)
	}
}

func TestNavigator_PanicRecovered(t *testing.T) {
	site := crawlertest.NewSite()
	site.Serve(academicsURL, crawlertest.Response{Panic: true})
	nav := startNavigator(t, site)

	out := nav.Navigate(context.Background(), academicsURL, crawlers.NavigateOptions{Retries: 0})
	if out.Kind != models.FetchTransient {
		t.Errorf("Kind = %s, 期望 transient", out.Kind)
	}
	if !errors.Is(out.Err, crawlers.ErrBrowserCrashed) {
		t.Errorf("Err = %v, 期望 ErrBrowserCrashed", out.Err)
	}
}

func TestNavigator_NotStarted(t *testing.T) {
	site := crawlertest.NewSite()
	session := crawlers.NewBrowserSession(testBrowserConfig(), site.Factory(), nil)
	nav := crawlers.NewNavigator(session, testBrowserConfig())

	out := nav.Navigate(context.Background(), academicsURL, crawlers.NavigateOptions{Retries: 0})
	if !errors.Is(out.Err, crawlers.ErrSessionNotStarted) {
		t.Errorf("Err = %v, 期望 ErrSessionNotStarted", out.Err)
	}
}

func TestNavigator_Cancelled(t *testing.T) {
	site := crawlertest.NewSite()
	nav := startNavigator(t, site)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := nav.Navigate(ctx, academicsURL, crawlers.DefaultNavigateOptions())
	if !errors.Is(out.Err, context.Canceled) {
		t.Errorf("Err = %v, 期望 context.Canceled", out.Err)
	}
	if site.Launches() != 1 {
		t.Error("取消后不应重启浏览器")
	}
}

func TestNavigator_GetErrorInfo(t *testing.T) {
	tests := []struct {
		name         string
		response     crawlertest.Response
		wantCategory models.ErrorCategory // 为空表示正常页面
		wantStatus   int
	}{
		{"正常页面", crawlertest.OK("<html>academics</html>"), "", 0},
		{"404", crawlertest.Status(404, "<html>missing</html>"), models.CategoryNotFound, 404},
		{"CDN错误", crawlertest.OK("<p>Reference #18.1</p>"), models.CategoryCDN, 200},
		{"网络错误页", crawlertest.Response{FinalURL: "chrome-error://chromewebdata/", NoStatus: true}, models.CategoryNetworkFailure, 0},
		{"XHR返回0", crawlertest.Response{HTML: "<html></html>", NoStatus: true}, models.CategoryNetwork, 0},
		{"XHR异常时视为正常", crawlertest.Response{HTML: "<html>academics</html>", NoStatus: true, XHRFails: true}, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := crawlertest.NewSite()
			site.Serve(academicsURL, tt.response)

			cfg := testBrowserConfig()
			session := crawlers.NewBrowserSession(cfg, site.Factory(), nil)
			drv, err := session.Start(context.Background(), true, false)
			if err != nil {
				t.Fatalf("启动失败: %v", err)
			}
			t.Cleanup(session.Stop)

			if err := drv.Navigate(context.Background(), academicsURL, 0); err != nil {
				t.Fatalf("导航失败: %v", err)
			}

			info := crawlers.NewNavigator(session, cfg).GetErrorInfo(context.Background(), drv)
			if tt.wantCategory == "" {
				if info != nil {
					t.Errorf("期望正常页面, 得到 %+v", info)
				}
				return
			}
			if info == nil {
				t.Fatalf("期望分类 %s, 得到nil", tt.wantCategory)
			}
			if info.Category != tt.wantCategory {
				t.Errorf("Category = %s, 期望 %s", info.Category, tt.wantCategory)
			}
			if info.Status != tt.wantStatus {
				t.Errorf("Status = %d, 期望 %d", info.Status, tt.wantStatus)
			}
		})
	}
}
