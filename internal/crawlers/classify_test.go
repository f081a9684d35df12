package crawlers

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/andybalholm/brotli"
)

func TestClassifyResponse(t *testing.T) {
	const page = "https://premium.usnews.com/best-colleges/x-1/academics"

	tests := []struct {
		name      string
		url       string
		body      string
		status    int
		hasStatus bool
		want      models.ErrorCategory // 空表示nil
	}{
		{"正常页面", page, "<html>ok</html>", 200, true, ""},
		{"重定向状态视为正常", page, "<html>ok</html>", 302, true, ""},
		{"CDN错误URL", "https://errors.edgesuite.net/18.abc", "", 200, true, models.CategoryCDN},
		{"CDN错误内容", page, "<p>Reference #18.2f3c</p>", 200, true, models.CategoryCDN},
		{"CDN优先于状态码", page, "errors.edgesuite.net", 503, true, models.CategoryCDN},
		{"Chrome错误页", "chrome-error://chromewebdata/", "", 0, false, models.CategoryNetworkFailure},
		{"网络错误页", "chrome://network-error/-105", "", 0, false, models.CategoryNetworkFailure},
		{"无状态码", page, "", 0, false, models.CategoryNetwork},
		{"状态码为0", page, "", 0, true, models.CategoryNetwork},
		{"404", page, "", 404, true, models.CategoryNotFound},
		{"403", page, "", 403, true, models.CategoryForbidden},
		{"401", page, "", 401, true, models.CategoryAuthRequired},
		{"410", page, "", 410, true, models.CategoryGone},
		{"500", page, "", 500, true, models.CategoryInternalServer},
		{"502", page, "", 502, true, models.CategoryBadGateway},
		{"503", page, "", 503, true, models.CategoryServiceUnavailable},
		{"其他4xx", page, "", 418, true, models.CategoryClientError},
		{"其他5xx", page, "", 504, true, models.CategoryServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ClassifyResponse(tt.url, tt.body, tt.status, tt.hasStatus)
			if tt.want == "" {
				if info != nil {
					t.Fatalf("期望nil, 得到 %+v", info)
				}
				return
			}
			if info == nil {
				t.Fatalf("期望 %s, 得到nil", tt.want)
			}
			if info.Category != tt.want {
				t.Errorf("Category = %s, 期望 %s", info.Category, tt.want)
			}
			if info.URL != tt.url {
				t.Errorf("URL = %q, 期望 %q", info.URL, tt.url)
			}
		})
	}
}

func TestIsPermanentError(t *testing.T) {
	tests := []struct {
		name string
		info *models.ErrorInfo
		want bool
	}{
		{"nil", nil, false},
		{"CDN", &models.ErrorInfo{Category: models.CategoryCDN, Status: 200, HasStatus: true}, true},
		{"404", &models.ErrorInfo{Status: 404, HasStatus: true}, true},
		{"410", &models.ErrorInfo{Status: 410, HasStatus: true}, true},
		{"403", &models.ErrorInfo{Status: 403, HasStatus: true}, true},
		{"408可重试", &models.ErrorInfo{Status: 408, HasStatus: true}, false},
		{"429可重试", &models.ErrorInfo{Status: 429, HasStatus: true}, false},
		{"500", &models.ErrorInfo{Status: 500, HasStatus: true}, false},
		{"网络错误", &models.ErrorInfo{Category: models.CategoryNetwork}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanentError(tt.info); got != tt.want {
				t.Errorf("IsPermanentError() = %v, 期望 %v", got, tt.want)
			}
		})
	}
}

func TestCookieMatchesHost(t *testing.T) {
	tests := []struct {
		name   string
		domain string
		host   string
		want   bool
	}{
		{"前导点", ".usnews.com", "premium.usnews.com", true},
		{"完全相同", "premium.usnews.com", "premium.usnews.com", true},
		{"父域名", "usnews.com", "www.usnews.com", true},
		{"大小写", ".USNews.com", "WWW.usnews.com", true},
		{"标签边界", "news.com", "usnews.com", false},
		{"其他子域名", "premium.usnews.com", "www.usnews.com", false},
		{"公共后缀", ".com", "www.usnews.com", false},
		{"多级公共后缀", "co.uk", "example.co.uk", false},
		{"空域名", "", "www.usnews.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CookieMatchesHost(tt.domain, tt.host); got != tt.want {
				t.Errorf("CookieMatchesHost(%q, %q) = %v, 期望 %v", tt.domain, tt.host, got, tt.want)
			}
		})
	}
}

func TestDecompressResponse(t *testing.T) {
	original := []byte("<html><body>压缩内容</body></html>")

	var brBuf bytes.Buffer
	bw := brotli.NewWriter(&brBuf)
	if _, err := bw.Write(original); err != nil {
		t.Fatal(err)
	}
	bw.Close()

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	if _, err := gw.Write(original); err != nil {
		t.Fatal(err)
	}
	gw.Close()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"brotli", "br", brBuf.Bytes()},
		{"gzip", "gzip", gzBuf.Bytes()},
		{"已解压的gzip", "gzip", original},
		{"无编码", "", original},
		{"未知编码", "zstd", original},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressResponse(tt.encoding, tt.body)
			if err != nil {
				t.Fatalf("解压失败: %v", err)
			}
			if !bytes.Equal(got, original) {
				t.Errorf("解压结果不一致: %q", got)
			}
		})
	}
}

func TestSourceURL(t *testing.T) {
	if got, err := SourceURL("https://www.usnews.com/best-colleges"); err != nil || got != "https://www.usnews.com/best-colleges" {
		t.Errorf("远程地址应原样返回, 得到 %q, %v", got, err)
	}

	got, err := SourceURL("/tmp/ranking page.html")
	if err != nil {
		t.Fatalf("SourceURL失败: %v", err)
	}
	if got != "file:///tmp/ranking%20page.html" {
		t.Errorf("本地路径 = %q", got)
	}
}

func TestMemoryPressure(t *testing.T) {
	const mb = 1024 * 1024
	tests := []struct {
		available uint64
		want      string
	}{
		{100 * mb, PressureEmergency},
		{250 * mb, PressureCritical},
		{400 * mb, PressureWarning},
		{4096 * mb, PressureNormal},
	}
	for _, tt := range tests {
		if got := memoryPressure(tt.available); got != tt.want {
			t.Errorf("memoryPressure(%dMB) = %s, 期望 %s", tt.available/mb, got, tt.want)
		}
	}
}
