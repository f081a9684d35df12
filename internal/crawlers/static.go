package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// StaticFetcher 不经过浏览器的页面读取器(使用Colly)
// 支持 http(s) 地址和本地已保存的HTML文件(file://)
type StaticFetcher struct {
	collector *colly.Collector

	// HTTP头部提供者
	headerProvider models.HeaderProvider
}

// StaticPage 读取结果
type StaticPage struct {
	URL    string
	Status int
	Body   []byte
}

// Document 解析为goquery文档
func (p *StaticPage) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败 [%s]: %w", p.URL, err)
	}
	return doc, nil
}

// NewStaticFetcher 创建读取器
func NewStaticFetcher(timeout time.Duration, headerProvider models.HeaderProvider) *StaticFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, // 跳过证书验证,与浏览器的 --ignore-certificate-errors 一致
		},
	}
	// 本地文件按绝对路径读取
	transport.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	c.WithTransport(transport)
	c.SetRequestTimeout(timeout)

	return &StaticFetcher{
		collector:      c,
		headerProvider: headerProvider,
	}
}

// SourceURL 本地路径转换为 file:// 地址, http(s)地址原样返回
func SourceURL(source string) (string, error) {
	if utils.IsRemoteURL(source) || strings.HasPrefix(source, "file://") {
		return source, nil
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("解析本地路径失败 [%s]: %w", source, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// Fetch 读取单个页面
func (sf *StaticFetcher) Fetch(ctx context.Context, source string) (*StaticPage, error) {
	return sf.FetchHTML(ctx, source, "", nil)
}

// FetchHTML 读取页面, 并对匹配selector的元素调用fn
// selector为空时只读取内容
func (sf *StaticFetcher) FetchHTML(ctx context.Context, source, selector string, fn colly.HTMLCallback) (*StaticPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target, err := SourceURL(source)
	if err != nil {
		return nil, err
	}

	// Clone共享HTTP后端, 但不带回调
	c := sf.collector.Clone()
	page := &StaticPage{URL: target}
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		if r.URL.Scheme == "file" {
			return
		}
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")

		// 应用自定义HTTP头部
		if sf.headerProvider != nil {
			headers, err := sf.headerProvider.GetHeaders()
			if err != nil {
				utils.Warnf("获取HTTP头部失败: %v", err)
			} else {
				for name, values := range headers {
					if len(values) > 0 {
						r.Headers.Set(name, values[0])
					}
				}
			}
		}
		utils.Debugf("访问: %s", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		contentEncoding := r.Headers.Get("Content-Encoding")
		if contentEncoding != "" {
			decompressed, err := decompressResponse(contentEncoding, r.Body)
			if err != nil {
				// 解压失败,仍然尝试使用原始body
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", r.Request.URL, contentEncoding, err)
			} else {
				r.Body = decompressed
			}
		}
		page.Status = r.StatusCode
		page.Body = r.Body
	})

	if selector != "" && fn != nil {
		c.OnHTML(selector, fn)
	}

	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			page.Status = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(target); err != nil {
		return nil, fmt.Errorf("读取页面失败 [%s]: %w", source, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("读取页面失败 [%s] (状态码=%d): %w", source, page.Status, fetchErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return page, nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		// Colly已自动解压的gzip不再处理
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		// 未知编码,返回警告但仍然返回原始内容
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
