package crawlers

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
)

// CDN错误页特征
var cdnMarkers = []string{"errors.edgesuite.net"}

const cdnBodyMarker = "Reference #"

// Chrome网络错误页的URL前缀
var networkErrorURLPrefixes = []string{"chrome-error://", "chrome://network-error/"}

// 可重试的4xx
var retryableClientCodes = map[int]bool{408: true, 429: true}

// 永久性状态码
var permanentCodes = map[int]bool{404: true, 410: true}

// ClassifyResponse 根据URL、页面内容和状态码判断错误类型
// 正常响应返回nil
func ClassifyResponse(url, body string, status int, hasStatus bool) *models.ErrorInfo {
	info := &models.ErrorInfo{URL: url, Status: status, HasStatus: hasStatus}

	for _, marker := range cdnMarkers {
		if strings.Contains(url, marker) || strings.Contains(body, marker) {
			return withCategory(info, models.CategoryCDN, "CDN错误页")
		}
	}
	if strings.Contains(body, cdnBodyMarker) {
		return withCategory(info, models.CategoryCDN, "CDN错误页")
	}

	if !hasStatus || status == 0 {
		info.HasStatus = false
		for _, prefix := range networkErrorURLPrefixes {
			if strings.HasPrefix(url, prefix) {
				return withCategory(info, models.CategoryNetworkFailure, "网络连接失败")
			}
		}
		return withCategory(info, models.CategoryNetwork, "网络错误")
	}

	switch {
	case status == 404:
		return withCategory(info, models.CategoryNotFound, "页面不存在")
	case status == 403:
		return withCategory(info, models.CategoryForbidden, "无访问权限")
	case status == 401:
		return withCategory(info, models.CategoryAuthRequired, "需要认证")
	case status == 410:
		return withCategory(info, models.CategoryGone, "页面已删除")
	case status == 500:
		return withCategory(info, models.CategoryInternalServer, "服务器内部错误")
	case status == 502:
		return withCategory(info, models.CategoryBadGateway, "网关错误")
	case status == 503:
		return withCategory(info, models.CategoryServiceUnavailable, "服务不可用")
	case status >= 400 && status < 500:
		return withCategory(info, models.CategoryClientError, fmt.Sprintf("客户端错误 (%d)", status))
	case status >= 500:
		return withCategory(info, models.CategoryServerError, fmt.Sprintf("服务器错误 (%d)", status))
	}
	return nil
}

func withCategory(info *models.ErrorInfo, category models.ErrorCategory, msg string) *models.ErrorInfo {
	info.Category = category
	info.Message = msg
	return info
}

// IsPermanentError 是否为重试无意义的错误
// CDN错误页、404/410以及除408/429外的4xx
func IsPermanentError(info *models.ErrorInfo) bool {
	if info == nil {
		return false
	}
	if info.Category == models.CategoryCDN {
		return true
	}
	if !info.HasStatus {
		return false
	}
	if permanentCodes[info.Status] {
		return true
	}
	if info.Status >= 400 && info.Status < 500 {
		return !retryableClientCodes[info.Status]
	}
	return false
}
