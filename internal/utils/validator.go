package utils

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"golang.org/x/net/http/httpguts"
)

const (
	// MaxHeaderValueLength HTTP头部值最大长度 (8KB)
	MaxHeaderValueLength = 8192
)

// ForbiddenHeaders 不允许通过 headers.yaml 或 -H 配置的头部及原因
var ForbiddenHeaders = map[string]string{
	"Host":              "由HTTP客户端自动管理",
	"Content-Length":    "由HTTP客户端自动管理",
	"Transfer-Encoding": "由HTTP客户端自动管理",
	"Connection":        "由HTTP客户端自动管理",
	"Cookie":            "Cookie由会话回放写入浏览器, 请使用 --preserve-login",
	"Accept-Encoding":   "压缩协商由浏览器和静态读取器处理",
}

// HeaderValidator 检查要注入浏览器(Network.setExtraHTTPHeaders)和静态读取器的头部
type HeaderValidator struct {
	maxValueLength int
	forbidden      map[string]string // 小写名称 -> 原因
}

// NewHeaderValidator 创建验证器
func NewHeaderValidator() *HeaderValidator {
	forbidden := make(map[string]string, len(ForbiddenHeaders))
	for name, reason := range ForbiddenHeaders {
		forbidden[strings.ToLower(name)] = reason
	}
	return &HeaderValidator{
		maxValueLength: MaxHeaderValueLength,
		forbidden:      forbidden,
	}
}

// ValidateName 名称必须是RFC 7230 token
func (hv *HeaderValidator) ValidateName(name string) error {
	if name == "" {
		return &models.ValidationError{Field: "name", HeaderName: name, Reason: "头部名称不能为空"}
	}
	if !httpguts.ValidHeaderFieldName(name) {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称包含非法字符",
			Suggestion: "使用字母、数字和连字符 (如 'Accept-Language', 'X-Requested-With')",
		}
	}
	return nil
}

// ValidateValue 值只允许可打印ASCII, 浏览器会拒绝其他字符
func (hv *HeaderValidator) ValidateValue(name, value string) error {
	if len(value) > hv.maxValueLength {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), hv.maxValueLength),
			Suggestion: fmt.Sprintf("将值缩短至 %d 字节以内", hv.maxValueLength),
		}
	}
	if !httpguts.ValidHeaderFieldValue(value) || !isPrintableASCII(value) {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     "头部值包含非法字符 (仅允许可打印ASCII字符)",
			Suggestion: "移除控制字符和非ASCII字符",
		}
	}
	return nil
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\t' && (c < 0x20 || c > 0x7e) {
			return false
		}
	}
	return true
}

// ValidateHeader 依次检查 禁止列表 → 名称 → 值
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	if reason, ok := hv.forbidden[strings.ToLower(name)]; ok {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "不允许自定义此头部: " + reason,
			Suggestion: fmt.Sprintf("移除 '%s' 头部配置", name),
		}
	}
	if err := hv.ValidateName(name); err != nil {
		return err
	}
	return hv.ValidateValue(name, value)
}

// IsForbidden 检查头部是否被禁止 (不区分大小写)
func (hv *HeaderValidator) IsForbidden(name string) bool {
	_, ok := hv.forbidden[strings.ToLower(name)]
	return ok
}

// Validate 按名称顺序检查所有头部, 返回第一个错误
func (hv *HeaderValidator) Validate(headers http.Header) error {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, value := range headers[name] {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}
