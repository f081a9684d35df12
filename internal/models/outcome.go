package models

import "fmt"

// FetchKind 一次页面抓取的结果类型
type FetchKind int

const (
	FetchLoaded    FetchKind = iota // 页面已加载且无错误
	FetchTimeout                    // 页面加载超时(重试耗尽)
	FetchTransient                  // 暂时性错误: 5xx、网络错误、驱动异常
	FetchPermanent                  // 永久性错误: 4xx、CDN错误页
)

// String 实现fmt.Stringer
func (k FetchKind) String() string {
	switch k {
	case FetchLoaded:
		return "loaded"
	case FetchTimeout:
		return "timeout"
	case FetchTransient:
		return "transient"
	case FetchPermanent:
		return "permanent"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ErrorCategory 响应错误分类
type ErrorCategory string

const (
	CategoryCDN                ErrorCategory = "cdn_error"
	CategoryNetworkFailure     ErrorCategory = "network_failure"
	CategoryNetwork            ErrorCategory = "network_error"
	CategoryNotFound           ErrorCategory = "not_found"
	CategoryForbidden          ErrorCategory = "forbidden"
	CategoryAuthRequired       ErrorCategory = "auth_required"
	CategoryGone               ErrorCategory = "gone"
	CategoryInternalServer     ErrorCategory = "internal_server_error"
	CategoryBadGateway         ErrorCategory = "bad_gateway"
	CategoryServiceUnavailable ErrorCategory = "service_unavailable"
	CategoryClientError        ErrorCategory = "client_error"
	CategoryServerError        ErrorCategory = "server_error"
)

// ErrorInfo 页面加载后的错误信息
type ErrorInfo struct {
	URL       string        `json:"url"`
	Status    int           `json:"status"`
	HasStatus bool          `json:"has_status"`
	Category  ErrorCategory `json:"category"`
	Message   string        `json:"message"`
}

// String 日志友好格式
func (e *ErrorInfo) String() string {
	if e == nil {
		return "无错误"
	}
	if e.HasStatus {
		return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
	}
	return e.Message
}

// FetchOutcome Navigator的抓取结果
type FetchOutcome struct {
	Kind     FetchKind
	HTML     string
	FinalURL string
	Error    *ErrorInfo // 页面级错误(状态码/CDN/网络)
	Err      error      // 驱动级错误(超时/崩溃/取消)
	Attempts int
}

// Loaded 是否成功加载
func (o FetchOutcome) Loaded() bool {
	return o.Kind == FetchLoaded
}

// Reason 失败原因描述
func (o FetchOutcome) Reason() string {
	switch {
	case o.Error != nil:
		return o.Error.String()
	case o.Err != nil:
		return o.Err.Error()
	default:
		return o.Kind.String()
	}
}
