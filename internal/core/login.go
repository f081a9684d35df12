package core

import (
	"net/url"
	"regexp"
	"strings"
)

// LoginState 页面显示的登录状态
type LoginState string

const (
	LoginYes     LoginState = "logged_in"
	LoginNo      LoginState = "logged_out"
	LoginUnknown LoginState = "unknown"
)

// LoginCheck 登录状态检测结果
type LoginCheck struct {
	State     LoginState `json:"state"`
	Premium   bool       `json:"premium"`
	Canonical string     `json:"canonical,omitempty"`
	Reason    string     `json:"reason"`
}

// LoggedIn 未知状态按未登录处理
func (c LoginCheck) LoggedIn() bool {
	return c.State == LoginYes
}

var (
	signInMarkers  = compileAll(`\bSign in\b`, `\bLog in\b`, `로그인`)
	signOutMarkers = compileAll(`\bSign out\b`, `\bLog out\b`, `로그아웃`)

	errorPagePatterns = compileAll(
		`404 Not Found`,
		`403 Forbidden`,
		`401 Unauthorized`,
		`We hit a snag`,
		`An error occurred`,
		`Access Denied`,
		`akamai error`,
		`cf-error`,
		`captcha`,
	)

	upsellPatterns = compileAll(
		`\bTry it now\b`,
		`compass.*unlock`,
		`premium.*unlock`,
		`College Compass`,
	)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}
	return out
}

// matchAny 返回第一个命中的模式
func matchAny(patterns []*regexp.Regexp, content string) (string, bool) {
	for _, re := range patterns {
		if re.MatchString(content) {
			return strings.TrimPrefix(re.String(), "(?i)"), true
		}
	}
	return "", false
}

// DetectLoginState 根据canonical主机和登录/登出标记判断
// 优先级: premium主机 → www主机 → Sign out → Sign in → 未知
func DetectLoginState(content string) LoginCheck {
	canonical := ExtractCanonical(content)
	check := LoginCheck{State: LoginUnknown, Canonical: canonical, Reason: "not_logged_in:no_canonical_or_unknown_host"}

	host := ""
	if canonical != "" {
		if u, err := url.Parse(canonical); err == nil {
			host = u.Hostname()
		}
	}

	switch {
	case strings.HasPrefix(host, "premium.usnews.com"):
		check.State, check.Premium, check.Reason = LoginYes, true, "login_hit:premium_host"
	case strings.Contains(canonical, "www.usnews.com"):
		check.State, check.Reason = LoginNo, "not_logged_in:www_host"
	default:
		if _, ok := matchAny(signOutMarkers, content); ok {
			check.State, check.Reason = LoginYes, "login_hit:signout"
		} else if _, ok := matchAny(signInMarkers, content); ok {
			check.State, check.Reason = LoginNo, "login_hint:signin_present"
		}
	}
	return check
}

// DetectErrorPage 页面内容是否像错误/拦截页
func DetectErrorPage(content string) (string, bool) {
	return matchAny(errorPagePatterns, content)
}

// DetectUpsell 付费墙/升级提示
func DetectUpsell(content string) (string, bool) {
	return matchAny(upsellPatterns, content)
}
