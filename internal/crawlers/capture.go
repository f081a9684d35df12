package crawlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/RecoveryAshes/UsnewsCrawl/internal/models"
	"github.com/RecoveryAshes/UsnewsCrawl/internal/utils"
	"github.com/ysmood/gson"
	"golang.org/x/net/publicsuffix"
)

var storageKinds = []models.StorageKind{models.LocalStorageKind, models.SessionStorageKind}

// SessionCapture 从已登录的浏览器读取会话, 再回放到新启动的浏览器
type SessionCapture struct {
	cfg models.BrowserConfig
}

// NewSessionCapture 创建会话抓取器
func NewSessionCapture(cfg models.BrowserConfig) *SessionCapture {
	return &SessionCapture{cfg: cfg}
}

// Capture 依次访问每个origin, 读取Cookie和local/session storage
// 单个origin失败只记录日志; 什么都没读到时返回错误
func (c *SessionCapture) Capture(ctx context.Context, source Driver, origins []string) (*models.SessionState, error) {
	state := models.NewSessionState()

	for _, origin := range models.DedupeOrigins(origins) {
		if err := source.Navigate(ctx, origin, models.Seconds(c.cfg.OriginNavTimeout)); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			utils.Warnf("⚠️ 访问 %s 失败,跳过: %v", origin, err)
			continue
		}
		if err := utils.Sleep(ctx, models.Seconds(c.cfg.OriginSettleSeconds)); err != nil {
			return nil, err
		}

		cookies, err := source.Cookies(ctx, []string{origin})
		if err != nil {
			utils.Warnf("⚠️ 读取 %s 的Cookie失败: %v", origin, err)
		} else {
			added := state.AddCookies(cookies)
			utils.Infof("🍪 %s 收集Cookie %d个", origin, added)
		}

		for _, kind := range storageKinds {
			res, err := source.Eval(ctx, ReadStorageScript, string(kind))
			if err != nil {
				utils.Warnf("⚠️ 读取 %s 的%s失败: %v", origin, kind, err)
				continue
			}
			entries := jsonStringMap(res)
			state.SetStorage(kind, origin, entries)
			utils.Infof("💾 %s 收集%s %d个", origin, kind, len(entries))
		}
	}

	if state.IsEmpty() {
		return nil, fmt.Errorf("未从现有浏览器收集到任何会话数据")
	}
	return state, nil
}

// Apply 把会话写入目标浏览器
// 返回是否至少写入了一项; 状态为空时不做任何导航
func (c *SessionCapture) Apply(ctx context.Context, target Driver, origins []string, state *models.SessionState) bool {
	if state.IsEmpty() {
		utils.Debug("会话状态为空,跳过应用")
		return false
	}

	applied := false
	for _, origin := range models.DedupeOrigins(origins) {
		host := originHost(origin)
		if host == "" {
			utils.Warnf("⚠️ 无效的origin: %s", origin)
			continue
		}

		if err := target.Navigate(ctx, origin, models.Seconds(c.cfg.OriginNavTimeout)); err != nil {
			if ctx.Err() != nil {
				return applied
			}
			utils.Warnf("⚠️ 访问 %s 失败,跳过会话应用: %v", origin, err)
			continue
		}
		if err := utils.Sleep(ctx, models.Seconds(c.cfg.OriginSettleSeconds)); err != nil {
			return applied
		}

		for _, kind := range storageKinds {
			entries := state.Storage(kind, origin)
			if len(entries) == 0 {
				continue
			}
			res, err := target.Eval(ctx, WriteStorageScript, string(kind), entries)
			if err != nil {
				utils.Warnf("⚠️ 写入 %s 的%s失败: %v", origin, kind, err)
				continue
			}
			if n := jsonInt(res); n > 0 {
				applied = true
				utils.Debugf("%s 写入%s %d个", origin, kind, n)
			}
		}

		matched := make([]models.Cookie, 0)
		for _, cookie := range state.Cookies {
			if CookieMatchesHost(cookie.Domain, host) {
				matched = append(matched, cookie)
			}
		}
		if len(matched) == 0 {
			continue
		}
		if err := target.SetCookies(ctx, matched); err != nil {
			utils.Warnf("⚠️ 写入 %s 的Cookie失败: %v", origin, err)
			continue
		}
		applied = true
		utils.Debugf("%s 写入Cookie %d个: %s", origin, len(matched), utils.DescribeCookies(matched))
	}

	if applied {
		utils.Info("✅ 会话已应用")
	} else {
		utils.Warn("⚠️ 会话未能应用到任何origin")
	}
	return applied
}

// CookieMatchesHost Cookie域名是否覆盖host
// 忽略前导点, 按标签边界匹配后缀; 公共后缀(如 com、co.uk)不匹配任何host
func CookieMatchesHost(domain, host string) bool {
	d := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "."))
	h := strings.ToLower(host)
	if d == "" || h == "" {
		return false
	}

	if ps, icann := publicsuffix.PublicSuffix(d); ps == d && (icann || strings.Contains(d, ".")) {
		return false
	}

	return h == d || strings.HasSuffix(h, "."+d)
}

func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// jsonStringMap 把脚本返回的对象转换为 map[string]string
func jsonStringMap(j gson.JSON) map[string]string {
	raw, ok := j.Val().(map[string]interface{})
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

func jsonInt(j gson.JSON) int {
	switch v := j.Val().(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	default:
		return 0
	}
}

func jsonString(j gson.JSON) string {
	if s, ok := j.Val().(string); ok {
		return s
	}
	return ""
}
