// Package crawlers 提供浏览器会话、页面导航和静态页面读取
//
// # 概述
//
// crawlers包封装了下载流程需要的全部浏览器操作。动态页面通过go-rod驱动Chrome,
// 静态页面(本地保存的HTML或简单的http页面)通过Colly读取。
// 上层(core包)只依赖Driver接口, 测试使用 crawlertest 包中的假浏览器。
//
// # 核心组件
//
// ## Driver
//
// 浏览器标签页的最小接口: 导航、读取HTML、执行脚本、读写Cookie、设置额外请求头。
// NewRodDriver 是基于go-rod的实现, 支持两种模式:
//   - 启动模式: 通过launcher启动新的Chrome进程, 可选无头
//   - 附加模式: 连接已运行的Chrome调试端口, 只关闭自己打开的标签页
//
// ## BrowserSession
//
// 管理一个Driver的生命周期。启动失败返回 ErrBrowserUnavailable,
// HealthCheck 用一次简单的脚本求值和 ResourceMonitor 判断浏览器是否还可用,
// 不可用时 Restart 重建。
//
//	session := NewBrowserSession(cfg, nil, headerProvider)
//	drv, err := session.Start(ctx, cfg.Headless, false)
//	defer session.Stop()
//
// ## SessionCapture
//
// 从一个已登录的浏览器读取指定源的Cookie和 localStorage/sessionStorage,
// 再回放到另一个浏览器。回放时先访问源站点, 只写入与该主机匹配的Cookie。
//
//	capture := NewSessionCapture(cfg)
//	state, err := capture.Capture(ctx, attached, origins)
//	ok := capture.Apply(ctx, drv, origins, state)
//
// ## Navigator
//
// 带超时的单次导航。结果为 models.FetchOutcome:
//   - 成功: 返回最终URL和HTML
//   - 超时: Timeout
//   - HTTP错误: 通过 ClassifyResponse 分类为永久错误或可重试错误
//
// 重试策略由调用者决定, Navigator 本身不重试。
//
// ## StaticFetcher
//
// 基于Colly的读取器, 支持 file:// 和本地路径, 自动解压 gzip/br/deflate 响应,
// 请求头来自 HeaderProvider。目录生成和字段抽取使用它。
//
// ## ResourceMonitor
//
// 基于gopsutil读取系统内存压力和浏览器进程树的RSS,
// 批量下载时在摘要中输出, 健康检查用它判断浏览器是否内存失控。
//
// # 线程安全
//
// BrowserSession 和 Navigator 不是并发安全的, 一个大学的下载独占一个会话。
// StaticFetcher 可以被多个goroutine共享。
package crawlers
