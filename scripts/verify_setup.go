package main

import (
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod/lib/launcher"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  usnewscrawl 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	goVersion := runtime.Version()
	fmt.Printf("✅ Go版本: %s\n", goVersion)
	if strings.HasPrefix(goVersion, "go1.21") || strings.HasPrefix(goVersion, "go1.22") {
		fmt.Println("⚠️  警告: 建议使用Go 1.23+版本")
	}
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// 浏览器: 启动模式需要本地Chrome/Chromium
	if path, ok := launcher.LookPath(); ok {
		fmt.Printf("✅ 找到浏览器: %s\n", path)
	} else {
		fmt.Println("❌ 未找到Chrome/Chromium - 启动模式不可用")
		fmt.Println("   可以安装Chrome, 或用 --attach 连接已运行的浏览器")
		allOK = false
	}

	// 附加模式: 检查调试端口
	addr := "127.0.0.1:9222"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err == nil {
		conn.Close()
		fmt.Printf("✅ 调试端口可连接: %s (可使用 --attach)\n", addr)
	} else {
		fmt.Printf("⚠️  调试端口不可连接: %s\n", addr)
		fmt.Println("   附加模式需要: chrome --remote-debugging-port=9222")
	}

	fmt.Println()
	fmt.Println("检查数据文件...")
	for _, file := range []string{"data/universities.json", "configs/config.yaml"} {
		if _, err := os.Stat(file); err == nil {
			fmt.Printf("✅ %s\n", file)
		} else {
			fmt.Printf("⚠️  %s 不存在\n", file)
		}
	}
	if _, err := os.Stat("configs/headers.yaml"); err != nil {
		fmt.Println("⚠️  configs/headers.yaml 不存在 (首次运行时自动生成)")
	}

	fmt.Println()
	fmt.Println("检查项目结构...")
	requiredDirs := []string{
		"cmd/usnewscrawl",
		"internal/core",
		"internal/crawlers",
		"internal/extract",
		"internal/utils",
		"internal/models",
		"configs",
	}
	for _, dir := range requiredDirs {
		if _, err := os.Stat(dir); err == nil {
			fmt.Printf("✅ %s/\n", dir)
		} else {
			fmt.Printf("❌ %s/ 不存在\n", dir)
			allOK = false
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/usnewscrawl' 构建")
		fmt.Println("  2. 运行 './usnewscrawl catalog build --source <排名页>' 生成大学目录")
		fmt.Println("  3. 运行 './usnewscrawl download-all' 开始下载")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
