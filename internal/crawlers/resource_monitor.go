package crawlers

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// 内存压力等级
const (
	PressureNormal    = "normal"
	PressureWarning   = "warning"
	PressureCritical  = "critical"
	PressureEmergency = "emergency"
)

// ResourceMonitor 系统与浏览器进程资源监控
// 健康检查用它判断浏览器是否内存失控
type ResourceMonitor struct {
	// 浏览器进程树RSS上限(字节), 0表示不检查
	maxBrowserMemory uint64
}

// MemoryStatus 系统内存状态
type MemoryStatus struct {
	TotalMemory     uint64 // 系统总内存(字节)
	AvailableMemory uint64 // 可用内存(字节)
	UsedPercent     float64
	MemoryPressure  string
}

// NewResourceMonitor 创建资源监控器, maxBrowserMemoryMB为0时不限制浏览器内存
func NewResourceMonitor(maxBrowserMemoryMB int) *ResourceMonitor {
	rm := &ResourceMonitor{}
	if maxBrowserMemoryMB > 0 {
		rm.maxBrowserMemory = uint64(maxBrowserMemoryMB) * 1024 * 1024
	}
	return rm
}

// GetMemoryStatus 读取系统内存并计算压力等级
func (rm *ResourceMonitor) GetMemoryStatus() (MemoryStatus, error) {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return MemoryStatus{}, fmt.Errorf("获取系统内存失败: %w", err)
	}

	return MemoryStatus{
		TotalMemory:     vmStat.Total,
		AvailableMemory: vmStat.Available,
		UsedPercent:     vmStat.UsedPercent,
		MemoryPressure:  memoryPressure(vmStat.Available),
	}, nil
}

func memoryPressure(available uint64) string {
	availableMB := available / (1024 * 1024)
	switch {
	case availableMB < 200:
		return PressureEmergency
	case availableMB < 300:
		return PressureCritical
	case availableMB < 500:
		return PressureWarning
	default:
		return PressureNormal
	}
}

// CPUUsage 所有核心的平均使用率(百分比)
func (rm *ResourceMonitor) CPUUsage() float64 {
	// 100毫秒采样间隔,避免阻塞过久
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
		return 0.0
	}
	if len(percentages) == 0 {
		return 0.0
	}
	return percentages[0]
}

// ProcessTreeRSS 进程及其所有子进程(渲染器/GPU进程)的RSS总和
func (rm *ResourceMonitor) ProcessTreeRSS(pid int) (uint64, error) {
	if pid <= 0 {
		return 0, fmt.Errorf("无效的进程ID: %d", pid)
	}

	root, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, fmt.Errorf("查找浏览器进程失败: %w", err)
	}

	var total uint64
	queue := []*process.Process{root}
	seen := make(map[int32]bool)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p.Pid] {
			continue
		}
		seen[p.Pid] = true

		if info, err := p.MemoryInfo(); err == nil && info != nil {
			total += info.RSS
		}
		// 没有子进程时部分平台返回错误, 忽略
		if children, err := p.Children(); err == nil {
			queue = append(queue, children...)
		}
	}

	return total, nil
}

// CheckBrowser 浏览器内存是否在限制内
// 返回 ok 和不通过时的原因
func (rm *ResourceMonitor) CheckBrowser(pid int) (bool, string) {
	if status, err := rm.GetMemoryStatus(); err == nil && status.MemoryPressure != PressureNormal {
		log.Warn().
			Str("pressure", status.MemoryPressure).
			Msgf("系统可用内存不足(当前%dMB)", status.AvailableMemory/(1024*1024))
	}

	if rm.maxBrowserMemory == 0 || pid <= 0 {
		return true, ""
	}

	rss, err := rm.ProcessTreeRSS(pid)
	if err != nil {
		log.Debug().Err(err).Int("pid", pid).Msg("读取浏览器内存失败")
		return true, ""
	}

	if rss > rm.maxBrowserMemory {
		return false, fmt.Sprintf("浏览器内存过高(%dMB > %dMB)", rss/(1024*1024), rm.maxBrowserMemory/(1024*1024))
	}
	return true, ""
}
