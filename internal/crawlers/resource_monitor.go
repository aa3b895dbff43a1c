package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitor 系统资源监控器
// 职责: 周期性采样内存与CPU,为渲染标签页池计算安全的标签页上限
type ResourceMonitor struct {
	config ResourceMonitorConfig

	// totalMemory 系统总内存(字节)
	totalMemory uint64

	// lastMemStats 最近一次采样的内存统计
	lastMemStats runtime.MemStats
	mu           sync.RWMutex

	// lastCPUUsage 最近一次采样的CPU使用率(%)
	lastCPUUsage float64
	cpuMu        sync.RWMutex

	// CalculateMaxTabs结果缓存,每秒更新一次
	cachedMaxTabs int
	lastCacheTime time.Time
	cacheMu       sync.RWMutex

	cancelFunc context.CancelFunc
	isRunning  bool
}

// ResourceMonitorConfig 资源监控器配置
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 // 安全保留内存(字节)
	SafetyThreshold     int64 // 可用内存安全阈值(字节)
	CPULoadThreshold    int   // CPU负载阈值(%),>=200视为禁用CPU检查
	MaxTabsLimit        int   // 绝对最大标签页数
	TabMemoryUsage      int64 // 单个标签页平均内存消耗(字节)
}

// NewResourceMonitor 创建资源监控器实例
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	if config.TabMemoryUsage == 0 {
		config.TabMemoryUsage = 100 * 1024 * 1024 // 100MB
	}

	// 系统总内存取不到时按4GB估算
	var totalMem uint64
	if vmStat, err := mem.VirtualMemory(); err != nil {
		log.Warn().Err(err).Msg("获取系统内存失败,使用默认值4GB")
		totalMem = 4 * 1024 * 1024 * 1024
	} else {
		totalMem = vmStat.Total
		log.Debug().Msgf("系统总内存: %.2f GB", float64(totalMem)/(1024*1024*1024))
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &ResourceMonitor{
		config:       config,
		totalMemory:  totalMem,
		lastMemStats: memStats,
	}
}

// StartMonitoring 启动后台采样goroutine
// 重复调用是幂等的
func (rm *ResourceMonitor) StartMonitoring(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancelFunc = cancel
	rm.isRunning = true

	go rm.monitoringLoop(ctx, interval)
}

// monitoringLoop 周期性更新内存统计与CPU使用率
func (rm *ResourceMonitor) monitoringLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)

			rm.mu.Lock()
			rm.lastMemStats = memStats
			rm.mu.Unlock()

			usage := sampleCPUUsage()
			rm.cpuMu.Lock()
			rm.lastCPUUsage = usage
			rm.cpuMu.Unlock()
		}
	}
}

// sampleCPUUsage 采样全系统平均CPU使用率(%)
func sampleCPUUsage() float64 {
	// 100毫秒采样窗口,避免阻塞监控循环过久
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil || len(percentages) == 0 {
		log.Warn().Err(err).Msg("获取CPU使用率失败")
		return 0.0
	}
	return percentages[0]
}

// StopMonitoring 停止后台采样
func (rm *ResourceMonitor) StopMonitoring() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.isRunning && rm.cancelFunc != nil {
		rm.cancelFunc()
		rm.isRunning = false
		rm.cancelFunc = nil
	}
}

// availableMemory 计算扣除安全保留后的可用内存
func (rm *ResourceMonitor) availableMemory(memStats runtime.MemStats) int64 {
	return int64(rm.totalMemory) - int64(memStats.Alloc) - rm.config.SafetyReserveMemory
}

// CalculateMaxTabs 计算当前允许的最大标签页数
// 取内存余量、CPU核心数与配置上限三者的最小值,结果缓存1秒
func (rm *ResourceMonitor) CalculateMaxTabs() int {
	rm.cacheMu.RLock()
	if time.Since(rm.lastCacheTime) < time.Second && rm.cachedMaxTabs > 0 {
		cached := rm.cachedMaxTabs
		rm.cacheMu.RUnlock()
		return cached
	}
	rm.cacheMu.RUnlock()

	rm.mu.RLock()
	available := rm.availableMemory(rm.lastMemStats)
	rm.mu.RUnlock()

	maxByMemory := 1
	if available > rm.config.SafetyThreshold {
		maxByMemory = int((available - rm.config.SafetyThreshold) / rm.config.TabMemoryUsage)
		if maxByMemory < 1 {
			maxByMemory = 1
		}
	}

	result := maxByMemory
	if cpus := runtime.NumCPU(); cpus < result {
		result = cpus
	}
	if rm.config.MaxTabsLimit < result {
		result = rm.config.MaxTabsLimit
	}
	if result < 1 {
		result = 1
	}

	rm.cacheMu.Lock()
	rm.cachedMaxTabs = result
	rm.lastCacheTime = time.Now()
	rm.cacheMu.Unlock()

	return result
}

// CheckResourceAvailability 检查当前资源是否允许创建新标签页
// 返回canCreate和不允许时的原因
func (rm *ResourceMonitor) CheckResourceAvailability() (canCreate bool, reason string) {
	rm.mu.RLock()
	available := rm.availableMemory(rm.lastMemStats)
	rm.mu.RUnlock()

	if available < rm.config.SafetyThreshold {
		availableMB := available / (1024 * 1024)
		log.Warn().Msgf("可用内存不足(当前%dMB),标签页创建受限", availableMB)
		return false, fmt.Sprintf("内存不足(当前%dMB)", availableMB)
	}

	if rm.config.CPULoadThreshold < 200 {
		rm.cpuMu.RLock()
		cpuUsage := rm.lastCPUUsage
		rm.cpuMu.RUnlock()

		if cpuUsage > float64(rm.config.CPULoadThreshold) {
			return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", cpuUsage)
		}
	}

	return true, ""
}
