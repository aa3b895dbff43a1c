package models

import (
	"fmt"
)

// CrawlConfig 采集配置
type CrawlConfig struct {
	MaxDepth       int     `json:"max_depth"`       // BFS最大深度 (默认:2)
	MaxPages       int     `json:"max_pages"`       // 全局页面预算 (默认:20)
	PerOriginCap   int     `json:"per_origin_cap"`  // 单源页面预算 (默认:5)
	MaxSeeds       int     `json:"max_seeds"`       // 种子URL上限 (默认:12)
	WaitTime       int     `json:"wait_time"`       // 渲染后额外等待时间(秒) (默认:2)
	Headless       bool    `json:"headless"`        // 无头模式 (默认:true)
	ArchiveEnabled bool    `json:"archive_enabled"` // 启用历史快照回退 (默认:true)
	MaxRetries     int     `json:"max_retries"`     // 直接抓取重试次数 (默认:3)
	DirectTimeout  int     `json:"direct_timeout"`  // 直接抓取超时(秒) (默认:15)
	RenderTimeout  int     `json:"render_timeout"`  // 渲染抓取超时(秒) (默认:30)
	MaxTabs        int     `json:"max_tabs"`        // 渲染标签页上限 (默认:4)
	MinDelay       float64 `json:"min_delay"`       // 请求间隔下限(秒) (默认:1.0)
	MaxDelay       float64 `json:"max_delay"`       // 请求间隔上限(秒) (默认:3.0)
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.MaxDepth < 0 || c.MaxDepth > 10 {
		return fmt.Errorf("深度必须在0-10之间")
	}
	if c.MaxPages < 1 || c.MaxPages > 1000 {
		return fmt.Errorf("全局页面预算必须在1-1000之间")
	}
	if c.PerOriginCap < 1 || c.PerOriginCap > c.MaxPages {
		return fmt.Errorf("单源页面预算必须在1-%d之间", c.MaxPages)
	}
	if c.MaxSeeds < 1 || c.MaxSeeds > 100 {
		return fmt.Errorf("种子数上限必须在1-100之间")
	}
	if c.WaitTime < 0 || c.WaitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间")
	}
	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("重试次数必须在1-10之间")
	}
	if c.MaxTabs < 1 || c.MaxTabs > 20 {
		return fmt.Errorf("标签页数必须在1-20之间")
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("请求间隔必须满足 0 <= min <= max")
	}
	return nil
}

// DefaultCrawlConfig 返回默认采集配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		MaxDepth:       2,
		MaxPages:       20,
		PerOriginCap:   5,
		MaxSeeds:       12,
		WaitTime:       2,
		Headless:       true,
		ArchiveEnabled: true,
		MaxRetries:     3,
		DirectTimeout:  15,
		RenderTimeout:  30,
		MaxTabs:        4,
		MinDelay:       1.0,
		MaxDelay:       3.0,
	}
}
