package main

import (
	"fmt"
	"strings"
)

// ValidateFlags 验证命令行标志
func ValidateFlags(
	topic string,
	depth int,
	maxPages int,
	originCap int,
	waitTime int,
) error {
	// 验证主题
	if strings.TrimSpace(topic) == "" {
		return fmt.Errorf("必须通过 -t/--topic 指定采集主题")
	}

	// 验证深度
	if depth < 0 || depth > 10 {
		return fmt.Errorf("采集深度必须在0-10之间,当前值: %d", depth)
	}

	// 验证全局页面预算
	if maxPages < 1 || maxPages > 1000 {
		return fmt.Errorf("全局页面预算必须在1-1000之间,当前值: %d", maxPages)
	}

	// 验证单源页面预算
	if originCap < 1 || originCap > maxPages {
		return fmt.Errorf("单源页面预算必须在1-%d之间,当前值: %d", maxPages, originCap)
	}

	// 验证等待时间
	if waitTime < 0 || waitTime > 60 {
		return fmt.Errorf("等待时间必须在0-60秒之间,当前值: %d", waitTime)
	}

	return nil
}
