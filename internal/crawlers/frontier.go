package crawlers

import (
	"fmt"
	"strings"
	"sync"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/RecoveryAshes/CorpusCrawl/internal/utils"
)

// Frontier BFS边界队列
// 职责:
//   - FIFO顺序管理单个源的待访问URL
//   - 入队去重,避免同一URL重复排队
//   - 过滤越深、跨源和非法URL
//
// 使用切片而非固定容量channel,入队永不阻塞
type Frontier struct {
	mu       sync.Mutex
	entries  []models.FrontierEntry
	enqueued map[string]bool

	origin   string
	maxDepth int
}

// NewFrontier 创建边界队列
// origin为该队列绑定的源 (scheme://host),所有入队URL必须同源
func NewFrontier(origin string, maxDepth int) *Frontier {
	return &Frontier{
		entries:  make([]models.FrontierEntry, 0, 64),
		enqueued: make(map[string]bool),
		origin:   origin,
		maxDepth: maxDepth,
	}
}

// Push 将URL加入边界
// 返回错误的情况:
//   - URL格式非法或协议不是http/https
//   - 深度超过maxDepth
//   - URL与队列绑定的源不同
//
// 已入队的URL静默跳过,不返回错误
func (f *Frontier) Push(rawURL string, depth int, sourceURL string) error {
	if err := models.ValidateURL(rawURL); err != nil {
		return err
	}

	if depth > f.maxDepth {
		return fmt.Errorf("深度超过限制: %d > %d", depth, f.maxDepth)
	}

	origin, err := models.OriginOf(rawURL)
	if err != nil {
		return err
	}
	if !strings.EqualFold(origin, f.origin) {
		return fmt.Errorf("跨源URL: %s (绑定源: %s)", rawURL, f.origin)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.enqueued[rawURL] {
		utils.Debugf("URL已入队,跳过: %s", rawURL)
		return nil
	}

	f.enqueued[rawURL] = true
	f.entries = append(f.entries, models.FrontierEntry{
		URL:       rawURL,
		Depth:     depth,
		SourceURL: sourceURL,
	})
	return nil
}

// Pop 取出队首项
// 队列为空时第二个返回值为false
func (f *Frontier) Pop() (models.FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.entries) == 0 {
		return models.FrontierEntry{}, false
	}

	entry := f.entries[0]
	f.entries = f.entries[1:]
	return entry, true
}

// Len 返回当前待访问URL数量
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

// Origin 返回队列绑定的源
func (f *Frontier) Origin() string {
	return f.origin
}
