package core

import (
	"sync"

	"github.com/google/uuid"
)

// CrawlSession 采集会话
// 职责:
//   - 维护整个会话的已访问URL集合
//   - 原子性管理全局与单源页面预算
//
// 所有字段由单个互斥锁保护,检查与递增在同一临界区内完成,
// 并发的预留请求不会导致预算超卖
type CrawlSession struct {
	// ID 会话唯一标识 (UUID)
	ID string

	mu sync.Mutex

	// visited 已访问URL集合 (规范化形式)
	visited map[string]bool

	// originPages 每个源已消耗的页面配额
	originPages map[string]int

	// totalPages 全局已消耗的页面配额
	totalPages int

	maxPages     int
	perOriginCap int
}

// NewCrawlSession 创建采集会话
func NewCrawlSession(maxPages, perOriginCap int) *CrawlSession {
	return &CrawlSession{
		ID:           uuid.New().String(),
		visited:      make(map[string]bool),
		originPages:  make(map[string]int),
		maxPages:     maxPages,
		perOriginCap: perOriginCap,
	}
}

// TryReserve 原子性地检查并预留一个页面配额
// 单源配额和全局配额同时检查,任一耗尽即拒绝且不产生任何计数变化
// 预留成功后两个计数同时递增
func (s *CrawlSession) TryReserve(origin string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.totalPages >= s.maxPages {
		return false
	}
	if s.originPages[origin] >= s.perOriginCap {
		return false
	}

	s.totalPages++
	s.originPages[origin]++
	return true
}

// MarkVisited 标记URL为已访问
// 首次标记返回true,重复标记返回false
// 检查与标记在同一临界区内完成,并发调用中只有一个会得到true
func (s *CrawlSession) MarkVisited(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.visited[rawURL] {
		return false
	}
	s.visited[rawURL] = true
	return true
}

// IsVisited 检查URL是否已访问
func (s *CrawlSession) IsVisited(rawURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visited[rawURL]
}

// VisitedCount 返回已访问URL数量
func (s *CrawlSession) VisitedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited)
}

// PagesReserved 返回全局已消耗的配额数
func (s *CrawlSession) PagesReserved() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPages
}

// OriginPages 返回指定源已消耗的配额数
func (s *CrawlSession) OriginPages(origin string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.originPages[origin]
}
