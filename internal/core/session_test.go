package core

import (
	"fmt"
	"sync"
	"testing"
)

func TestSessionTryReservePerOriginCap(t *testing.T) {
	s := NewCrawlSession(20, 5)

	origin := "https://example.com"
	for i := 0; i < 5; i++ {
		if !s.TryReserve(origin) {
			t.Fatalf("第 %d 次预留失败,配额未用尽", i+1)
		}
	}

	if s.TryReserve(origin) {
		t.Error("单源配额用尽后预留应被拒绝")
	}

	// 其他源不受影响
	if !s.TryReserve("https://other.com") {
		t.Error("其他源的预留不应受影响")
	}
}

func TestSessionTryReserveGlobalCap(t *testing.T) {
	s := NewCrawlSession(3, 5)

	if !s.TryReserve("https://a.com") || !s.TryReserve("https://b.com") || !s.TryReserve("https://c.com") {
		t.Fatal("全局配额内的预留失败")
	}

	// 全局耗尽后任何源都被拒绝
	if s.TryReserve("https://d.com") {
		t.Error("全局配额用尽后预留应被拒绝")
	}
	if s.PagesReserved() != 3 {
		t.Errorf("PagesReserved() = %d, 期望 3", s.PagesReserved())
	}
}

func TestSessionTryReserveConcurrent(t *testing.T) {
	// 并发预留绝不超卖: 全局与单源计数各自不超过上限
	s := NewCrawlSession(50, 10)

	const goroutines = 8
	counts := make([]int, goroutines)

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			origin := fmt.Sprintf("https://origin%d.com", g%4)
			for i := 0; i < 100; i++ {
				if s.TryReserve(origin) {
					counts[g]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, count := range counts {
		total += count
	}

	// 每个源由两个goroutine共享
	for origin := 0; origin < 4; origin++ {
		perOrigin := counts[origin] + counts[origin+4]
		if perOrigin > 10 {
			t.Errorf("源 %d 预留了 %d 个配额,超过单源上限 10", origin, perOrigin)
		}
	}

	if total > 50 {
		t.Errorf("总预留数 = %d, 超过全局上限 50", total)
	}
	if s.PagesReserved() != total {
		t.Errorf("PagesReserved() = %d, 与实际授予数 %d 不符", s.PagesReserved(), total)
	}
}

func TestSessionMarkVisited(t *testing.T) {
	s := NewCrawlSession(20, 5)

	if !s.MarkVisited("https://example.com/page") {
		t.Error("首次标记应返回true")
	}
	if s.MarkVisited("https://example.com/page") {
		t.Error("重复标记应返回false")
	}
	if !s.IsVisited("https://example.com/page") {
		t.Error("IsVisited应返回true")
	}
	if s.VisitedCount() != 1 {
		t.Errorf("VisitedCount() = %d, 期望 1", s.VisitedCount())
	}
}

func TestSessionMarkVisitedConcurrent(t *testing.T) {
	// 并发标记同一URL,恰好一个goroutine得到true
	s := NewCrawlSession(20, 5)

	var wg sync.WaitGroup
	var winners int
	var winnersMu sync.Mutex

	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.MarkVisited("https://example.com/contested") {
				winnersMu.Lock()
				winners++
				winnersMu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("首次标记成功的goroutine数 = %d, 期望恰好 1", winners)
	}
}

func TestSessionUniqueIDs(t *testing.T) {
	a := NewCrawlSession(20, 5)
	b := NewCrawlSession(20, 5)
	if a.ID == b.ID || a.ID == "" {
		t.Error("会话ID应唯一且非空")
	}
}
