package crawlers

import (
	"fmt"
	"testing"
)

func TestFrontierFIFOOrder(t *testing.T) {
	f := NewFrontier("https://example.com", 2)

	urls := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/c",
	}
	for _, u := range urls {
		if err := f.Push(u, 1, "https://example.com"); err != nil {
			t.Fatalf("Push(%s) 失败: %v", u, err)
		}
	}

	for i, want := range urls {
		entry, ok := f.Pop()
		if !ok {
			t.Fatalf("第 %d 次Pop失败,队列提前耗尽", i+1)
		}
		if entry.URL != want {
			t.Errorf("第 %d 次Pop = %s, 期望 %s (FIFO顺序被破坏)", i+1, entry.URL, want)
		}
	}

	if _, ok := f.Pop(); ok {
		t.Error("队列应为空,Pop却返回了条目")
	}
}

func TestFrontierDedup(t *testing.T) {
	f := NewFrontier("https://example.com", 2)

	// 同一URL多次入队只保留第一次
	for i := 0; i < 3; i++ {
		if err := f.Push("https://example.com/page", 1, ""); err != nil {
			t.Fatalf("重复Push不应返回错误: %v", err)
		}
	}

	if f.Len() != 1 {
		t.Errorf("Len() = %d, 期望去重后只有1条", f.Len())
	}
}

func TestFrontierRejectsInvalid(t *testing.T) {
	f := NewFrontier("https://example.com", 2)

	tests := []struct {
		name  string
		url   string
		depth int
	}{
		{"跨源URL", "https://other.com/page", 1},
		{"越深URL", "https://example.com/deep", 3},
		{"非法协议", "ftp://example.com/file", 1},
		{"空URL", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.Push(tt.url, tt.depth, ""); err == nil {
				t.Errorf("Push(%q, depth=%d) 应返回错误", tt.url, tt.depth)
			}
		})
	}

	if f.Len() != 0 {
		t.Errorf("被拒绝的URL不应入队: Len() = %d", f.Len())
	}
}

func TestFrontierOriginCaseInsensitive(t *testing.T) {
	f := NewFrontier("https://Example.COM", 1)

	if err := f.Push("https://example.com/page", 0, ""); err != nil {
		t.Errorf("源比较应忽略大小写: %v", err)
	}
}

func TestFrontierEntryMetadata(t *testing.T) {
	f := NewFrontier("https://example.com", 2)

	if err := f.Push("https://example.com/child", 2, "https://example.com/parent"); err != nil {
		t.Fatalf("Push失败: %v", err)
	}

	entry, ok := f.Pop()
	if !ok {
		t.Fatal("Pop失败")
	}
	if entry.Depth != 2 {
		t.Errorf("Depth = %d, 期望 2", entry.Depth)
	}
	if entry.SourceURL != "https://example.com/parent" {
		t.Errorf("SourceURL = %s, 期望父页面URL", entry.SourceURL)
	}
}

func TestFrontierConcurrentPush(t *testing.T) {
	f := NewFrontier("https://example.com", 2)

	done := make(chan struct{})
	for g := 0; g < 4; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				_ = f.Push(fmt.Sprintf("https://example.com/g%d/p%d", g, i), 1, "")
			}
		}(g)
	}
	for g := 0; g < 4; g++ {
		<-done
	}

	if f.Len() != 200 {
		t.Errorf("并发Push后 Len() = %d, 期望 200", f.Len())
	}
}
