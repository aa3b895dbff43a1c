package crawlers

import (
	"context"
	"sync"
	"testing"

	"github.com/go-rod/rod"
)

func newIdlePagePool() *PagePool {
	return NewPagePool(nil, nil, context.Background())
}

func TestPagePoolReturnAfterClose(t *testing.T) {
	pp := newIdlePagePool()
	page := &rod.Page{}

	if !pp.returnToPool(page) {
		t.Fatal("关闭前归还应成功")
	}

	if err := pp.Close(); err != nil {
		t.Fatalf("Close失败: %v", err)
	}

	// 关闭后归还必须被拒绝,而不是写入已废弃的channel
	if pp.returnToPool(&rod.Page{}) {
		t.Error("关闭后归还应被拒绝")
	}
}

func TestPagePoolAcquireAfterClose(t *testing.T) {
	pp := newIdlePagePool()
	if err := pp.Close(); err != nil {
		t.Fatalf("Close失败: %v", err)
	}

	if _, err := pp.AcquirePage(context.Background()); err == nil {
		t.Error("关闭后获取标签页应返回错误")
	}
}

func TestPagePoolCloseIdempotent(t *testing.T) {
	pp := newIdlePagePool()
	if err := pp.Close(); err != nil {
		t.Fatalf("Close失败: %v", err)
	}
	if err := pp.Close(); err != nil {
		t.Errorf("重复Close应为无操作, 返回: %v", err)
	}
}

func TestPagePoolConcurrentReturnAndClose(t *testing.T) {
	// 渲染goroutine归还标签页的同时关闭池,两者必须互斥 (go test -race验证)
	pp := newIdlePagePool()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				pp.returnToPool(&rod.Page{})
			}
		}()
	}

	if err := pp.Close(); err != nil {
		t.Fatalf("Close失败: %v", err)
	}
	wg.Wait()

	if pp.returnToPool(&rod.Page{}) {
		t.Error("关闭后归还应被拒绝")
	}
}

func TestPagePoolReleaseNilPage(t *testing.T) {
	pp := newIdlePagePool()
	defer pp.Close()

	// nil标签页直接忽略
	pp.ReleasePage(nil)
	if pp.CurrentSize() != 0 {
		t.Errorf("CurrentSize = %d, 期望0", pp.CurrentSize())
	}
}
