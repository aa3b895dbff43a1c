package crawlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// stealthScript 在每个新文档上执行,抹除自动化痕迹
// 反爬脚本通常检查 navigator.webdriver 来识别无头浏览器
const stealthScript = `() => {
	try {
		Object.defineProperty(navigator, 'webdriver', {
			get: () => undefined,
		});
	} catch (e) {
		// ignore
	}
	try {
		window.chrome = window.chrome || { runtime: {} };
	} catch (e) {
		// ignore
	}
}`

// PageHealthStatus 标签页健康状态
// 跟踪每个标签页的健康状况,用于重试和销毁决策
type PageHealthStatus struct {
	CleanFailureCount int       // 清理失败次数
	LastSuccessTime   time.Time // 最后一次成功使用时间
	IsDirty           bool      // 是否标记为"脏"状态(清理失败2次)
}

// PagePool 标签页池管理器
// 职责: 管理浏览器标签页的生命周期,按资源限制控制数量,协调并发访问
type PagePool struct {
	// 浏览器实例
	browser *rod.Browser

	// 所有活跃的标签页
	pages []*rod.Page

	// 可用标签页channel
	availablePages chan *rod.Page

	// 资源监控器
	resourceMonitor *ResourceMonitor

	// 保护pages切片的锁
	mu sync.Mutex

	// 控制生命周期的context
	ctx context.Context

	// 是否已关闭
	closed bool

	// 标签页健康状态跟踪
	pageHealth map[*rod.Page]*PageHealthStatus
	healthMu   sync.RWMutex // 保护pageHealth的锁
}

// NewPagePool 创建标签页池实例
func NewPagePool(browser *rod.Browser, resourceMonitor *ResourceMonitor, ctx context.Context) *PagePool {
	return &PagePool{
		browser:         browser,
		pages:           make([]*rod.Page, 0),
		availablePages:  make(chan *rod.Page, 32), // buffered channel, 最多缓存32个
		resourceMonitor: resourceMonitor,
		ctx:             ctx,
		closed:          false,
		pageHealth:      make(map[*rod.Page]*PageHealthStatus),
	}
}

// AcquirePage 获取一个可用的标签页
// 新标签页在创建时注入反自动化检测脚本
func (pp *PagePool) AcquirePage(ctx context.Context) (*rod.Page, error) {
	// 检查是否已关闭
	pp.mu.Lock()
	if pp.closed {
		pp.mu.Unlock()
		return nil, fmt.Errorf("标签页池已关闭")
	}
	pp.mu.Unlock()

	// 尝试从可用池获取
	select {
	case page := <-pp.availablePages:
		return page, nil
	default:
		// 没有可用标签页,尝试创建新的
	}

	// 检查是否可以创建新标签页
	pp.mu.Lock()
	currentSize := len(pp.pages)
	maxSize := pp.resourceMonitor.CalculateMaxTabs()
	pp.mu.Unlock()

	if currentSize >= maxSize {
		// 已达上限,阻塞等待可用标签页
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case page := <-pp.availablePages:
			return page, nil
		}
	}

	// 检查资源可用性
	canCreate, reason := pp.resourceMonitor.CheckResourceAvailability()
	if !canCreate {
		log.Warn().Msgf("资源不足,无法创建新标签页: %s", reason)
		// 等待可用标签页
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case page := <-pp.availablePages:
			return page, nil
		}
	}

	// 创建新标签页
	page, err := pp.newStealthPage()
	if err != nil {
		// 浏览器可能已崩溃或连接断开
		log.Error().Err(err).Msg("创建标签页失败,浏览器可能已崩溃")
		return nil, fmt.Errorf("创建标签页失败(浏览器可能已崩溃): %w", err)
	}

	// 添加到pages列表
	pp.mu.Lock()
	pp.pages = append(pp.pages, page)
	currentSize = len(pp.pages)
	pp.mu.Unlock()

	// 初始化新标签页的健康状态
	pp.healthMu.Lock()
	pp.pageHealth[page] = &PageHealthStatus{
		CleanFailureCount: 0,
		LastSuccessTime:   time.Now(),
		IsDirty:           false,
	}
	pp.healthMu.Unlock()

	log.Debug().Msgf("创建新标签页,当前标签页数: %d, 最大限制: %d", currentSize, maxSize)

	return page, nil
}

// newStealthPage 创建注入了反检测脚本的标签页
func (pp *PagePool) newStealthPage() (*rod.Page, error) {
	page, err := pp.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}

	if _, err := page.EvalOnNewDocument(stealthScript); err != nil {
		log.Warn().Err(err).Msg("注入反检测脚本失败")
	}

	return page, nil
}

// ReleasePage 归还标签页到池中
// 清理失败重试策略: 第1次失败重试,第2次标记为脏,第3次销毁
func (pp *PagePool) ReleasePage(page *rod.Page) {
	if page == nil {
		return
	}

	// 池已关闭时不再清理,直接销毁
	pp.mu.Lock()
	closed := pp.closed
	pp.mu.Unlock()
	if closed {
		pp.destroyPage(page)
		return
	}

	// 获取当前页面的健康状态
	pp.healthMu.RLock()
	health, exists := pp.pageHealth[page]
	pp.healthMu.RUnlock()

	if !exists {
		// 页面不存在健康记录(可能是旧页面),直接销毁
		log.Warn().Msg("标签页没有健康记录,直接销毁")
		pp.destroyPage(page)
		return
	}

	// 清理标签页状态
	err := pp.cleanPage(page)
	if err != nil {
		pp.healthMu.Lock()
		health.CleanFailureCount++
		failureCount := health.CleanFailureCount
		pp.healthMu.Unlock()

		log.Warn().Err(err).Msgf("清理标签页状态失败 (第%d次失败)", failureCount)

		if failureCount == 1 {
			// 第一次失败: 重试一次
			err = pp.cleanPage(page)
			if err == nil {
				pp.healthMu.Lock()
				health.CleanFailureCount = 0
				health.LastSuccessTime = time.Now()
				health.IsDirty = false
				pp.healthMu.Unlock()
			} else {
				pp.healthMu.Lock()
				health.CleanFailureCount++
				pp.healthMu.Unlock()
				log.Warn().Err(err).Msg("重试清理失败")
			}
		} else if failureCount == 2 {
			// 第二次失败: 标记为"脏"状态,但仍然保留
			pp.healthMu.Lock()
			health.IsDirty = true
			pp.healthMu.Unlock()
			log.Warn().Msg("标签页标记为'脏'状态(清理失败2次),下次失败将销毁")
		} else {
			// 第三次失败: 销毁该标签页
			log.Warn().Msg("清理失败超过3次,销毁该标签页")
			pp.destroyPage(page)
			return
		}
	} else {
		// 清理成功,重置健康状态
		pp.healthMu.Lock()
		health.CleanFailureCount = 0
		health.LastSuccessTime = time.Now()
		health.IsDirty = false
		pp.healthMu.Unlock()
	}

	// 归还到可用池; 池已关闭或channel已满时销毁
	if !pp.returnToPool(page) {
		pp.destroyPage(page)
	}
}

// returnToPool 尝试把标签页放回可用池
// closed检查与入channel在同一把锁内完成,与Close互斥,
// 保证关闭后不会再有标签页进入可用池
func (pp *PagePool) returnToPool(page *rod.Page) bool {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.closed {
		return false
	}

	select {
	case pp.availablePages <- page:
		return true
	default:
		// channel已满
		return false
	}
}

// cleanPage 清理标签页状态
// 抹掉上一个页面留下的存储与cookie,避免站点间状态串扰
func (pp *PagePool) cleanPage(page *rod.Page) error {
	_, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			// 清理localStorage
			if (typeof localStorage !== 'undefined' && localStorage !== null) {
				try {
					localStorage.clear();
				} catch (e) {
					// ignore
				}
			}

			// 清理sessionStorage
			if (typeof sessionStorage !== 'undefined' && sessionStorage !== null) {
				try {
					sessionStorage.clear();
				} catch (e) {
					// ignore
				}
			}

			// 清理cookies
			if (typeof document !== 'undefined' && document !== null && document.cookie) {
				try {
					var cookies = document.cookie.split(";");
					for (var i = 0; i < cookies.length; i++) {
						var c = cookies[i];
						var eqPos = c.indexOf("=");
						var name = eqPos > -1 ? c.substr(0, eqPos) : c;
						document.cookie = name.replace(/^ +/, "") + "=;expires=Thu, 01 Jan 1970 00:00:00 UTC;path=/";
					}
				} catch (e) {
					// ignore
				}
			}

			return true;
		}`,
	})
	if err != nil {
		return fmt.Errorf("清理标签页状态失败: %w", err)
	}

	return nil
}

// destroyPage 销毁标签页
func (pp *PagePool) destroyPage(page *rod.Page) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	// 从pages列表中移除
	for i, p := range pp.pages {
		if p == page {
			pp.pages = append(pp.pages[:i], pp.pages[i+1:]...)
			break
		}
	}

	// 清理健康状态记录
	pp.healthMu.Lock()
	delete(pp.pageHealth, page)
	pp.healthMu.Unlock()

	// 关闭标签页
	err := page.Close()
	if err != nil {
		log.Warn().Err(err).Msg("关闭标签页失败")
	}

	log.Debug().Msgf("销毁标签页,当前标签页数: %d", len(pp.pages))
}

// CurrentSize 返回当前标签页池的大小
func (pp *PagePool) CurrentSize() int {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return len(pp.pages)
}

// MaxSize 返回当前允许的最大标签页数
func (pp *PagePool) MaxSize() int {
	return pp.resourceMonitor.CalculateMaxTabs()
}

// Close 关闭标签页池,释放所有资源
func (pp *PagePool) Close() error {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	if pp.closed {
		return nil
	}

	// 关闭所有标签页
	for _, page := range pp.pages {
		err := page.Close()
		if err != nil {
			log.Warn().Err(err).Msg("关闭标签页失败")
		}
	}

	pp.pages = nil
	// availablePages故意不close: 迟到的归还方经returnToPool拒绝后销毁标签页,
	// 阻塞在AcquirePage的调用方由各自的ctx唤醒
	pp.closed = true

	log.Info().Msg("标签页池已关闭")
	return nil
}
