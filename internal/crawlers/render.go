package crawlers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/RecoveryAshes/CorpusCrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// networkIdleWait 判定网络空闲前的静默时长
const networkIdleWait = 800 * time.Millisecond

// RenderFetcher 无头浏览器渲染抓取策略(使用Rod)
// 回退链的第二级: 执行JavaScript并等待网络空闲,
// 用于直接抓取被拦截或内容由前端渲染的站点
//
// 浏览器实例在首次抓取时惰性启动,之后在所有抓取间共享,
// 标签页通过PagePool复用并受资源监控约束
type RenderFetcher struct {
	config   models.CrawlConfig
	identity models.IdentityProvider

	mu              sync.Mutex
	browser         *rod.Browser
	pagePool        *PagePool
	resourceMonitor *ResourceMonitor
	ctx             context.Context
	cancel          context.CancelFunc
	started         bool
}

// NewRenderFetcher 创建渲染抓取策略
func NewRenderFetcher(config models.CrawlConfig, identity models.IdentityProvider) *RenderFetcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &RenderFetcher{
		config:   config,
		identity: identity,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Kind 实现 Strategy 接口
func (rf *RenderFetcher) Kind() models.StrategyKind {
	return models.StrategyRendered
}

// Fetch 在无头浏览器中渲染页面并返回最终HTML
// 执行流程:
//  1. 惰性启动共享浏览器
//  2. 从标签页池获取标签页,覆盖User-Agent
//  3. 导航并等待load事件 + 网络空闲
//  4. 额外等待WaitTime秒让延迟脚本执行
//  5. 序列化渲染后的DOM
func (rf *RenderFetcher) Fetch(ctx context.Context, rawURL string) (html string, err error) {
	// rod内部操作可能panic,统一转换为error交给回退链处理
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("渲染抓取panic [%s]: %v", rawURL, r)
			err = fmt.Errorf("渲染抓取panic: %v", r)
		}
	}()

	if err := rf.ensureBrowser(); err != nil {
		return "", err
	}

	page, err := rf.pagePool.AcquirePage(ctx)
	if err != nil {
		// 浏览器可能已崩溃,重启一次后再试
		utils.Warnf("获取标签页失败,尝试重启浏览器: %v", err)
		if err := rf.restartBrowser(); err != nil {
			return "", err
		}
		page, err = rf.pagePool.AcquirePage(ctx)
		if err != nil {
			return "", fmt.Errorf("获取标签页失败: %w", err)
		}
	}
	defer rf.pagePool.ReleasePage(page)

	rf.applyIdentity(page)

	// 整个渲染过程受RenderTimeout约束
	renderCtx, cancelRender := context.WithTimeout(ctx, time.Duration(rf.config.RenderTimeout)*time.Second)
	defer cancelRender()
	p := page.Context(renderCtx)

	if err := p.Navigate(rawURL); err != nil {
		return "", fmt.Errorf("导航失败 [%s]: %w", rawURL, err)
	}

	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("等待页面加载失败 [%s]: %w", rawURL, err)
	}

	// 等待网络空闲,保证异步加载的内容就位
	waitIdle := p.WaitRequestIdle(networkIdleWait, nil, nil, nil)
	waitIdle()

	// 额外等待时间(等待延迟执行的渲染脚本)
	if rf.config.WaitTime > 0 {
		select {
		case <-renderCtx.Done():
			return "", renderCtx.Err()
		case <-time.After(time.Duration(rf.config.WaitTime) * time.Second):
		}
	}

	html, err = p.HTML()
	if err != nil {
		return "", fmt.Errorf("获取渲染后HTML失败 [%s]: %w", rawURL, err)
	}

	utils.Debugf("页面渲染完成: %s (%d bytes)", rawURL, len(html))
	return html, nil
}

// applyIdentity 将身份池的User-Agent与附加头部应用到标签页
func (rf *RenderFetcher) applyIdentity(page *rod.Page) {
	headers, err := rf.identity.NextHeaders()
	if err != nil {
		utils.Warnf("获取请求头部失败: %v", err)
		return
	}

	if ua := headers.Get("User-Agent"); ua != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
			utils.Warnf("设置User-Agent失败: %v", err)
		}
	}

	// Referer和语言偏好通过附加头部下发
	// Accept-Encoding交给浏览器自己协商
	extra := make([]string, 0, 4)
	for _, name := range []string{"Referer", "Accept-Language"} {
		if value := headers.Get(name); value != "" {
			extra = append(extra, name, value)
		}
	}
	if len(extra) > 0 {
		if _, err := page.SetExtraHeaders(extra); err != nil {
			utils.Warnf("设置附加头部失败: %v", err)
		}
	}
}

// ensureBrowser 惰性启动共享浏览器实例
func (rf *RenderFetcher) ensureBrowser() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.started {
		return nil
	}
	return rf.launchBrowserLocked()
}

// restartBrowser 关闭并重启浏览器
func (rf *RenderFetcher) restartBrowser() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	rf.closeBrowserLocked()
	time.Sleep(2 * time.Second)
	return rf.launchBrowserLocked()
}

// launchBrowserLocked 启动浏览器,调用者必须持有rf.mu
func (rf *RenderFetcher) launchBrowserLocked() error {
	l := launcher.New().Headless(rf.config.Headless)

	// 允许访问自签名、过期或主机名不匹配的HTTPS站点
	l = l.Set("ignore-certificate-errors")

	// 关闭Blink的自动化标记,配合标签页注入的反检测脚本
	l = l.Set("disable-blink-features", "AutomationControlled")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("连接浏览器失败: %w", err)
	}

	rf.browser = browser
	rf.resourceMonitor = NewResourceMonitor(ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * 1024 * 1024, // 1GB
		SafetyThreshold:     500 * 1024 * 1024,  // 500MB
		CPULoadThreshold:    80,                 // 80%
		MaxTabsLimit:        rf.config.MaxTabs,
		TabMemoryUsage:      100 * 1024 * 1024, // 100MB per tab
	})
	rf.resourceMonitor.StartMonitoring(1 * time.Second)
	rf.pagePool = NewPagePool(rf.browser, rf.resourceMonitor, rf.ctx)
	rf.started = true

	utils.Debugf("浏览器已启动: %s", controlURL)
	return nil
}

// closeBrowserLocked 关闭浏览器及相关资源,调用者必须持有rf.mu
func (rf *RenderFetcher) closeBrowserLocked() {
	if !rf.started {
		return
	}

	if rf.pagePool != nil {
		if err := rf.pagePool.Close(); err != nil {
			utils.Warnf("关闭标签页池失败: %v", err)
		}
		rf.pagePool = nil
	}
	if rf.resourceMonitor != nil {
		rf.resourceMonitor.StopMonitoring()
		rf.resourceMonitor = nil
	}
	if rf.browser != nil {
		if err := rf.browser.Close(); err != nil {
			utils.Warnf("关闭浏览器失败: %v", err)
		}
		rf.browser = nil
	}
	rf.started = false
	utils.Debugf("浏览器已关闭")
}

// Close 释放浏览器资源
// 采集会话结束后调用
func (rf *RenderFetcher) Close() {
	rf.cancel()

	rf.mu.Lock()
	defer rf.mu.Unlock()
	rf.closeBrowserLocked()
}
