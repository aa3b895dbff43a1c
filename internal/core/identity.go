package core

import (
	"context"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/RecoveryAshes/CorpusCrawl/internal/config"
	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/RecoveryAshes/CorpusCrawl/internal/utils"
)

// builtinUserAgents 内置User-Agent池
// 身份配置文件缺失或为空时使用
var builtinUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// builtinReferers 内置Referer池 (搜索引擎来源)
var builtinReferers = []string{
	"https://www.google.com/search?q=",
	"https://duckduckgo.com/?q=",
	"https://www.bing.com/search?q=",
}

// IdentityPool 请求身份池
// 实现 models.IdentityProvider 接口
// 职责:
//   - 每次请求轮换User-Agent与Referer组合
//   - 合并内置默认、配置文件与命令行头部 (优先级: 默认 < 配置 < 命令行)
//   - 请求前随机休眠,打散请求节奏
type IdentityPool struct {
	// configFile 身份配置文件路径
	configFile string

	// userAgents 轮换使用的User-Agent池
	userAgents []string

	// referers 轮换使用的Referer池
	referers []string

	// defaults 系统默认头部 (硬编码)
	defaults http.Header

	// config 从配置文件加载的附加头部
	config http.Header

	// cli 从命令行参数解析的头部
	cli http.Header

	// minDelay/maxDelay 请求间隔区间(秒)
	minDelay float64
	maxDelay float64

	// validator 头部验证器
	validator *utils.HeaderValidator

	// redactor 头部脱敏器
	redactor *utils.HeaderRedactor

	// configLoader 身份配置文件加载器
	configLoader *config.IdentityConfigLoader

	// initOnce 保证配置加载与验证恰好执行一次
	// NextHeaders会被每个种子goroutine并发调用,
	// 初始化完成后 userAgents/referers/config 只读
	initOnce sync.Once
	initErr  error
}

// NewIdentityPool 创建请求身份池
// 参数:
//   - configFile: 身份配置文件路径 (如为空则使用默认路径)
//   - cliHeaders: 命令行传递的头部字符串列表
//   - minDelay/maxDelay: 请求间隔区间(秒)
//
// 返回:
//   - *IdentityPool: 身份池实例
//   - error: 如果命令行参数解析失败
func NewIdentityPool(configFile string, cliHeaders []string, minDelay, maxDelay float64) (*IdentityPool, error) {
	ip := &IdentityPool{
		configFile:   configFile,
		userAgents:   builtinUserAgents,
		referers:     builtinReferers,
		defaults:     getDefaultHeaders(),
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewIdentityConfigLoader(configFile),
	}

	// 解析命令行头部
	if len(cliHeaders) > 0 {
		cliHeadersParsed, err := models.CliHeaders(cliHeaders).Parse()
		if err != nil {
			return nil, err
		}
		ip.cli = cliHeadersParsed
	} else {
		ip.cli = make(http.Header)
	}

	return ip, nil
}

// getDefaultHeaders 返回系统默认头部 (不含User-Agent和Referer,两者按请求轮换)
func getDefaultHeaders() http.Header {
	return http.Header{
		"Accept":                    []string{"text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8"},
		"Accept-Language":           []string{"en-US,en;q=0.9"},
		"Accept-Encoding":           []string{"gzip, deflate, br"},
		"Upgrade-Insecure-Requests": []string{"1"},
	}
}

// Init 加载身份配置文件并验证所有头部
// 并发调用安全: 加载与验证只执行一次,之后返回缓存的结果
func (ip *IdentityPool) Init() error {
	ip.initOnce.Do(func() {
		if err := ip.loadConfig(); err != nil {
			ip.initErr = err
			return
		}
		ip.initErr = ip.validateHeaders()
	})
	return ip.initErr
}

// loadConfig 加载身份配置文件,只能经由Init调用
func (ip *IdentityPool) loadConfig() error {
	identityConfig, err := ip.configLoader.LoadConfig()
	if err != nil {
		utils.Errorf("加载身份配置失败: %v", err)
		return err
	}

	// 配置文件中的池覆盖内置池
	if len(identityConfig.UserAgents) > 0 {
		ip.userAgents = identityConfig.UserAgents
	}
	if len(identityConfig.Referers) > 0 {
		ip.referers = identityConfig.Referers
	}

	// 将map[string]string转换为http.Header
	ip.config = make(http.Header)
	for name, value := range identityConfig.Headers {
		ip.config.Set(name, value)
	}

	// 记录加载成功 (脱敏后的头部)
	if len(identityConfig.Headers) > 0 {
		safeHeaders := ip.redactor.Redact(ip.config)
		utils.Debugf("成功加载身份配置: UA池=%d个, Referer池=%d个, 附加头部=%v",
			len(ip.userAgents), len(ip.referers), safeHeaders)
	}

	return nil
}

// validateHeaders 验证所有头部的合法性,只能经由Init调用
// 验证顺序: 默认 → 配置 → 命令行
func (ip *IdentityPool) validateHeaders() error {
	if err := ip.validator.Validate(ip.defaults); err != nil {
		utils.Errorf("默认头部验证失败: %v", err)
		return err
	}

	if err := ip.validator.Validate(ip.config); err != nil {
		utils.Errorf("配置文件头部验证失败: %v", err)
		return err
	}

	if err := ip.validator.Validate(ip.cli); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}

	utils.Debugf("所有HTTP头部验证通过")
	return nil
}

// NextHeaders 实现 models.IdentityProvider 接口
// 返回下一次请求使用的HTTP头部,User-Agent与Referer从池中随机选取
func (ip *IdentityPool) NextHeaders() (http.Header, error) {
	// 确保配置已加载并通过验证
	if err := ip.Init(); err != nil {
		return nil, err
	}

	// 按优先级合并 (默认 < 轮换身份 < 配置 < 命令行)
	result := make(http.Header)
	for name, values := range ip.defaults {
		result[name] = values
	}

	if len(ip.userAgents) > 0 {
		result.Set("User-Agent", ip.userAgents[rand.IntN(len(ip.userAgents))])
	}
	if len(ip.referers) > 0 {
		result.Set("Referer", ip.referers[rand.IntN(len(ip.referers))])
	}

	for name, values := range ip.config {
		result[name] = values
	}
	for name, values := range ip.cli {
		result[name] = values
	}

	return result, nil
}

// Pace 实现 models.IdentityProvider 接口
// 在[minDelay, maxDelay]区间内随机休眠,ctx取消时立即返回
func (ip *IdentityPool) Pace(ctx context.Context) {
	if ip.maxDelay <= 0 {
		return
	}

	delay := ip.minDelay + rand.Float64()*(ip.maxDelay-ip.minDelay)
	timer := time.NewTimer(time.Duration(delay * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// SafeHeaders 返回脱敏后的当前头部 (用于日志)
func (ip *IdentityPool) SafeHeaders() map[string]string {
	headers, err := ip.NextHeaders()
	if err != nil {
		return map[string]string{}
	}
	return ip.redactor.Redact(headers)
}
