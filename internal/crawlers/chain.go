package crawlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/RecoveryAshes/CorpusCrawl/internal/utils"
)

var (
	// ErrBudgetExhausted 页面预算耗尽
	// 收到此错误意味着整个回退链被中止,调用方应结束该源的采集
	ErrBudgetExhausted = errors.New("页面预算已耗尽")

	// ErrAllStrategiesFailed 所有抓取策略均失败
	ErrAllStrategiesFailed = errors.New("所有抓取策略均失败")

	// ErrNoSnapshot 历史归档中没有该URL的快照
	ErrNoSnapshot = errors.New("没有可用的历史快照")
)

// Strategy 单个抓取策略
// 成功时返回页面HTML,失败时返回错误(由回退链决定是否尝试下一策略)
type Strategy interface {
	// Kind 返回策略类型标识
	Kind() models.StrategyKind

	// Fetch 抓取单个URL并返回HTML
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// BudgetReserver 页面预算预留接口
// 每次网络抓取尝试前必须先成功预留一个配额
type BudgetReserver interface {
	// TryReserve 原子性地检查并预留一个页面配额
	// 单源配额和全局配额任一耗尽时返回false,且不产生任何计数变化
	TryReserve(origin string) bool
}

// FetchChain 多策略回退抓取链
// 按固定顺序尝试策略: 直接抓取 → 无头渲染 → 历史快照
// 每次策略尝试前都要预留预算配额,预留失败立即中止整个链
type FetchChain struct {
	strategies []Strategy
	budget     BudgetReserver
	identity   models.IdentityProvider
}

// NewFetchChain 创建回退抓取链
// strategies按传入顺序尝试
func NewFetchChain(budget BudgetReserver, identity models.IdentityProvider, strategies ...Strategy) *FetchChain {
	return &FetchChain{
		strategies: strategies,
		budget:     budget,
		identity:   identity,
	}
}

// Fetch 依次尝试各策略抓取URL
// 返回第一个成功策略的结果
//
// 错误情况:
//   - ErrBudgetExhausted: 某次预算预留被拒绝,链被中止
//   - ErrAllStrategiesFailed: 所有策略都尝试过且都失败
//   - ctx.Err(): 上下文被取消
func (fc *FetchChain) Fetch(ctx context.Context, rawURL string) (*models.FetchResult, error) {
	origin, err := models.OriginOf(rawURL)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, strategy := range fc.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// 每次抓取尝试消耗一个配额,无论成功与否
		if !fc.budget.TryReserve(origin) {
			utils.Infof("⛔ 页面预算耗尽,中止抓取: %s", rawURL)
			return nil, ErrBudgetExhausted
		}

		// 打散请求节奏
		fc.identity.Pace(ctx)

		html, err := strategy.Fetch(ctx, rawURL)
		if err != nil {
			// 快照策略内部的第二次预留被拒绝时,同样中止整个链
			if errors.Is(err, ErrBudgetExhausted) {
				return nil, ErrBudgetExhausted
			}
			utils.Warnf("策略失败 [%s] %s: %v", strategy.Kind(), rawURL, err)
			lastErr = err
			continue
		}

		if strings.TrimSpace(html) == "" {
			utils.Warnf("策略返回空文档 [%s] %s", strategy.Kind(), rawURL)
			lastErr = fmt.Errorf("策略 %s 返回空文档", strategy.Kind())
			continue
		}

		utils.Debugf("抓取成功 [%s] %s (%d bytes)", strategy.Kind(), rawURL, len(html))
		return &models.FetchResult{
			URL:      rawURL,
			Origin:   origin,
			HTML:     html,
			Strategy: strategy.Kind(),
		}, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w [%s]: %v", ErrAllStrategiesFailed, rawURL, lastErr)
	}
	return nil, fmt.Errorf("%w [%s]", ErrAllStrategiesFailed, rawURL)
}
