package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/CorpusCrawl/internal/crawlers"
	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/RecoveryAshes/CorpusCrawl/internal/utils"
)

// Fetcher 页面抓取接口 (由crawlers.FetchChain实现)
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.FetchResult, error)
}

// Extractor 内容提取接口 (由crawlers.ContentExtractor实现)
type Extractor interface {
	Extract(htmlStr, pageURL string) (*models.ExtractedPage, error)
}

// Crawler 主题采集协调器
// 职责:
//  1. 规范化并去重种子URL
//  2. 每个种子启动一个源采集goroutine,各自维护BFS边界
//  3. 通过会话统一控制全局与单源页面预算
//  4. 按种子顺序拼接各源的语料块为最终语料
type Crawler struct {
	topic  string
	seeds  []string
	config models.CrawlConfig

	session   *CrawlSession
	fetcher   Fetcher
	extractor Extractor
	filter    *crawlers.TopicFilter

	// 统计信息与预算耗尽标记,跨源goroutine共享
	mu        sync.Mutex
	stats     models.CrawlStats
	exhausted bool
}

// NewCrawler 创建采集协调器
// 种子URL经过规范化(补全协议)、净化(去除追踪参数)、合法性检查与去重,
// 超出上限的种子被截断并记录日志
func NewCrawler(
	topic string,
	seeds []string,
	config models.CrawlConfig,
	session *CrawlSession,
	fetcher Fetcher,
	extractor Extractor,
) (*Crawler, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("采集主题不能为空")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 规范化 → 净化 → 验证 → 去重
	seen := make(map[string]bool)
	normalized := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		raw := utils.NormalizeURL(strings.TrimSpace(seed))
		if raw == "" {
			continue
		}

		clean, err := models.SanitizeURL(raw)
		if err != nil {
			utils.Warnf("种子URL非法,已跳过: %s (%v)", seed, err)
			continue
		}
		if err := models.ValidateURL(clean); err != nil {
			utils.Warnf("种子URL非法,已跳过: %s (%v)", seed, err)
			continue
		}

		if seen[clean] {
			utils.Debugf("种子URL重复,已跳过: %s", clean)
			continue
		}
		seen[clean] = true
		normalized = append(normalized, clean)
	}

	if len(normalized) == 0 {
		return nil, fmt.Errorf("没有任何有效的种子URL")
	}

	// 超出上限的种子直接截断
	if len(normalized) > config.MaxSeeds {
		utils.Warnf("种子数量超过上限 %d,多余的 %d 个被忽略",
			config.MaxSeeds, len(normalized)-config.MaxSeeds)
		normalized = normalized[:config.MaxSeeds]
	}

	return &Crawler{
		topic:     topic,
		seeds:     normalized,
		config:    config,
		session:   session,
		fetcher:   fetcher,
		extractor: extractor,
		filter:    crawlers.NewTopicFilter(topic),
	}, nil
}

// Seeds 返回规范化后实际使用的种子URL
func (c *Crawler) Seeds() []string {
	return c.seeds
}

// Crawl 执行完整采集
// 每个种子一个goroutine并发采集,语料块按种子顺序排列。
// 任一源因预算耗尽中止时,最终状态为exhausted,已采集的部分语料仍然返回
func (c *Crawler) Crawl(ctx context.Context) (*models.CrawlResult, error) {
	startTime := time.Now()

	utils.Infof("🚀 开始语料采集任务")
	utils.Infof("主题: %s", c.topic)
	utils.Infof("种子数量: %d", len(c.seeds))
	utils.Infof("最大深度: %d, 全局页面上限: %d, 单源上限: %d",
		c.config.MaxDepth, c.config.MaxPages, c.config.PerOriginCap)

	// 语料块按种子顺序占位,并发写入各自的槽位
	blocks := make([]*models.CorpusBlock, len(c.seeds))

	var wg sync.WaitGroup
	for i, seed := range c.seeds {
		wg.Add(1)
		go func(idx int, seedURL string) {
			defer wg.Done()
			blocks[idx] = c.crawlSeed(ctx, seedURL)
		}(i, seed)
	}
	wg.Wait()

	// 组装结果
	result := &models.CrawlResult{
		SessionID: c.session.ID,
		Topic:     c.topic,
		SeedURLs:  c.seeds,
		StartTime: startTime,
		EndTime:   time.Now(),
	}

	corpusParts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block == nil {
			continue
		}
		result.Blocks = append(result.Blocks, *block)
		if strings.TrimSpace(block.Text) != "" {
			corpusParts = append(corpusParts, block.Text)
		}
	}

	result.Corpus = strings.Join(corpusParts, "\n\n")
	result.WordCount = utils.CountWords(result.Corpus)

	c.mu.Lock()
	c.stats.VisitedURLs = c.session.VisitedCount()
	c.stats.Duration = time.Since(startTime).Seconds()
	result.Stats = c.stats
	if c.exhausted {
		result.State = models.StateExhausted
	} else {
		result.State = models.StateCompleted
	}
	c.mu.Unlock()

	utils.Infof("✅ 采集任务完成: 状态=%s, 页面=%d, 词数=%d, 耗时=%.2f秒",
		result.State, result.Stats.PagesFetched, result.WordCount, result.Stats.Duration)

	return result, nil
}

// crawlSeed 采集单个种子对应的源
// 从种子出发做BFS: 出队 → 会话级去重 → 抓取 → 提取 → 主题过滤 → 扩展边界
// 预算耗尽时中止该源,已累积的语料块原样返回
func (c *Crawler) crawlSeed(ctx context.Context, seedURL string) *models.CorpusBlock {
	origin, err := models.OriginOf(seedURL)
	if err != nil {
		utils.Errorf("无法解析种子的源: %s (%v)", seedURL, err)
		return nil
	}

	block := models.NewCorpusBlock(origin, seedURL)
	texts := make([]string, 0, c.config.PerOriginCap)

	frontier := crawlers.NewFrontier(origin, c.config.MaxDepth)
	if err := frontier.Push(seedURL, 0, ""); err != nil {
		utils.Errorf("种子入队失败: %s (%v)", seedURL, err)
		return block
	}

	utils.Infof("🔍 开始采集源: %s", origin)

	for {
		entry, ok := frontier.Pop()
		if !ok {
			break
		}

		if ctx.Err() != nil {
			utils.Warnf("上下文已取消,中止源采集: %s", origin)
			break
		}

		// 会话级去重,跨种子共享
		if !c.session.MarkVisited(entry.URL) {
			c.addSkipped()
			utils.Debugf("URL已访问,跳过: %s", entry.URL)
			continue
		}

		utils.Infof("📥 抓取 [深度%d] %s", entry.Depth, entry.URL)

		result, err := c.fetcher.Fetch(ctx, entry.URL)
		if err != nil {
			if errors.Is(err, crawlers.ErrBudgetExhausted) {
				c.markExhausted()
				utils.Infof("⛔ 源采集因预算耗尽中止: %s", origin)
				break
			}
			c.addFailed()
			utils.Warnf("抓取失败,放弃该URL: %s (%v)", entry.URL, err)
			continue
		}

		c.recordFetch(result.Strategy)

		page, err := c.extractor.Extract(result.HTML, entry.URL)
		if err != nil {
			utils.Warnf("内容提取失败: %s (%v)", entry.URL, err)
			continue
		}

		// 主题过滤后累积到语料块
		if text := c.filter.FilterText(page.Text); strings.TrimSpace(text) != "" {
			texts = append(texts, text)
			block.Pages++
		}

		// 未达最大深度时,相关链接进入边界
		if entry.Depth < c.config.MaxDepth {
			for _, link := range c.filter.FilterLinks(page.Links) {
				clean, err := models.SanitizeURL(link.URL)
				if err != nil {
					continue
				}
				if c.session.IsVisited(clean) {
					continue
				}
				if err := frontier.Push(clean, entry.Depth+1, entry.URL); err != nil {
					utils.Debugf("链接未入队: %s (%v)", clean, err)
				}
			}
		}
	}

	block.Text = strings.Join(texts, "\n")
	block.WordCount = utils.CountWords(block.Text)

	utils.Infof("✅ 源采集结束: %s (页面=%d, 词数=%d)", origin, block.Pages, block.WordCount)
	return block
}

// recordFetch 按策略类型累加抓取统计
func (c *Crawler) recordFetch(strategy models.StrategyKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.PagesFetched++
	switch strategy {
	case models.StrategyDirect:
		c.stats.DirectPages++
	case models.StrategyRendered:
		c.stats.RenderedPages++
	case models.StrategyArchived:
		c.stats.ArchivedPages++
	}
}

func (c *Crawler) addFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.FailedURLs++
}

func (c *Crawler) addSkipped() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.SkippedURLs++
}

func (c *Crawler) markExhausted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exhausted = true
}
