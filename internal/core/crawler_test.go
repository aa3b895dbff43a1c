package core

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/RecoveryAshes/CorpusCrawl/internal/crawlers"
	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
)

// fakePage 测试站点的单个页面
type fakePage struct {
	text  string
	links []models.Link
}

// fakeSite 测试用抓取器+提取器
// 模拟回退链的预算语义: 每次抓取前向会话预留配额
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]fakePage
	fetches map[string]int
	session *CrawlSession
}

func newFakeSite(session *CrawlSession) *fakeSite {
	return &fakeSite{
		pages:   make(map[string]fakePage),
		fetches: make(map[string]int),
		session: session,
	}
}

func (fs *fakeSite) addPage(url, text string, links ...models.Link) {
	fs.pages[url] = fakePage{text: text, links: links}
}

func (fs *fakeSite) fetchCount(url string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.fetches[url]
}

// Fetch 实现 Fetcher 接口
func (fs *fakeSite) Fetch(ctx context.Context, rawURL string) (*models.FetchResult, error) {
	origin, err := models.OriginOf(rawURL)
	if err != nil {
		return nil, err
	}
	if !fs.session.TryReserve(origin) {
		return nil, crawlers.ErrBudgetExhausted
	}

	fs.mu.Lock()
	fs.fetches[rawURL]++
	fs.mu.Unlock()

	if _, ok := fs.pages[rawURL]; !ok {
		return nil, crawlers.ErrAllStrategiesFailed
	}

	return &models.FetchResult{
		URL:      rawURL,
		Origin:   origin,
		HTML:     rawURL, // 提取器按URL查表,HTML内容无关紧要
		Strategy: models.StrategyDirect,
	}, nil
}

// Extract 实现 Extractor 接口
func (fs *fakeSite) Extract(htmlStr, pageURL string) (*models.ExtractedPage, error) {
	page := fs.pages[pageURL]
	return &models.ExtractedPage{
		Text:  page.text,
		Links: page.links,
	}, nil
}

func testConfig() models.CrawlConfig {
	config := models.DefaultCrawlConfig()
	config.MinDelay = 0
	config.MaxDelay = 0
	return config
}

func TestNewCrawlerValidation(t *testing.T) {
	config := testConfig()
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	tests := []struct {
		name  string
		topic string
		seeds []string
	}{
		{"空主题", "  ", []string{"https://example.com"}},
		{"无种子", "topic", nil},
		{"全部种子非法", "topic", []string{"://bad", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCrawler(tt.topic, tt.seeds, config, session, site, site); err == nil {
				t.Error("期望返回错误")
			}
		})
	}
}

func TestNewCrawlerSeedNormalization(t *testing.T) {
	config := testConfig()
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	seeds := []string{
		"example.com/page",                         // 补全协议
		"https://example.com/page?utm_source=mail", // 净化后与上面重复
		"https://other.com/doc#section",            // 去除追踪参数不影响片段外的部分
		"://invalid",                               // 非法,跳过
	}

	c, err := NewCrawler("topic", seeds, config, session, site, site)
	if err != nil {
		t.Fatalf("NewCrawler失败: %v", err)
	}

	got := c.Seeds()
	want := []string{
		"https://example.com/page",
		"https://other.com/doc",
	}
	if len(got) != len(want) {
		t.Fatalf("种子数 = %d (%v), 期望 %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Seeds[%d] = %s, 期望 %s", i, got[i], want[i])
		}
	}
}

func TestNewCrawlerSeedTruncation(t *testing.T) {
	config := testConfig()
	config.MaxSeeds = 2
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	seeds := []string{"https://a.com", "https://b.com", "https://c.com"}
	c, err := NewCrawler("topic", seeds, config, session, site, site)
	if err != nil {
		t.Fatalf("NewCrawler失败: %v", err)
	}
	if len(c.Seeds()) != 2 {
		t.Errorf("种子数 = %d, 期望截断到 2", len(c.Seeds()))
	}
}

func TestCrawlSingleSeed(t *testing.T) {
	config := testConfig()
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	site.addPage("https://example.com/", "go concurrency patterns",
		models.Link{URL: "https://example.com/sub", Anchor: "more about go"})
	site.addPage("https://example.com/sub", "go channels explained")

	c, err := NewCrawler("go", []string{"https://example.com/"}, config, session, site, site)
	if err != nil {
		t.Fatalf("NewCrawler失败: %v", err)
	}

	result, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl失败: %v", err)
	}

	if result.State != models.StateCompleted {
		t.Errorf("State = %s, 期望 completed", result.State)
	}
	if result.Stats.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, 期望 2", result.Stats.PagesFetched)
	}
	if !strings.Contains(result.Corpus, "go concurrency patterns") ||
		!strings.Contains(result.Corpus, "go channels explained") {
		t.Errorf("Corpus = %q, 期望包含两个页面的文本", result.Corpus)
	}
	if result.WordCount == 0 {
		t.Error("WordCount不应为0")
	}
	if len(result.Blocks) != 1 || result.Blocks[0].Pages != 2 {
		t.Errorf("Blocks = %+v, 期望1个块2个页面", result.Blocks)
	}
}

func TestCrawlDepthLimit(t *testing.T) {
	config := testConfig()
	config.MaxDepth = 2
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	// 链式结构: 深度0 → 1 → 2 → 3
	site.addPage("https://example.com/d0", "go d0",
		models.Link{URL: "https://example.com/d1", Anchor: "go link"})
	site.addPage("https://example.com/d1", "go d1",
		models.Link{URL: "https://example.com/d2", Anchor: "go link"})
	site.addPage("https://example.com/d2", "go d2",
		models.Link{URL: "https://example.com/d3", Anchor: "go link"})
	site.addPage("https://example.com/d3", "go d3")

	c, err := NewCrawler("go", []string{"https://example.com/d0"}, config, session, site, site)
	if err != nil {
		t.Fatalf("NewCrawler失败: %v", err)
	}

	result, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl失败: %v", err)
	}

	if site.fetchCount("https://example.com/d3") != 0 {
		t.Error("深度3的页面不应被抓取")
	}
	if result.Stats.PagesFetched != 3 {
		t.Errorf("PagesFetched = %d, 期望 3 (深度0/1/2)", result.Stats.PagesFetched)
	}
	if strings.Contains(result.Corpus, "go d3") {
		t.Error("Corpus不应包含越深页面的文本")
	}
}

func TestCrawlBudgetExhaustion(t *testing.T) {
	config := testConfig()
	config.MaxPages = 2
	config.PerOriginCap = 2
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	site.addPage("https://example.com/", "go page one",
		models.Link{URL: "https://example.com/two", Anchor: "go two"},
		models.Link{URL: "https://example.com/three", Anchor: "go three"})
	site.addPage("https://example.com/two", "go page two",
		models.Link{URL: "https://example.com/four", Anchor: "go four"})
	site.addPage("https://example.com/three", "go page three")
	site.addPage("https://example.com/four", "go page four")

	c, err := NewCrawler("go", []string{"https://example.com/"}, config, session, site, site)
	if err != nil {
		t.Fatalf("NewCrawler失败: %v", err)
	}

	result, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl失败: %v", err)
	}

	// 预算耗尽时状态为exhausted,已采集的部分语料仍然保留
	if result.State != models.StateExhausted {
		t.Errorf("State = %s, 期望 exhausted", result.State)
	}
	if result.Stats.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, 期望 2", result.Stats.PagesFetched)
	}
	if !strings.Contains(result.Corpus, "go page one") {
		t.Errorf("Corpus = %q, 部分语料应保留", result.Corpus)
	}
}

func TestCrawlCrossSeedDedup(t *testing.T) {
	config := testConfig()
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	// 两个同源种子,互相链接到同一个共享页面
	shared := "https://example.com/shared"
	site.addPage("https://example.com/a", "go seed a",
		models.Link{URL: shared, Anchor: "go shared"})
	site.addPage("https://example.com/b", "go seed b",
		models.Link{URL: shared, Anchor: "go shared"})
	site.addPage(shared, "go shared content")

	seeds := []string{"https://example.com/a", "https://example.com/b"}
	c, err := NewCrawler("go", seeds, config, session, site, site)
	if err != nil {
		t.Fatalf("NewCrawler失败: %v", err)
	}

	if _, err := c.Crawl(context.Background()); err != nil {
		t.Fatalf("Crawl失败: %v", err)
	}

	// 会话级去重: 共享页面只被抓取一次
	if got := site.fetchCount(shared); got != 1 {
		t.Errorf("共享页面抓取次数 = %d, 期望 1", got)
	}
}

func TestCrawlBlocksInSeedOrder(t *testing.T) {
	config := testConfig()
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	site.addPage("https://a.com/", "go alpha text")
	site.addPage("https://b.com/", "go beta text")
	site.addPage("https://c.com/", "go gamma text")

	seeds := []string{"https://a.com/", "https://b.com/", "https://c.com/"}
	c, err := NewCrawler("go", seeds, config, session, site, site)
	if err != nil {
		t.Fatalf("NewCrawler失败: %v", err)
	}

	result, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl失败: %v", err)
	}

	// 尽管并发采集,语料块必须按种子顺序排列
	if len(result.Blocks) != 3 {
		t.Fatalf("Blocks数 = %d, 期望 3", len(result.Blocks))
	}
	for i, seed := range seeds {
		if result.Blocks[i].SeedURL != seed {
			t.Errorf("Blocks[%d].SeedURL = %s, 期望 %s", i, result.Blocks[i].SeedURL, seed)
		}
	}

	alpha := strings.Index(result.Corpus, "go alpha text")
	beta := strings.Index(result.Corpus, "go beta text")
	gamma := strings.Index(result.Corpus, "go gamma text")
	if alpha < 0 || beta < 0 || gamma < 0 || alpha > beta || beta > gamma {
		t.Errorf("语料拼接顺序错误: alpha=%d beta=%d gamma=%d", alpha, beta, gamma)
	}
}

func TestCrawlFailedURLCounted(t *testing.T) {
	config := testConfig()
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	site.addPage("https://example.com/", "go main",
		models.Link{URL: "https://example.com/missing", Anchor: "go missing"})
	// /missing 未注册,抓取失败

	c, err := NewCrawler("go", []string{"https://example.com/"}, config, session, site, site)
	if err != nil {
		t.Fatalf("NewCrawler失败: %v", err)
	}

	result, err := c.Crawl(context.Background())
	if err != nil {
		t.Fatalf("Crawl失败: %v", err)
	}

	if result.Stats.FailedURLs != 1 {
		t.Errorf("FailedURLs = %d, 期望 1", result.Stats.FailedURLs)
	}
	// 单页失败不影响整体状态
	if result.State != models.StateCompleted {
		t.Errorf("State = %s, 期望 completed", result.State)
	}
}

func TestCrawlTopicFiltersLinks(t *testing.T) {
	config := testConfig()
	session := NewCrawlSession(config.MaxPages, config.PerOriginCap)
	site := newFakeSite(session)

	site.addPage("https://example.com/", "go root",
		models.Link{URL: "https://example.com/related", Anchor: "all about go"},
		models.Link{URL: "https://example.com/unrelated", Anchor: "cooking recipes"})
	site.addPage("https://example.com/related", "go related")
	site.addPage("https://example.com/unrelated", "cooking")

	c, err := NewCrawler("go", []string{"https://example.com/"}, config, session, site, site)
	if err != nil {
		t.Fatalf("NewCrawler失败: %v", err)
	}

	if _, err := c.Crawl(context.Background()); err != nil {
		t.Fatalf("Crawl失败: %v", err)
	}

	if site.fetchCount("https://example.com/related") != 1 {
		t.Error("主题相关链接应被跟进")
	}
	if site.fetchCount("https://example.com/unrelated") != 0 {
		t.Error("主题无关链接不应被跟进")
	}
}
