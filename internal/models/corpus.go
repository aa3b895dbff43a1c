package models

import (
	"encoding/json"
	"time"
)

// CrawlState 会话状态
type CrawlState string

const (
	StateIdle      CrawlState = "idle"      // 未开始
	StateRunning   CrawlState = "running"   // 采集中
	StateCompleted CrawlState = "completed" // 边界耗尽,正常结束
	StateExhausted CrawlState = "exhausted" // 页面预算耗尽,提前结束
)

// CorpusBlock 单个源产出的语料块
type CorpusBlock struct {
	ID        string `json:"id"`         // 块唯一ID (UUID)
	Origin    string `json:"origin"`     // 来源 (scheme://host)
	SeedURL   string `json:"seed_url"`   // 该源的种子URL
	Text      string `json:"text"`       // 该源全部页面的相关文本
	Pages     int    `json:"pages"`      // 贡献文本的页面数
	WordCount int    `json:"word_count"` // 文本词数
}

// NewCorpusBlock 创建一个空语料块
func NewCorpusBlock(origin, seedURL string) *CorpusBlock {
	return &CorpusBlock{
		ID:      generateID(),
		Origin:  origin,
		SeedURL: seedURL,
	}
}

// CrawlStats 采集统计
type CrawlStats struct {
	PagesFetched  int     `json:"pages_fetched"`  // 成功抓取页面数
	DirectPages   int     `json:"direct_pages"`   // 直接抓取成功数
	RenderedPages int     `json:"rendered_pages"` // 渲染抓取成功数
	ArchivedPages int     `json:"archived_pages"` // 快照抓取成功数
	FailedURLs    int     `json:"failed_urls"`    // 全部策略失败的URL数
	SkippedURLs   int     `json:"skipped_urls"`   // 因重复或越深被丢弃的URL数
	VisitedURLs   int     `json:"visited_urls"`   // 已访问URL数
	Duration      float64 `json:"duration"`       // 总耗时(秒)
}

// CrawlResult 一次完整采集的结果
// Corpus为各语料块按种子顺序拼接的全文,部分语料也是有效结果
type CrawlResult struct {
	SessionID string     `json:"session_id"` // 会话唯一ID (UUID)
	Topic     string     `json:"topic"`      // 采集主题
	State     CrawlState `json:"state"`      // 结束状态 (completed/exhausted)
	SeedURLs  []string   `json:"seed_urls"`  // 实际使用的种子URL

	Blocks    []CorpusBlock `json:"blocks"`     // 按种子顺序排列的语料块
	Corpus    string        `json:"-"`          // 拼接后的全文
	WordCount int           `json:"word_count"` // 全文词数

	Stats     CrawlStats `json:"stats"`      // 统计信息
	StartTime time.Time  `json:"start_time"` // 开始时间
	EndTime   time.Time  `json:"end_time"`   // 结束时间
}

// ToJSON 序列化为JSON
func (r *CrawlResult) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Summary 生成对外输出的采集摘要
func (r *CrawlResult) Summary() CrawlSummary {
	return CrawlSummary{
		Topic:         r.Topic,
		WordCount:     r.WordCount,
		ExtractedText: r.Corpus,
	}
}

// CrawlSummary 采集摘要,CLI末尾以JSON形式输出
type CrawlSummary struct {
	Topic         string `json:"topic"`          // 采集主题
	WordCount     int    `json:"word_count"`     // 全文词数
	ExtractedText string `json:"extracted_text"` // 拼接后的全文
}

// ToJSON 序列化为JSON
func (s *CrawlSummary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
