package models

// StrategyKind 抓取策略类型
type StrategyKind string

const (
	StrategyDirect   StrategyKind = "direct"   // 直接HTTP抓取
	StrategyRendered StrategyKind = "rendered" // 无头浏览器渲染
	StrategyArchived StrategyKind = "archived" // 历史快照回退
)

// FetchResult 一次成功抓取的结果
// HTML为最终取得的文档内容,Strategy标记产出它的策略
type FetchResult struct {
	URL      string       `json:"url"`      // 请求的URL
	Origin   string       `json:"origin"`   // URL所属源 (scheme://host)
	HTML     string       `json:"-"`        // 原始HTML
	Strategy StrategyKind `json:"strategy"` // 成功的策略
}

// Link 页面中发现的一个同源链接
type Link struct {
	// URL 解析为绝对地址后的链接
	URL string

	// Anchor 链接的锚文本(已去除首尾空白)
	Anchor string
}

// ExtractedPage 内容提取的结果
// Text保证非空:只要输入文档含有任何文本,提取器都会产出内容
type ExtractedPage struct {
	// Text 提取出的正文文本
	Text string

	// Links 同源链接,保持文档顺序,已去重
	Links []Link
}
