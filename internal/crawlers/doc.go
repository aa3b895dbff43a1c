// Package crawlers 提供多策略回退抓取、内容提取和BFS边界管理
//
// # 概述
//
// crawlers包实现了三级回退抓取链: 直接HTTP抓取(Colly) → 无头浏览器渲染(go-rod)
// → 历史快照回退(Wayback Machine)。配套组件包括BFS边界队列、正文内容提取器、
// 主题相关性过滤器、标签页池和资源监控器。
//
// # 核心组件
//
// ## FetchChain (回退抓取链)
//
// 按固定顺序尝试各抓取策略,返回第一个成功结果。
// 每次策略尝试前都要向BudgetReserver预留一个页面配额,
// 预留失败立即中止整个链并返回ErrBudgetExhausted。
//
//	chain := NewFetchChain(session, identityPool,
//	    NewDirectFetcher(config, identityPool),
//	    NewRenderFetcher(config, identityPool),
//	    NewArchiveFetcher(identityPool, session),
//	)
//	result, err := chain.Fetch(ctx, "https://example.com")
//
// ## DirectFetcher (直接抓取)
//
// 基于Colly的直接HTTP抓取,拦截类状态码(403/429/5xx/999)触发指数退避重试,
// 支持gzip/deflate/brotli响应解压。
//
// ## RenderFetcher (渲染抓取)
//
// 基于go-rod的无头浏览器渲染,执行JavaScript并等待网络空闲。
// 浏览器实例惰性启动并在所有抓取间共享,标签页通过PagePool复用,
// 启动参数与注入脚本共同抹除自动化痕迹。
//
// ## ArchiveFetcher (快照回退)
//
// 查询Wayback Machine的快照索引取最近快照时间戳,再下载快照页面。
// 快照下载是独立的第二次抓取尝试,需要再次预留预算配额。
//
// ## Frontier (BFS边界)
//
// 单源FIFO边界队列,入队去重,过滤越深、跨源和非法URL。
// 同一源内的URL严格按深度递增顺序出队。
//
//	frontier := NewFrontier("https://example.com", 2)
//	_ = frontier.Push("https://example.com", 0, "")
//	entry, ok := frontier.Pop()
//
// ## ContentExtractor (内容提取器)
//
// 剔除脚本、样式和导航噪声后,按选择器优先级提取正文文本
// (article → main → [class*=content] → [class*=post] → body),
// 落空时回退到最大文本块乃至全文。同时收集同源链接。
//
// ## TopicFilter (主题过滤器)
//
// 小写子串匹配的确定性相关过滤: 按段落过滤文本,按锚文本/地址过滤链接。
// 文本过滤保证非空输入产出非空输出(零匹配时回退全文)。
//
// # 并发安全
//
// 所有核心组件都是并发安全的:
//   - Frontier: sync.Mutex
//   - PagePool: channel + sync.Mutex
//   - ResourceMonitor: sync.RWMutex
//   - DirectFetcher: 每次抓取创建独立collector
//   - RenderFetcher: sync.Mutex保护浏览器生命周期
//
// # 错误处理
//
//   - ErrBudgetExhausted: 预算配额预留被拒绝,整个回退链中止
//   - ErrAllStrategiesFailed: 所有策略都尝试过且都失败,该URL被放弃
//   - ErrNoSnapshot: 归档中没有该URL的快照,视为快照策略失败
//   - 浏览器崩溃: AcquirePage捕获连接失败,RenderFetcher重启浏览器一次
package crawlers
