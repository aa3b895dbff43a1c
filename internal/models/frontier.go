package models

// FrontierEntry 表示BFS边界中的一个待访问项
// 用途:
//   - 在FIFO边界中传递URL和深度信息
//   - 深度逐层递增,保证同源内的广度优先顺序
type FrontierEntry struct {
	// URL 完整的URL字符串(已规范化)
	URL string

	// Depth URL的深度层级
	//   - 0: 种子URL
	//   - 1: 从种子页面发现的链接
	//   - 2: 从深度1页面发现的链接
	Depth int

	// SourceURL 发现此URL的源页面(可选,用于调试)
	SourceURL string
}
