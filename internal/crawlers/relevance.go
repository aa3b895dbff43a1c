package crawlers

import (
	"strings"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
)

// TopicFilter 主题相关性过滤器
// 使用小写子串匹配判定文本与链接是否与主题相关
// 确定性匹配,同样的输入永远得到同样的结果
type TopicFilter struct {
	topic string
}

// NewTopicFilter 创建主题过滤器
func NewTopicFilter(topic string) *TopicFilter {
	return &TopicFilter{
		topic: strings.ToLower(strings.TrimSpace(topic)),
	}
}

// Topic 返回过滤器的主题(小写形式)
func (tf *TopicFilter) Topic() string {
	return tf.topic
}

// Matches 判断文本是否与主题相关
func (tf *TopicFilter) Matches(text string) bool {
	if tf.topic == "" {
		return true
	}
	return strings.Contains(strings.ToLower(text), tf.topic)
}

// FilterText 从提取文本中保留与主题相关的段落
// 按换行拆分段落,保留包含主题词的段落并以换行重新拼接
// 兜底规则: 如果没有任何段落匹配,返回全文
// 保证只要输入非空,输出就非空
func (tf *TopicFilter) FilterText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	paragraphs := strings.Split(text, "\n")
	matched := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		if tf.Matches(trimmed) {
			matched = append(matched, trimmed)
		}
	}

	if len(matched) == 0 {
		// 无段落匹配时回退到全文,避免丢弃可能相关的页面
		return strings.TrimSpace(text)
	}

	return strings.Join(matched, "\n")
}

// FilterLinks 保留锚文本或链接地址中包含主题词的链接
// 保持输入顺序
func (tf *TopicFilter) FilterLinks(links []models.Link) []models.Link {
	if tf.topic == "" {
		return links
	}

	matched := make([]models.Link, 0, len(links))
	for _, link := range links {
		if tf.Matches(link.Anchor) || tf.Matches(link.URL) {
			matched = append(matched, link)
		}
	}
	return matched
}
