package utils

import (
	"net/http"
	"strings"
)

// sensitiveKeywords 敏感头部名称关键字
// 身份配置文件与命令行都可能携带凭证类头部,日志输出前必须脱敏
var sensitiveKeywords = []string{
	"authorization",
	"cookie",
	"token",
	"key",
	"secret",
	"password",
	"credential",
	"session",
}

// HeaderRedactor 头部脱敏器
// 在把请求头部写进日志前抹掉凭证类的值
type HeaderRedactor struct {
	keywords []string
}

// NewHeaderRedactor 创建头部脱敏器
func NewHeaderRedactor() *HeaderRedactor {
	return &HeaderRedactor{
		keywords: sensitiveKeywords,
	}
}

// IsSensitiveHeader 根据头部名称判断是否为敏感头部
func (hr *HeaderRedactor) IsSensitiveHeader(name string) bool {
	nameLower := strings.ToLower(name)
	for _, keyword := range hr.keywords {
		if strings.Contains(nameLower, keyword) {
			return true
		}
	}
	return false
}

// redactValue 脱敏单个敏感头部值
// Bearer令牌只留前缀,较长的密钥留前后4位,短值完全隐藏
func redactValue(value string) string {
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 8 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// Redact 返回可安全写入日志的头部map
// 敏感头部的值已被脱敏,非敏感头部原样保留(只取第一个值)
func (hr *HeaderRedactor) Redact(headers http.Header) map[string]string {
	result := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		if hr.IsSensitiveHeader(name) {
			result[name] = redactValue(values[0])
		} else {
			result[name] = values[0]
		}
	}
	return result
}
