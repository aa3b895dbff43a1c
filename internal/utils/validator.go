package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
)

// maxHeaderValueLength 单个头部值的长度上限(8KB)
// 身份配置文件与-H参数都是用户输入,超长值多半是粘贴错误
const maxHeaderValueLength = 8192

// clientManagedHeaders 由HTTP客户端自动管理的头部
// 出现在身份配置或-H参数里一律拒绝,避免破坏请求编码
var clientManagedHeaders = []string{
	"Host",
	"Content-Length",
	"Transfer-Encoding",
	"Connection",
}

// HeaderValidator 按RFC 7230校验身份池合并前的HTTP头部
type HeaderValidator struct {
	// nameRegex 头部名称: 字母、数字和连字符
	nameRegex *regexp.Regexp

	// valueRegex 头部值: 可打印ASCII + 空格/制表符
	valueRegex *regexp.Regexp

	// forbidden 禁止配置的头部名称(小写)
	forbidden map[string]bool
}

// NewHeaderValidator 创建验证器
func NewHeaderValidator() *HeaderValidator {
	forbidden := make(map[string]bool, len(clientManagedHeaders))
	for _, h := range clientManagedHeaders {
		forbidden[strings.ToLower(h)] = true
	}

	return &HeaderValidator{
		nameRegex:  regexp.MustCompile(`^[A-Za-z0-9-]+$`),
		valueRegex: regexp.MustCompile(`^[\x20-\x7E\t]*$`),
		forbidden:  forbidden,
	}
}

// validateName 验证头部名称
func (hv *HeaderValidator) validateName(name string) error {
	if name == "" {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称不能为空",
		}
	}

	if !hv.nameRegex.MatchString(name) {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称包含非法字符 (仅允许字母、数字和连字符)",
			Suggestion: "使用字母、数字和连字符 (如 'User-Agent', 'X-Custom-Header')",
		}
	}

	return nil
}

// validateValue 验证头部值
func (hv *HeaderValidator) validateValue(name, value string) error {
	if len(value) > maxHeaderValueLength {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), maxHeaderValueLength),
			Suggestion: fmt.Sprintf("将值缩短至 %d 字节以内", maxHeaderValueLength),
		}
	}

	if !hv.valueRegex.MatchString(value) {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     "头部值包含非法字符 (仅允许可打印ASCII字符)",
			Suggestion: "移除控制字符和非ASCII字符",
		}
	}

	return nil
}

// ValidateHeader 验证单个头部的名称与值
// 验证失败返回带修改建议的 models.ValidationError
func (hv *HeaderValidator) ValidateHeader(name, value string) error {
	if hv.IsForbidden(name) {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "此头部由HTTP客户端自动管理,不允许自定义",
			Suggestion: fmt.Sprintf("移除 '%s' 头部配置", name),
		}
	}

	if err := hv.validateName(name); err != nil {
		return err
	}
	return hv.validateValue(name, value)
}

// IsForbidden 检查头部是否由客户端管理而禁止配置
func (hv *HeaderValidator) IsForbidden(name string) bool {
	return hv.forbidden[strings.ToLower(name)]
}

// Validate 验证http.Header中的所有头部,返回第一个发现的错误
func (hv *HeaderValidator) Validate(headers http.Header) error {
	for name, values := range headers {
		for _, value := range values {
			if err := hv.ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}
