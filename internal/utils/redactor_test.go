package utils

import (
	"net/http"
	"testing"
)

func TestIsSensitiveHeader(t *testing.T) {
	hr := NewHeaderRedactor()

	tests := []struct {
		name      string
		header    string
		sensitive bool
	}{
		{"Authorization敏感", "Authorization", true},
		{"Cookie敏感", "Cookie", true},
		{"API Key敏感", "X-Api-Key", true},
		{"会话头部敏感", "X-Session-Id", true},
		{"大小写不敏感", "AUTHORIZATION", true},
		{"User-Agent不敏感", "User-Agent", false},
		{"Accept不敏感", "Accept", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hr.IsSensitiveHeader(tt.header); got != tt.sensitive {
				t.Errorf("IsSensitiveHeader(%q) = %v, 期望 %v", tt.header, got, tt.sensitive)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	hr := NewHeaderRedactor()

	headers := http.Header{
		"Authorization": []string{"Bearer abcdefghijklmnop"},
		"X-Api-Key":     []string{"sk-1234567890abcdef"},
		"Cookie":        []string{"short"},
		"User-Agent":    []string{"Mozilla/5.0"},
	}

	redacted := hr.Redact(headers)

	if redacted["Authorization"] != "Bearer ***" {
		t.Errorf("Authorization = %q, 期望Bearer令牌只留前缀", redacted["Authorization"])
	}
	if redacted["X-Api-Key"] != "sk-1***cdef" {
		t.Errorf("X-Api-Key = %q, 期望留前后4位", redacted["X-Api-Key"])
	}
	if redacted["Cookie"] != "***" {
		t.Errorf("Cookie = %q, 短值应完全隐藏", redacted["Cookie"])
	}
	if redacted["User-Agent"] != "Mozilla/5.0" {
		t.Errorf("User-Agent = %q, 非敏感头部应原样保留", redacted["User-Agent"])
	}
}
