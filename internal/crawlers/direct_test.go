package crawlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/andybalholm/brotli"
)

func directTestConfig() models.CrawlConfig {
	config := models.DefaultCrawlConfig()
	config.MaxRetries = 2
	config.DirectTimeout = 5
	return config
}

func TestDirectFetcherSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q, 期望身份头部被应用", r.Header.Get("User-Agent"))
		}
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer server.Close()

	df := NewDirectFetcher(directTestConfig(), &stubIdentity{})

	html, err := df.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch失败: %v", err)
	}
	if !strings.Contains(html, "hello") {
		t.Errorf("html = %q, 期望包含页面内容", html)
	}
}

func TestDirectFetcherRetriesOnBlock(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 第一次返回拦截码,第二次放行
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("<html>unblocked</html>"))
	}))
	defer server.Close()

	df := NewDirectFetcher(directTestConfig(), &stubIdentity{})

	html, err := df.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch失败: %v", err)
	}
	if !strings.Contains(html, "unblocked") {
		t.Errorf("html = %q, 期望重试后的内容", html)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("请求次数 = %d, 期望 2", got)
	}
}

func TestDirectFetcherNoRetryOn404(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	df := NewDirectFetcher(directTestConfig(), &stubIdentity{})

	if _, err := df.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("404应返回错误")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("请求次数 = %d, 404不应重试", got)
	}
}

func TestDirectFetcherRetriesExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	df := NewDirectFetcher(directTestConfig(), &stubIdentity{})

	if _, err := df.Fetch(context.Background(), server.URL); err == nil {
		t.Fatal("重试耗尽后应返回错误")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("请求次数 = %d, 期望与重试上限一致", got)
	}
}

func TestDecompressResponse(t *testing.T) {
	original := []byte("<html><body>compressed payload</body></html>")

	gzipBody := func() []byte {
		var buf bytes.Buffer
		gw := gzip.NewWriter(&buf)
		gw.Write(original)
		gw.Close()
		return buf.Bytes()
	}()

	brotliBody := func() []byte {
		var buf bytes.Buffer
		bw := brotli.NewWriter(&buf)
		bw.Write(original)
		bw.Close()
		return buf.Bytes()
	}()

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"gzip解压", "gzip", gzipBody},
		{"brotli解压", "br", brotliBody},
		{"空编码原样返回", "", original},
		{"未知编码原样返回", "zstd", original},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressResponse(tt.encoding, tt.body)
			if err != nil {
				t.Fatalf("decompressResponse失败: %v", err)
			}
			if !bytes.Equal(got, original) {
				t.Errorf("解压结果 = %q, 期望 %q", got, original)
			}
		})
	}
}

func TestDecompressResponseBadGzip(t *testing.T) {
	if _, err := decompressResponse("gzip", []byte("not gzip data")); err == nil {
		t.Error("非法gzip数据应返回错误")
	}
}
