package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/RecoveryAshes/CorpusCrawl/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// retryStatusCodes 触发重试的HTTP状态码
// 403/429/999 为常见的反爬拦截响应,5xx为服务端临时故障
var retryStatusCodes = map[int]bool{
	http.StatusForbidden:           true, // 403
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
	999:                            true, // LinkedIn等站点的自定义拦截码
}

// DirectFetcher 直接HTTP抓取策略(使用Colly)
// 回退链的第一级: 最快,但最容易被反爬机制拦截
type DirectFetcher struct {
	config   models.CrawlConfig
	identity models.IdentityProvider

	// httpClient 自定义HTTP客户端,禁用TLS证书验证
	// 允许访问自签名、过期或主机名不匹配的HTTPS站点
	httpClient *http.Client
}

// NewDirectFetcher 创建直接抓取策略
func NewDirectFetcher(config models.CrawlConfig, identity models.IdentityProvider) *DirectFetcher {
	timeout := time.Duration(config.DirectTimeout) * time.Second

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
		Timeout: timeout,
	}
	utils.Debugf("直接抓取器: HTTP超时设置为 %d 秒", config.DirectTimeout)

	return &DirectFetcher{
		config:     config,
		identity:   identity,
		httpClient: httpClient,
	}
}

// Kind 实现 Strategy 接口
func (df *DirectFetcher) Kind() models.StrategyKind {
	return models.StrategyDirect
}

// Fetch 抓取单个URL,拦截类状态码触发指数退避重试
// 重试序列: 1秒, 2秒, 4秒...
//
// 错误情况:
//   - 重试次数耗尽仍被拦截
//   - 非重试类HTTP错误 (如404)
//   - 网络或超时错误
func (df *DirectFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= df.config.MaxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(1<<uint(attempt-2)) * time.Second
			utils.Debugf("直接抓取重试 %d/%d [%s],退避 %v", attempt, df.config.MaxRetries, rawURL, backoff)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		html, status, err := df.fetchOnce(ctx, rawURL)
		if err != nil {
			lastErr = err
			continue
		}

		if retryStatusCodes[status] {
			lastErr = fmt.Errorf("HTTP %d", status)
			continue
		}

		if status >= 400 {
			// 非拦截类错误不重试
			return "", fmt.Errorf("直接抓取失败 [%s]: HTTP %d", rawURL, status)
		}

		return html, nil
	}

	return "", fmt.Errorf("直接抓取重试耗尽 [%s]: %w", rawURL, lastErr)
}

// fetchOnce 执行单次抓取
// 每次创建新的collector,避免并发goroutine共享回调状态
func (df *DirectFetcher) fetchOnce(ctx context.Context, rawURL string) (string, int, error) {
	headers, err := df.identity.NextHeaders()
	if err != nil {
		return "", 0, fmt.Errorf("获取请求头部失败: %w", err)
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	)
	c.SetClient(df.httpClient)
	c.SetRequestTimeout(time.Duration(df.config.DirectTimeout) * time.Second)

	var (
		html     string
		status   int
		fetchErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		for name, values := range headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode

		// 手动设置了Accept-Encoding时,Go的HTTP客户端不再自动解压
		body := r.Body
		if encoding := r.Headers.Get("Content-Encoding"); encoding != "" {
			decompressed, err := decompressResponse(encoding, r.Body)
			if err != nil {
				utils.Warnf("解压响应失败 [%s] (编码=%s): %v", rawURL, encoding, err)
			} else {
				body = decompressed
			}
		}
		html = string(body)
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			status = r.StatusCode
		}
		fetchErr = err
	})

	if err := c.Visit(rawURL); err != nil {
		return "", status, err
	}

	if fetchErr != nil {
		return "", status, fetchErr
	}
	return html, status, nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli) 三种压缩格式
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		// 未知编码,返回警告但仍然返回原始内容
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
