package crawlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/RecoveryAshes/CorpusCrawl/internal/utils"
)

const (
	// sparklineEndpoint Wayback Machine快照索引接口
	sparklineEndpoint = "http://web.archive.org/__wb/sparkline"

	// snapshotURLFormat 快照页面URL格式: /web/<时间戳>/<原始URL>
	snapshotURLFormat = "http://web.archive.org/web/%s/%s"

	// indexTimeout 索引查询超时
	indexTimeout = 10 * time.Second

	// snapshotTimeout 快照下载超时
	snapshotTimeout = 15 * time.Second
)

// sparklineResponse 快照索引接口的响应
// last_ts为最近一次快照的时间戳 (如 "20240115083000")
type sparklineResponse struct {
	LastTS  string `json:"last_ts"`
	FirstTS string `json:"first_ts"`
}

// ArchiveFetcher 历史快照抓取策略(Wayback Machine)
// 回退链的最后一级: 目标站点完全不可达时,取归档中最近的快照
//
// 注意: 快照下载是独立于索引查询的第二次网络请求,
// 需要再次预留页面预算配额,预留失败将中止整个回退链
type ArchiveFetcher struct {
	identity models.IdentityProvider
	budget   BudgetReserver

	indexClient    *http.Client
	snapshotClient *http.Client
}

// NewArchiveFetcher 创建历史快照抓取策略
func NewArchiveFetcher(identity models.IdentityProvider, budget BudgetReserver) *ArchiveFetcher {
	return &ArchiveFetcher{
		identity:       identity,
		budget:         budget,
		indexClient:    &http.Client{Timeout: indexTimeout},
		snapshotClient: &http.Client{Timeout: snapshotTimeout},
	}
}

// Kind 实现 Strategy 接口
func (af *ArchiveFetcher) Kind() models.StrategyKind {
	return models.StrategyArchived
}

// Fetch 查询最近快照并下载快照页面
// 执行流程:
//  1. 查询快照索引,取last_ts时间戳
//  2. 为快照下载预留第二个预算配额
//  3. 下载快照页面
//
// 错误情况:
//   - ErrNoSnapshot: 归档中没有该URL的快照
//   - ErrBudgetExhausted: 快照下载的配额预留被拒绝
//   - 网络或HTTP错误
func (af *ArchiveFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	timestamp, err := af.latestSnapshotTS(ctx, rawURL)
	if err != nil {
		return "", err
	}

	origin, err := models.OriginOf(rawURL)
	if err != nil {
		return "", err
	}

	// 快照下载是又一次抓取尝试,消耗又一个配额
	if !af.budget.TryReserve(origin) {
		return "", ErrBudgetExhausted
	}

	af.identity.Pace(ctx)

	snapshotURL := fmt.Sprintf(snapshotURLFormat, timestamp, rawURL)
	utils.Infof("📼 使用历史快照: %s", snapshotURL)

	return af.fetchSnapshot(ctx, snapshotURL)
}

// latestSnapshotTS 查询URL最近一次快照的时间戳
func (af *ArchiveFetcher) latestSnapshotTS(ctx context.Context, rawURL string) (string, error) {
	query := url.Values{}
	query.Set("output", "json")
	query.Set("url", rawURL)
	query.Set("collection", "web")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sparklineEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("构造快照索引请求失败: %w", err)
	}
	af.applyHeaders(req)

	resp, err := af.indexClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("快照索引查询失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("快照索引查询失败: HTTP %d", resp.StatusCode)
	}

	var sparkline sparklineResponse
	if err := json.NewDecoder(resp.Body).Decode(&sparkline); err != nil {
		return "", fmt.Errorf("解析快照索引响应失败: %w", err)
	}

	if sparkline.LastTS == "" {
		return "", fmt.Errorf("%w: %s", ErrNoSnapshot, rawURL)
	}
	return sparkline.LastTS, nil
}

// fetchSnapshot 下载快照页面
func (af *ArchiveFetcher) fetchSnapshot(ctx context.Context, snapshotURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, snapshotURL, nil)
	if err != nil {
		return "", fmt.Errorf("构造快照请求失败: %w", err)
	}
	af.applyHeaders(req)

	resp, err := af.snapshotClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("快照下载失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("快照下载失败: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取快照内容失败: %w", err)
	}

	if encoding := resp.Header.Get("Content-Encoding"); encoding != "" {
		decompressed, err := decompressResponse(encoding, body)
		if err != nil {
			utils.Warnf("解压快照响应失败 [%s]: %v", snapshotURL, err)
		} else {
			body = decompressed
		}
	}

	return string(body), nil
}

// applyHeaders 将身份池头部应用到请求
func (af *ArchiveFetcher) applyHeaders(req *http.Request) {
	headers, err := af.identity.NextHeaders()
	if err != nil {
		utils.Warnf("获取请求头部失败: %v", err)
		return
	}
	for name, values := range headers {
		if len(values) > 0 {
			req.Header.Set(name, values[0])
		}
	}
}
