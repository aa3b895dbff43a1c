package utils

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
	}
}

// GenerateReport 生成采集报告
// 目录结构:
//
//	<outputDir>/<sessionID>/crawl_report.json  采集报告
//	<outputDir>/<sessionID>/corpus.txt         拼接后的全文
//	<outputDir>/<sessionID>/blocks/<host>.txt  每个源的语料块
func (r *Reporter) GenerateReport(result *models.CrawlResult) error {
	runDir := filepath.Join(r.outputDir, result.SessionID)
	blocksDir := filepath.Join(runDir, "blocks")
	if err := os.MkdirAll(blocksDir, 0755); err != nil {
		return fmt.Errorf("创建报告目录失败: %w", err)
	}

	// 主报告
	if err := r.saveJSONReport(runDir, "crawl_report.json", result); err != nil {
		return err
	}

	// 全文语料
	corpusPath := filepath.Join(runDir, "corpus.txt")
	if err := os.WriteFile(corpusPath, []byte(result.Corpus), 0644); err != nil {
		return fmt.Errorf("写入语料文件失败: %w", err)
	}

	// 每个源一个语料块文件
	bar := NewProgressBar(len(result.Blocks), "写入语料块")
	for _, block := range result.Blocks {
		bar.Add(1)
		if block.Text == "" {
			continue
		}
		name := blockFileName(block.Origin, block.ID)
		blockPath := filepath.Join(blocksDir, name)
		if err := os.WriteFile(blockPath, []byte(block.Text), 0644); err != nil {
			return fmt.Errorf("写入语料块文件失败: %w", err)
		}
	}
	fmt.Println()

	Infof("✅ 报告已生成: %s", runDir)
	return nil
}

// blockFileName 根据源生成语料块文件名
func blockFileName(origin, id string) string {
	host := origin
	if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	host = strings.ReplaceAll(host, ":", "_")
	if len(id) >= 8 {
		return host + "_" + id[:8] + ".txt"
	}
	return host + ".txt"
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	filepath := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(filepath, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", filepath)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
