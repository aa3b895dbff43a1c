package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RecoveryAshes/CorpusCrawl/internal/core"
	"github.com/RecoveryAshes/CorpusCrawl/internal/crawlers"
	"github.com/RecoveryAshes/CorpusCrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// corpusSnippetLimit CLI末尾展示的语料摘要长度
const corpusSnippetLimit = 2000

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string

	// HTTP头部参数
	headers        []string // 自定义HTTP请求头
	validateConfig bool     // 验证身份配置文件

	// 采集参数
	topic          string
	urlFile        string
	depth          int
	maxPages       int
	originCap      int
	waitTime       int
	headless       bool
	archiveEnabled bool
	outputDir      string
)

var rootCmd = &cobra.Command{
	Use:   "corpuscrawl [seed-urls...]",
	Short: "主题语料采集工具",
	Long: `CorpusCrawl - 主题导向的网页语料采集工具 (Go版本)

从一组种子URL出发做广度优先采集,按主题过滤正文与链接,
拼接出一份主题语料。支持:
  • 三级回退抓取: 直接抓取 → 无头浏览器渲染 → 历史快照
  • 全局与单源双重页面预算
  • 会话级URL去重
  • 身份轮换与请求节奏打散
  • 批量种子文件

使用示例:
  # 从命令行种子采集
  corpuscrawl -t "climate change" https://example.com https://other.com

  # 从文件加载种子
  corpuscrawl -t golang -f seeds.txt

  # 自定义HTTP头部
  corpuscrawl -t golang https://example.com -H "Accept-Language: zh-CN"

  # 验证身份配置文件
  corpuscrawl --validate-config

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 初始化日志系统
		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}

		// 命令行参数覆盖配置文件
		if logLevel != "" {
			logConfig.Level = logLevel
		}

		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 信号处理(Ctrl+C优雅退出): 取消上下文,让各源采集尽快收尾
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			sig := <-sigChan
			utils.Warnf("收到中断信号: %v, 正在优雅关闭...", sig)
			cancel()
		}()

		appConfig, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		appConfig.MergeCLIFlags(depth, maxPages, originCap, waitTime, headless, archiveEnabled)
		crawlConfig := appConfig.GetCrawlConfig()

		// 创建请求身份池
		identityPool, err := core.NewIdentityPool(
			appConfig.Antiblock.IdentityFile,
			headers,
			crawlConfig.MinDelay,
			crawlConfig.MaxDelay,
		)
		if err != nil {
			return fmt.Errorf("创建请求身份池失败: %w", err)
		}

		// 如果用户请求验证配置
		if validateConfig {
			utils.Info("🔍 验证身份配置...")
			if err := identityPool.Init(); err != nil {
				return fmt.Errorf("身份配置验证失败: %w", err)
			}

			// 显示合并后的头部(脱敏)
			safeHeaders := identityPool.SafeHeaders()
			utils.Info("✅ 配置验证通过!")
			utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
			for name, value := range safeHeaders {
				utils.Infof("  %s: %s", name, value)
			}
			return nil
		}

		// 收集种子: 位置参数 + 种子文件
		seeds := append([]string{}, args...)
		if urlFile != "" {
			fileSeeds, err := utils.ReadURLsFromFile(urlFile)
			if err != nil {
				return fmt.Errorf("读取种子文件失败: %w", err)
			}
			seeds = append(seeds, fileSeeds...)
		}

		// 没有种子时显示帮助信息
		if len(seeds) == 0 {
			return cmd.Help()
		}

		// 验证参数
		if err := ValidateFlags(topic, depth, maxPages, originCap, waitTime); err != nil {
			return err
		}

		// 种子goroutine启动前完成身份配置加载,配置问题在这里就暴露
		if err := identityPool.Init(); err != nil {
			return fmt.Errorf("身份配置初始化失败: %w", err)
		}

		// 组装采集管线: 会话 → 回退抓取链 → 协调器
		session := core.NewCrawlSession(crawlConfig.MaxPages, crawlConfig.PerOriginCap)

		renderFetcher := crawlers.NewRenderFetcher(crawlConfig, identityPool)
		defer renderFetcher.Close()

		strategies := []crawlers.Strategy{
			crawlers.NewDirectFetcher(crawlConfig, identityPool),
			renderFetcher,
		}
		if crawlConfig.ArchiveEnabled {
			strategies = append(strategies, crawlers.NewArchiveFetcher(identityPool, session))
		}

		chain := crawlers.NewFetchChain(session, identityPool, strategies...)
		extractor := crawlers.NewContentExtractor()

		crawler, err := core.NewCrawler(topic, seeds, crawlConfig, session, chain, extractor)
		if err != nil {
			return fmt.Errorf("创建采集器失败: %w", err)
		}

		// 执行采集
		result, err := crawler.Crawl(ctx)
		if err != nil {
			return fmt.Errorf("采集失败: %w", err)
		}

		// 生成报告
		reporter := utils.NewReporter(outputDir)
		if err := reporter.GenerateReport(result); err != nil {
			utils.Warnf("生成报告失败: %v", err)
		}

		// 显示统计结果
		fmt.Println("\n==================================================")
		fmt.Println("📊 采集统计")
		fmt.Println("==================================================")
		fmt.Printf("✅ 结束状态: %s\n", result.State)
		fmt.Printf("✅ 访问URL数: %d\n", result.Stats.VisitedURLs)
		fmt.Printf("✅ 成功页面数: %d\n", result.Stats.PagesFetched)
		fmt.Printf("   直接抓取: %d, 渲染抓取: %d, 历史快照: %d\n",
			result.Stats.DirectPages, result.Stats.RenderedPages, result.Stats.ArchivedPages)
		fmt.Printf("❌ 失败URL数: %d\n", result.Stats.FailedURLs)
		fmt.Printf("⏭️  跳过URL数: %d\n", result.Stats.SkippedURLs)
		fmt.Printf("📦 语料词数: %d\n", result.WordCount)
		fmt.Printf("⏱️  总耗时: %.2f秒\n", result.Stats.Duration)
		fmt.Println("==================================================")

		// 语料摘要片段
		if result.Corpus != "" {
			snippet := result.Corpus
			if len(snippet) > corpusSnippetLimit {
				snippet = snippet[:corpusSnippetLimit] + "..."
			}
			fmt.Println("\n📄 语料片段:")
			fmt.Println(snippet)
		}

		// 采集摘要JSON
		summary := result.Summary()
		if data, err := summary.ToJSON(); err == nil {
			fmt.Println("\n📋 采集摘要:")
			fmt.Println(string(data))
		}

		utils.Info("✨ 采集任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("CorpusCrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
		fmt.Println("Go实现版本 - 主题语料采集工具")
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")

	// HTTP头部参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().BoolVar(&validateConfig, "validate-config", false, "验证身份配置文件正确性")

	// 采集参数
	rootCmd.Flags().StringVarP(&topic, "topic", "t", "", "采集主题 (必需)")
	rootCmd.Flags().StringVarP(&urlFile, "url-file", "f", "", "包含种子URL列表的文件路径")
	rootCmd.Flags().IntVarP(&depth, "depth", "d", 2, "BFS最大深度 (0-10)")
	rootCmd.Flags().IntVar(&maxPages, "max-pages", 20, "全局页面预算")
	rootCmd.Flags().IntVar(&originCap, "origin-cap", 5, "单源页面预算")
	rootCmd.Flags().IntVarP(&waitTime, "wait", "w", 2, "渲染后额外等待时间(秒)")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.Flags().BoolVar(&archiveEnabled, "archive", true, "启用历史快照回退")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "output", "输出目录")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
