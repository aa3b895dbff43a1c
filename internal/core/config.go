package core

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/CorpusCrawl/internal/models"
	"github.com/spf13/viper"
)

// Config 应用程序配置
type Config struct {
	Crawl     models.CrawlConfig `mapstructure:"crawl"`
	Antiblock AntiblockConfig    `mapstructure:"antiblock"`
	Logging   LoggingConfig      `mapstructure:"logging"`
	Output    OutputConfig       `mapstructure:"output"`
}

// AntiblockConfig 反封锁配置
type AntiblockConfig struct {
	// MinDelay/MaxDelay 请求间隔区间(秒)
	MinDelay float64 `mapstructure:"min_delay"`
	MaxDelay float64 `mapstructure:"max_delay"`

	// IdentityFile 身份配置文件路径
	IdentityFile string `mapstructure:"identity_file"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置配置文件
	if configPath != "" {
		// 使用指定的配置文件
		v.SetConfigFile(configPath)
	} else {
		// 搜索默认位置
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// 添加配置搜索路径
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")

		// 用户主目录
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".corpuscrawl"))
		}
	}

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		// 如果配置文件不存在,使用默认值
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件不存在,使用默认值
	}

	// 解析配置
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 采集配置默认值
	v.SetDefault("crawl.max_depth", 2)
	v.SetDefault("crawl.max_pages", 20)
	v.SetDefault("crawl.per_origin_cap", 5)
	v.SetDefault("crawl.max_seeds", 12)
	v.SetDefault("crawl.wait_time", 2)
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.archive_enabled", true)
	v.SetDefault("crawl.max_retries", 3)
	v.SetDefault("crawl.direct_timeout", 15)
	v.SetDefault("crawl.render_timeout", 30)
	v.SetDefault("crawl.max_tabs", 4)

	// 反封锁配置默认值
	v.SetDefault("antiblock.min_delay", 1.0)
	v.SetDefault("antiblock.max_delay", 3.0)
	v.SetDefault("antiblock.identity_file", "configs/identity.yaml")

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
}

// GetCrawlConfig 从配置中提取采集配置
// 反封锁区间一并并入,便于下游只携带一个配置结构
func (c *Config) GetCrawlConfig() models.CrawlConfig {
	crawl := c.Crawl
	crawl.MinDelay = c.Antiblock.MinDelay
	crawl.MaxDelay = c.Antiblock.MaxDelay
	return crawl
}

// MergeCLIFlags 合并命令行参数到配置
func (c *Config) MergeCLIFlags(
	maxDepth int,
	maxPages int,
	perOriginCap int,
	waitTime int,
	headless bool,
	archiveEnabled bool,
) {
	// 命令行参数优先于配置文件
	if maxDepth >= 0 {
		c.Crawl.MaxDepth = maxDepth
	}
	if maxPages > 0 {
		c.Crawl.MaxPages = maxPages
	}
	if perOriginCap > 0 {
		c.Crawl.PerOriginCap = perOriginCap
	}
	if waitTime >= 0 {
		c.Crawl.WaitTime = waitTime
	}
	c.Crawl.Headless = headless
	c.Crawl.ArchiveEnabled = archiveEnabled
}
