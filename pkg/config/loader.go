package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fontguard/pkg/fetch"

	"github.com/spf13/viper"
)

// Load 初始化 Viper 配置
// cfgFile: 可选，用户显式指定的配置文件路径
func Load(cfgFile string) error {
	// 1. 设置默认值 (Defaults)
	setDefaults()

	// 2. 配置搜索路径
	if cfgFile != "" {
		// 如果用户指定了文件，直接使用
		viper.SetConfigFile(cfgFile)
	} else {
		// 搜索顺序：
		// 1. 当前目录
		viper.AddConfigPath(".")
		// 2. 当前目录下的 .fontguard
		viper.AddConfigPath(".fontguard")
		// 3. 用户主目录下的 .fontguard
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".fontguard"))
		}

		viper.SetConfigType("yaml")
		viper.SetConfigName("config") // 找 config.yaml
	}

	// 3. 读取环境变量 (FG_STORE_PATH、FG_S3_BUCKET 等)
	viper.SetEnvPrefix("FG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 4. 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		// 只是没找到配置文件不算错，可能全靠默认值和环境变量
		// 但如果是配置文件格式错，那就是错
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error config file: %w", err)
		}
	}
	return nil
}

func setDefaults() {
	// 存储默认值
	viper.SetDefault("store.type", "disk")
	viper.SetDefault("store.path", filepath.Join("public", "fonts"))
	viper.SetDefault("store.backup_path", "") // 空 = "<store.path>-backup"

	viper.SetDefault("s3.region", "us-east-1")
	viper.SetDefault("s3.prefix", "fonts/")
	viper.SetDefault("s3.backup_prefix", "fonts-backup/")

	// 下载
	viper.SetDefault("fetch.workers", 4)
	viper.SetDefault("fetch.timeout", 10*time.Second)
	viper.SetDefault("fetch.retries", 0)
	viper.SetDefault("fetch.retry_interval", time.Second)
	viper.SetDefault("fetch.user_agent", fetch.DefaultUserAgent)
	viper.SetDefault("fetch.css_endpoint", fetch.DefaultCSSEndpoint)

	// CSS 解析缓存 (空 = 不启用)
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.ttl", 24*time.Hour)

	// 运行历史
	viper.SetDefault("meta.driver", "sqlite")
	viper.SetDefault("meta.dsn", filepath.Join(".fontguard", "history.db"))

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}
