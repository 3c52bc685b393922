package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fontguard/pkg/app"
	"fontguard/pkg/config"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	// 全局应用实例，供子命令使用
	FG *app.App
)

var rootCmd = &cobra.Command{
	Use:   "fg",
	Short: "fontguard: validated web-font refresh with backup and rollback",
	// 失败时只打印错误，不打印用法
	SilenceUsage:  true,
	SilenceErrors: true,
	// 【关键】PersistentPreRunE 会在所有子命令执行前运行
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.SetupLogger(os.Stderr); err != nil {
			return err
		}

		// 统一初始化 App
		var err error
		FG, err = app.NewApp(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to initialize fontguard: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if FG == nil {
			return nil
		}
		return FG.Close()
	},
}

// Execute 是入口
// Ctrl+C 会取消 context：进行中的下载失败，已经完成的原子提交不受影响
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// 在初始化时，加载配置
	cobra.OnInitialize(initConfig)

	// 1. 定义全局参数 --config
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.fontguard/config.yaml or $HOME/.fontguard/config.yaml)")

	// 2. 常用配置项也可以用 flag 覆盖，并绑定到 Viper
	rootCmd.PersistentFlags().String("store-path", "", "directory holding the committed fonts")
	rootCmd.PersistentFlags().String("store-type", "", "store backend: disk or s3")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	mustBind("store.path", rootCmd.PersistentFlags().Lookup("store-path"))
	mustBind("store.type", rootCmd.PersistentFlags().Lookup("store-type"))
	mustBind("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig 读取配置文件和环境变量
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintln(os.Stderr, "Config error:", err)
		os.Exit(1)
	}
}
