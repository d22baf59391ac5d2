package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"masterplan/internal/config"
	"masterplan/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "masterplan",
		Short:         "主计划生成工具：合并预测、订单与出货台账",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "配置文件路径 (默认: 可执行文件同目录 config.toml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "日志级别 debug/info/warn/error (覆盖配置文件)")

	cmd.AddCommand(newBuildCmd(&opts))
	cmd.AddCommand(newServeCmd(&opts))
	return cmd
}

// loadRuntime 加载配置并创建 logger
func loadRuntime(opts *rootOptions) (*config.AppConfig, config.LoadConfigInfo, *zap.Logger, error) {
	cfg, info, err := config.LoadConfigWithInfo(opts.configPath)
	if err != nil {
		return nil, info, nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	logger, err := logging.New(cfg.Log, config.ResolveDataDir(cfg))
	if err != nil {
		return nil, info, nil, err
	}
	return cfg, info, logger, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
