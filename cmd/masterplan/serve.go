package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"masterplan/internal/server"
	"masterplan/internal/util"
)

type serveOptions struct {
	port      int
	devMode   bool
	dataDir   string
	noBrowser bool
}

func newServeCmd(root *rootOptions) *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务（上传生成、运行记录、图表）",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}

	cmd.Flags().IntVar(&opts.port, "port", 0, "服务端口 (config.toml 优先；仅当未显式配置 port 时生效)")
	cmd.Flags().BoolVar(&opts.devMode, "dev", false, "开发模式")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "数据目录 (覆盖配置文件)")
	cmd.Flags().BoolVar(&opts.noBrowser, "no-browser", false, "不自动打开浏览器")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts serveOptions) error {
	fmt.Println("==========================================")
	fmt.Println("  MasterPlan - 主计划生成工具")
	fmt.Println("==========================================")

	cfg, info, logger, err := loadRuntime(root)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// 命令行参数覆盖配置
	if opts.port > 0 && !info.PortSpecified {
		cfg.Server.Port = opts.port
	}
	if opts.devMode {
		cfg.Server.DevMode = true
	}
	if opts.dataDir != "" {
		cfg.Data.DataDir = opts.dataDir
	}

	// 未显式指定端口时自动避开被占用的端口
	if !info.PortSpecified && opts.port == 0 {
		port, err := util.FindAvailablePort(cfg.Server.Port, 20)
		if err != nil {
			return err
		}
		cfg.Server.Port = port
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	url := fmt.Sprintf("http://localhost:%d", cfg.Server.Port)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		errCh <- srv.Run(addr)
	}()

	if cfg.Server.OpenBrowser && !opts.noBrowser && !cfg.Server.DevMode {
		fmt.Printf("正在打开浏览器: %s\n", url)
		if err := util.OpenBrowser(url); err != nil {
			fmt.Printf("无法自动打开浏览器，请手动访问: %s\n", url)
		}
	} else {
		fmt.Printf("请访问 %s\n", url)
	}
	fmt.Println("\n按 Ctrl+C 停止服务...")

	select {
	case err := <-errCh:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	fmt.Println("\n正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
