package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"masterplan/internal/config"
	"masterplan/internal/exporter"
	"masterplan/internal/importer"
	"masterplan/internal/model"
	"masterplan/internal/parser"
	"masterplan/internal/planner"
	"masterplan/internal/store"
)

type buildOptions struct {
	forecasts    []string
	order        string
	shipment     string
	mapping      string
	inputDir     string
	out          string
	trimHorizon  bool
	dropZeroRows bool
	keepMapped   bool
	record       bool
}

func newBuildCmd(root *rootOptions) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "读取输入文件并生成主计划工作簿",
		Example: `  masterplan build --order 订单.xlsx --shipment 出货.xlsx --mapping 料号对照.xlsx \
    --forecast 预测20250715.xlsx --forecast 预测20250805.xlsx --out 主计划.xlsx
  masterplan build --input-dir ./inputs --out 主计划.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, logger, err := loadRuntime(root)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			runOpts, err := cfg.ImporterOptions()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("trim-horizon") {
				runOpts.Policy.TrimOutOfHorizon = opts.trimHorizon
			}
			if flags.Changed("drop-zero-rows") {
				runOpts.Policy.DropZeroRows = opts.dropZeroRows
			}
			if flags.Changed("keep-mapping-only") {
				runOpts.Policy.MappingOnlyRows = lo.Ternary(opts.keepMapped, planner.MappingOnlyKeep, planner.MappingOnlyDrop)
			}
			return runBuild(cmd.Context(), cfg, runOpts, opts, logger)
		},
	}

	cmd.Flags().StringArrayVar(&opts.forecasts, "forecast", nil, "预测文件，可重复指定")
	cmd.Flags().StringVar(&opts.order, "order", "", "订单台账 (.xlsx/.csv)")
	cmd.Flags().StringVar(&opts.shipment, "shipment", "", "出货台账 (.xlsx/.csv)")
	cmd.Flags().StringVar(&opts.mapping, "mapping", "", "料号映射表（必需）")
	cmd.Flags().StringVar(&opts.inputDir, "input-dir", "", "输入目录，按内容自动识别文件类型")
	cmd.Flags().StringVar(&opts.out, "out", "主计划.xlsx", "输出工作簿路径")
	cmd.Flags().BoolVar(&opts.trimHorizon, "trim-horizon", false, "去掉没有预测的月份的订单/出货列")
	cmd.Flags().BoolVar(&opts.dropZeroRows, "drop-zero-rows", false, "去掉全为 0 的品名行")
	cmd.Flags().BoolVar(&opts.keepMapped, "keep-mapping-only", false, "保留仅在映射表中出现的品名")
	cmd.Flags().BoolVar(&opts.record, "record", false, "将运行结果写入数据目录中的运行记录库")

	cmd.MarkFlagsMutuallyExclusive("input-dir", "order")
	cmd.MarkFlagsMutuallyExclusive("input-dir", "shipment")
	return cmd
}

func readSource(path string) (model.SourceFile, error) {
	if path == "" {
		return model.SourceFile{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SourceFile{}, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	return model.SourceFile{Name: filepath.Base(path), Content: data}, nil
}

// collectInputs 从命令行参数或输入目录收集输入
func collectInputs(opts buildOptions, runOpts importer.Options) (importer.Inputs, error) {
	if opts.inputDir != "" {
		return collectFromDir(opts.inputDir, runOpts)
	}

	var in importer.Inputs
	var err error
	for _, p := range opts.forecasts {
		f, err := readSource(p)
		if err != nil {
			return in, err
		}
		in.Forecasts = append(in.Forecasts, f)
	}
	if in.Order, err = readSource(opts.order); err != nil {
		return in, err
	}
	if in.Shipment, err = readSource(opts.shipment); err != nil {
		return in, err
	}
	if in.Mapping, err = readSource(opts.mapping); err != nil {
		return in, err
	}
	return in, nil
}

func collectFromDir(dir string, runOpts importer.Options) (importer.Inputs, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return importer.Inputs{}, fmt.Errorf("读取输入目录失败: %w", err)
	}

	var files []model.SourceFile
	for _, e := range entries {
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		// ~$ 为 Excel 打开时的锁文件
		if e.IsDir() || strings.HasPrefix(name, "~$") || (ext != ".xlsx" && ext != ".csv") {
			continue
		}
		f, err := readSource(filepath.Join(dir, name))
		if err != nil {
			return importer.Inputs{}, err
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	recognizer := parser.NewSourceRecognizer(runOpts.ScanRows, runOpts.Order, runOpts.Shipment)
	in, results, err := importer.Classify(files, recognizer)
	for _, r := range results {
		fmt.Printf("  %-32s → %s (%.0f%%)\n", r.FileName, r.Kind.Label(), r.Confidence*100)
	}
	return in, err
}

func runBuild(ctx context.Context, cfg *config.AppConfig, runOpts importer.Options, opts buildOptions, logger *zap.Logger) error {
	in, err := collectInputs(opts, runOpts)
	if err != nil {
		return err
	}

	var recorder importer.Recorder
	if opts.record {
		if _, err := config.EnsureDataDir(cfg); err != nil {
			return fmt.Errorf("创建数据目录失败: %w", err)
		}
		st, err := store.New(config.DBPath(cfg))
		if err != nil {
			return err
		}
		defer st.Close()
		recorder = st
	}

	coordinator := importer.NewCoordinator(runOpts, logger, recorder)
	result, err := coordinator.Run(ctx, in, printProgress)
	if err != nil {
		if errors.Is(err, importer.ErrMissingInput) {
			return fmt.Errorf("%w (使用 --order/--shipment/--mapping 或 --input-dir)", err)
		}
		return err
	}

	if err := exporter.NewRenderer().SaveAs(opts.out, result.Table, nil); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", opts.out, err)
	}

	r := result.Report
	fmt.Println("------------------------------------------")
	fmt.Printf("运行 ID: %s\n", result.RunID)
	fmt.Printf("文件: %d 个, 导入 %d, 跳过 %d, 失败 %d\n", r.TotalFiles, r.ImportedFiles, r.SkippedFiles, r.ErrorFiles)
	fmt.Printf("主表: %d 个品名, %d 列, %d 个预测版本\n", r.Products, r.Columns, len(result.Table.Vintages))
	for _, w := range r.Warnings {
		fmt.Printf("警告: %s\n", w)
	}
	fmt.Printf("输出: %s\n", opts.out)
	return nil
}

func printProgress(evt importer.ProgressEvent) {
	switch evt.Type {
	case "file_done", "warning", "info":
		fmt.Printf("[%s] %s\n", evt.Type, evt.Message)
	}
}
