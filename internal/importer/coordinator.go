package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"masterplan/internal/mapping"
	"masterplan/internal/model"
	"masterplan/internal/parser"
	"masterplan/internal/planner"
)

// ErrMissingInput 缺少必需输入文件
var ErrMissingInput = errors.New("缺少必需输入文件")

// Options 运行选项
type Options struct {
	ScanRows  int
	Forecast  parser.ForecastOptions
	Order     parser.LedgerSpec
	Shipment  parser.LedgerSpec
	Selection mapping.Selection
	Policy    planner.Policy
}

// DefaultOptions 默认运行选项
func DefaultOptions() Options {
	return Options{
		ScanRows:  parser.DefaultHeaderScanRows,
		Forecast:  parser.DefaultForecastOptions(),
		Order:     parser.DefaultOrderSpec(),
		Shipment:  parser.DefaultShipmentSpec(),
		Selection: mapping.SelectLongest,
		Policy:    planner.DefaultPolicy(),
	}
}

// Inputs 一次运行的全部输入
type Inputs struct {
	Forecasts []model.SourceFile
	Order     model.SourceFile
	Shipment  model.SourceFile
	Mapping   model.SourceFile
}

// ProgressEvent 进度事件
type ProgressEvent struct {
	Type      string      `json:"type"`    // start/file_start/file_done/info/warning/error/done
	Message   string      `json:"message"` // 事件消息
	Data      interface{} `json:"data"`    // 附加数据
	Timestamp time.Time   `json:"timestamp"`
}

// Result 运行结果
type Result struct {
	RunID     string                 `json:"runId"`
	StartedAt time.Time              `json:"startedAt"`
	Table     *planner.MasterTable   `json:"-"`
	Report    *parser.RunReport      `json:"report"`
	Mapping   *parser.MappingSummary `json:"mapping,omitempty"`
}

// Recorder 运行记录持久化
type Recorder interface {
	CreateRun(runID string, startedAt time.Time) error
	FailRun(runID string, message string) error
	CompleteRun(runID string, report *parser.RunReport, records []model.Record) error
}

// Coordinator 运行协调器
type Coordinator struct {
	opts     Options
	logger   *zap.Logger
	recorder Recorder
}

// NewCoordinator 创建运行协调器，recorder 可为 nil
func NewCoordinator(opts Options, logger *zap.Logger, recorder Recorder) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ScanRows <= 0 {
		opts.ScanRows = parser.DefaultHeaderScanRows
	}
	return &Coordinator{opts: opts, logger: logger, recorder: recorder}
}

// runContext 运行上下文
type runContext struct {
	ctx      context.Context
	result   *Result
	progress func(ProgressEvent)
	resolver *mapping.Resolver
	input    planner.Input
}

// Import 异步执行，返回进度通道；最后一个事件为 done（Data 为 *Result）或 error
func (c *Coordinator) Import(ctx context.Context, in Inputs) <-chan ProgressEvent {
	progressChan := make(chan ProgressEvent, 100)

	go func() {
		defer close(progressChan)
		send := func(evt ProgressEvent) { c.sendProgress(progressChan, evt) }
		result, err := c.Run(ctx, in, send)
		if err != nil {
			// 终止事件必须送达
			progressChan <- ProgressEvent{Type: "error", Message: err.Error(), Timestamp: time.Now()}
			return
		}
		progressChan <- ProgressEvent{Type: "done", Message: "主计划生成完成", Data: result, Timestamp: time.Now()}
	}()

	return progressChan
}

// Run 同步执行一次完整运行
func (c *Coordinator) Run(ctx context.Context, in Inputs, progress func(ProgressEvent)) (*Result, error) {
	if progress == nil {
		progress = func(ProgressEvent) {}
	}
	rc := &runContext{
		ctx:      ctx,
		progress: progress,
		result: &Result{
			RunID:     uuid.NewString(),
			StartedAt: time.Now(),
			Report:    &parser.RunReport{},
		},
	}
	log := c.logger.With(zap.String("run_id", rc.result.RunID))

	if c.recorder != nil {
		if err := c.recorder.CreateRun(rc.result.RunID, rc.result.StartedAt); err != nil {
			log.Warn("create run record failed", zap.Error(err))
		}
	}

	progress(ProgressEvent{
		Type:    "start",
		Message: "开始生成主计划",
		Data: map[string]interface{}{
			"run_id":    rc.result.RunID,
			"forecasts": len(in.Forecasts),
		},
		Timestamp: time.Now(),
	})

	if err := c.execute(rc, in, log); err != nil {
		log.Error("run failed", zap.Error(err))
		if c.recorder != nil {
			if ferr := c.recorder.FailRun(rc.result.RunID, err.Error()); ferr != nil {
				log.Warn("fail run record failed", zap.Error(ferr))
			}
		}
		return nil, err
	}

	rc.result.Report.Duration = time.Since(rc.result.StartedAt)
	if c.recorder != nil {
		if err := c.recorder.CompleteRun(rc.result.RunID, rc.result.Report, rc.result.Table.Records()); err != nil {
			log.Warn("complete run record failed", zap.Error(err))
		}
	}

	log.Info("run finished",
		zap.Int("products", rc.result.Report.Products),
		zap.Int("columns", rc.result.Report.Columns),
		zap.Int("skipped_files", rc.result.Report.SkippedFiles),
		zap.Duration("duration", rc.result.Report.Duration))
	return rc.result, nil
}

func (c *Coordinator) execute(rc *runContext, in Inputs, log *zap.Logger) error {
	if in.Order.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrMissingInput, parser.SourceOrder.Label())
	}
	if in.Shipment.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrMissingInput, parser.SourceShipment.Label())
	}
	if in.Mapping.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrMissingInput, parser.SourceMapping.Label())
	}

	if err := c.processMapping(rc, in.Mapping, log); err != nil {
		return err
	}

	order, err := c.processLedger(rc, in.Order, c.opts.Order, log)
	if err != nil {
		return err
	}
	rc.input.Orders = planner.LedgerBatch{Source: order.FileName, Facts: order.Facts, Attributes: order.Attributes}

	shipment, err := c.processLedger(rc, in.Shipment, c.opts.Shipment, log)
	if err != nil {
		return err
	}
	rc.input.Shipments = planner.LedgerBatch{Source: shipment.FileName, Facts: shipment.Facts, Attributes: shipment.Attributes}

	forecastParser := parser.NewForecastParser(rc.resolver, c.opts.Forecast)
	for _, file := range in.Forecasts {
		if err := rc.ctx.Err(); err != nil {
			return err
		}
		c.processForecast(rc, forecastParser, file, log)
	}

	table := planner.NewBuilder(c.opts.Policy).Build(rc.input)
	for _, w := range table.Warnings {
		rc.result.Report.Warnings = append(rc.result.Report.Warnings, w.Message)
		log.Warn("build warning", zap.String("kind", string(w.Kind)), zap.String("source", w.Source), zap.String("message", w.Message))
		rc.progress(ProgressEvent{Type: "warning", Message: w.Message, Data: w, Timestamp: time.Now()})
	}
	table = planner.Apply(table, c.opts.Policy)

	rc.result.Table = table
	rc.result.Report.Products = len(table.Rows)
	rc.result.Report.Columns = len(table.Columns)

	rc.progress(ProgressEvent{
		Type:    "info",
		Message: fmt.Sprintf("主表构建完成: %d 个品名, %d 列, %d 个预测版本", len(table.Rows), len(table.Columns), len(table.Vintages)),
		Data: map[string]int{
			"products": len(table.Rows),
			"columns":  len(table.Columns),
			"vintages": len(table.Vintages),
		},
		Timestamp: time.Now(),
	})
	return nil
}

// processMapping 解析料号映射表，失败即终止运行
func (c *Coordinator) processMapping(rc *runContext, file model.SourceFile, log *zap.Logger) error {
	start := time.Now()
	c.fileStart(rc, file, parser.SourceMapping)

	table, summary, err := parser.ParseMappingTable(file, c.opts.ScanRows)
	if err != nil {
		c.recordFileResult(rc, parser.FileResult{
			FileName: file.Name,
			Kind:     parser.SourceMapping,
			Status:   "error",
			Errors:   []string{err.Error()},
			Duration: time.Since(start),
		})
		return err
	}

	rc.resolver = mapping.NewResolver(table, c.opts.Selection)
	rc.input.Mapping = rc.resolver
	rc.result.Mapping = summary

	log.Info("mapping parsed",
		zap.String("file", file.Name),
		zap.Int("primary", summary.Primary),
		zap.Int("semi", summary.Semi),
		zap.Int("substitutes", summary.Substitutes))

	c.recordFileResult(rc, parser.FileResult{
		FileName: file.Name,
		Kind:     parser.SourceMapping,
		Status:   "imported",
		Facts:    table.Len(),
		Duration: time.Since(start),
	})
	c.fileDone(rc, file.Name, parser.SourceMapping, table.Len())
	return nil
}

// processLedger 解析订单/出货台账，失败即终止运行
func (c *Coordinator) processLedger(rc *runContext, file model.SourceFile, spec parser.LedgerSpec, log *zap.Logger) (*parser.LedgerSet, error) {
	kind := parser.SourceOrder
	if spec.Kind == model.LedgerShipment {
		kind = parser.SourceShipment
	}

	start := time.Now()
	c.fileStart(rc, file, kind)

	set, err := parser.NewLedgerParser(rc.resolver, c.opts.ScanRows).Parse(file, spec)
	if err != nil {
		c.recordFileResult(rc, parser.FileResult{
			FileName: file.Name,
			Kind:     kind,
			Status:   "error",
			Errors:   []string{err.Error()},
			Duration: time.Since(start),
		})
		return nil, err
	}

	for _, w := range set.Warnings {
		log.Warn("ledger warning", zap.String("file", file.Name), zap.String("message", w))
		rc.progress(ProgressEvent{Type: "warning", Message: fmt.Sprintf("%s: %s", file.Name, w), Timestamp: time.Now()})
	}

	c.recordFileResult(rc, parser.FileResult{
		FileName: file.Name,
		Kind:     kind,
		Status:   "imported",
		Facts:    len(set.Facts),
		Warnings: set.Warnings,
		Duration: time.Since(start),
	})
	c.fileDone(rc, file.Name, kind, len(set.Facts))
	return set, nil
}

// processForecast 解析单个预测文件，失败只跳过该文件
func (c *Coordinator) processForecast(rc *runContext, p *parser.ForecastParser, file model.SourceFile, log *zap.Logger) {
	start := time.Now()
	c.fileStart(rc, file, parser.SourceForecast)

	set, err := p.Parse(file)
	if err != nil {
		status := "error"
		if parser.IsSkippable(err) {
			status = "skipped"
		}
		log.Warn("forecast file skipped", zap.String("file", file.Name), zap.Error(err))
		c.recordFileResult(rc, parser.FileResult{
			FileName: file.Name,
			Kind:     parser.SourceForecast,
			Status:   status,
			Errors:   []string{err.Error()},
			Duration: time.Since(start),
		})
		rc.progress(ProgressEvent{
			Type:    "warning",
			Message: fmt.Sprintf("跳过预测文件「%s」: %v", file.Name, err),
			Data: map[string]string{
				"file_name": file.Name,
			},
			Timestamp: time.Now(),
		})
		return
	}

	rc.input.Forecasts = append(rc.input.Forecasts, planner.ForecastBatch{
		Source:     set.FileName,
		Products:   set.Products,
		Facts:      set.Facts,
		Attributes: set.Attributes,
	})

	for _, w := range set.Warnings {
		log.Warn("duplicate vintage cell", zap.String("file", file.Name), zap.String("message", w))
		rc.progress(ProgressEvent{
			Type:    "warning",
			Message: fmt.Sprintf("%s: %s", file.Name, w),
			Data: planner.Warning{
				Kind:    planner.WarningDuplicateVintage,
				Message: w,
				Source:  file.Name,
			},
			Timestamp: time.Now(),
		})
	}

	c.recordFileResult(rc, parser.FileResult{
		FileName: file.Name,
		Kind:     parser.SourceForecast,
		Status:   "imported",
		Facts:    len(set.Facts),
		Warnings: set.Warnings,
		Duration: time.Since(start),
	})
	rc.progress(ProgressEvent{
		Type:    "file_done",
		Message: fmt.Sprintf("预测文件「%s」(%s 生成) 解析完成: %d 条", file.Name, set.Generation, len(set.Facts)),
		Data: map[string]interface{}{
			"file_name":  file.Name,
			"kind":       parser.SourceForecast,
			"generation": set.Generation.String(),
			"sheet":      set.Sheet,
			"facts":      len(set.Facts),
		},
		Timestamp: time.Now(),
	})
}

func (c *Coordinator) fileStart(rc *runContext, file model.SourceFile, kind parser.SourceKind) {
	rc.progress(ProgressEvent{
		Type:    "file_start",
		Message: fmt.Sprintf("正在解析%s: %s", kind.Label(), file.Name),
		Data: map[string]string{
			"file_name": file.Name,
			"kind":      string(kind),
		},
		Timestamp: time.Now(),
	})
}

func (c *Coordinator) fileDone(rc *runContext, name string, kind parser.SourceKind, facts int) {
	rc.progress(ProgressEvent{
		Type:    "file_done",
		Message: fmt.Sprintf("%s「%s」解析完成: %d 条", kind.Label(), name, facts),
		Data: map[string]interface{}{
			"file_name": name,
			"kind":      kind,
			"facts":     facts,
		},
		Timestamp: time.Now(),
	})
}

// recordFileResult 记录文件处理结果
func (c *Coordinator) recordFileResult(rc *runContext, result parser.FileResult) {
	rc.result.Report.Record(result)
}

// sendProgress 发送进度事件
func (c *Coordinator) sendProgress(ch chan ProgressEvent, event ProgressEvent) {
	select {
	case ch <- event:
	default:
		// 通道已满，丢弃事件
	}
}
