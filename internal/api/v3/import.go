package v3

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"masterplan/internal/exporter"
	"masterplan/internal/importer"
	"masterplan/internal/model"
)

// 上传表单字段
const (
	fieldForecast = "forecast" // 可重复
	fieldOrder    = "order"
	fieldShipment = "shipment"
	fieldMapping  = "mapping"
)

func readUpload(fh *multipart.FileHeader) (model.SourceFile, error) {
	f, err := fh.Open()
	if err != nil {
		return model.SourceFile{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return model.SourceFile{}, err
	}
	return model.SourceFile{Name: filepath.Base(fh.Filename), Content: data}, nil
}

func readSingle(form *multipart.Form, field string) (model.SourceFile, error) {
	files := form.File[field]
	if len(files) == 0 {
		return model.SourceFile{}, nil
	}
	return readUpload(files[0])
}

func readInputs(form *multipart.Form) (importer.Inputs, error) {
	var in importer.Inputs
	var err error
	for _, fh := range form.File[fieldForecast] {
		file, err := readUpload(fh)
		if err != nil {
			return in, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		in.Forecasts = append(in.Forecasts, file)
	}
	if in.Order, err = readSingle(form, fieldOrder); err != nil {
		return in, err
	}
	if in.Shipment, err = readSingle(form, fieldShipment); err != nil {
		return in, err
	}
	if in.Mapping, err = readSingle(form, fieldMapping); err != nil {
		return in, err
	}
	return in, nil
}

// CreatePlan 上传文件并生成主计划 (SSE 流式响应)
// POST /api/plans
func (h *Handler) CreatePlan(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的表单数据"})
		return
	}

	inputs, err := readInputs(form)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}
	if inputs.Order.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少订单台账"})
		return
	}
	if inputs.Shipment.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少出货台账"})
		return
	}
	if inputs.Mapping.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少料号映射表"})
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "不支持流式响应"})
		return
	}

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	send := func(event importer.ProgressEvent) {
		eventData, err := json.Marshal(event)
		if err != nil {
			h.logger.Warn("encode progress event failed", zap.Error(err))
			return
		}
		// SSE 格式: data: {json}\n\n
		fmt.Fprintf(c.Writer, "data: %s\n\n", eventData)
		flusher.Flush()
	}

	coordinator := importer.NewCoordinator(h.opts, h.logger, h.store)
	for event := range coordinator.Import(c.Request.Context(), inputs) {
		if event.Type != "done" {
			send(event)
			continue
		}
		result, ok := event.Data.(*importer.Result)
		if !ok {
			send(importer.ProgressEvent{Type: "error", Message: "运行结果无效", Timestamp: time.Now()})
			continue
		}
		h.finishPlan(result, send)
	}
}

// finishPlan 渲染工作簿并发送 done 事件
func (h *Handler) finishPlan(result *importer.Result, send func(importer.ProgressEvent)) {
	log := h.logger.With(zap.String("run_id", result.RunID))
	h.tables.put(result.RunID, result.Table, tableCacheTTL)

	lastPercent := -1
	progressFn := func(p exporter.ProgressEvent) {
		if p.Percent == lastPercent {
			return
		}
		lastPercent = p.Percent
		send(importer.ProgressEvent{
			Type:      "progress",
			Message:   p.Stage,
			Data:      map[string]any{"percent": p.Percent, "sheet": p.Sheet},
			Timestamp: time.Now(),
		})
	}

	outPath := filepath.Join(h.exportDir, result.RunID+".xlsx")
	if err := h.renderer.SaveAs(outPath, result.Table, progressFn); err != nil {
		log.Error("render workbook failed", zap.Error(err))
		send(importer.ProgressEvent{Type: "error", Message: "生成工作簿失败: " + err.Error(), Timestamp: time.Now()})
		return
	}
	if err := h.store.SetRunOutput(result.RunID, outPath); err != nil {
		log.Warn("record run output failed", zap.Error(err))
	}

	send(importer.ProgressEvent{
		Type:    "done",
		Message: "主计划生成完成",
		Data: map[string]any{
			"runId":       result.RunID,
			"report":      result.Report,
			"mapping":     result.Mapping,
			"downloadUrl": fmt.Sprintf("/api/plans/%s/download", result.RunID),
		},
		Timestamp: time.Now(),
	})
}
