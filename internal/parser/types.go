package parser

import "time"

// SourceKind 输入文件类型
type SourceKind string

const (
	SourceForecast SourceKind = "forecast"
	SourceOrder    SourceKind = "order"
	SourceShipment SourceKind = "shipment"
	SourceMapping  SourceKind = "mapping"
	SourceUnknown  SourceKind = "unknown"
)

// Label 中文名称
func (k SourceKind) Label() string {
	switch k {
	case SourceForecast:
		return "预测表"
	case SourceOrder:
		return "订单台账"
	case SourceShipment:
		return "出货台账"
	case SourceMapping:
		return "料号映射表"
	default:
		return "未知文件"
	}
}

// RecognitionResult 文件类型识别结果
type RecognitionResult struct {
	FileName   string     `json:"fileName"`
	Sheet      string     `json:"sheet"`
	Kind       SourceKind `json:"kind"`
	Confidence float64    `json:"confidence"` // 置信度 0-1
}

// FileResult 单个文件的处理结果
type FileResult struct {
	FileName string        `json:"fileName"`
	Kind     SourceKind    `json:"kind"`
	Status   string        `json:"status"` // imported/skipped/error
	Facts    int           `json:"facts"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunReport 一次运行的汇总报告
type RunReport struct {
	TotalFiles    int           `json:"totalFiles"`
	ImportedFiles int           `json:"importedFiles"`
	SkippedFiles  int           `json:"skippedFiles"`
	ErrorFiles    int           `json:"errorFiles"`
	TotalFacts    int           `json:"totalFacts"`
	Products      int           `json:"products"`
	Columns       int           `json:"columns"`
	Warnings      []string      `json:"warnings,omitempty"`
	Duration      time.Duration `json:"duration"`
	Files         []FileResult  `json:"files"`
}

// Record 累计文件结果
func (r *RunReport) Record(result FileResult) {
	r.Files = append(r.Files, result)
	r.TotalFiles++
	switch result.Status {
	case "imported":
		r.ImportedFiles++
		r.TotalFacts += result.Facts
	case "skipped":
		r.SkippedFiles++
	case "error":
		r.ErrorFiles++
	}
}
