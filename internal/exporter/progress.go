package exporter

// ProgressEvent 渲染进度事件
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Stage   string `json:"stage"`
	Sheet   string `json:"sheet,omitempty"` // 正在写入的工作表
}

// renderStage 渲染阶段：明细先写，预测分析的超链接依赖明细行号
type renderStage struct {
	percent int
	label   string
	sheet   string
}

var (
	stageInit     = renderStage{percent: 5, label: "初始化工作簿"}
	stageDetail   = renderStage{percent: 15, label: "写入明细", sheet: SheetDetail}
	stageAnalysis = renderStage{percent: 45, label: "写入预测分析", sheet: SheetAnalysis}
	stageVintage  = renderStage{percent: 80, label: "写入预测展示", sheet: SheetVintage}
	stageDone     = renderStage{percent: 100, label: "完成"}
)

func reportStage(progress func(ProgressEvent), stage renderStage) {
	if progress == nil {
		return
	}
	progress(ProgressEvent{
		Percent: stage.percent,
		Stage:   stage.label,
		Sheet:   stage.sheet,
	})
}
