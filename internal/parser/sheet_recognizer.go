package parser

import (
	"strings"

	"masterplan/internal/model"
)

// SourceRecognizer 输入文件类型识别器
type SourceRecognizer struct {
	scanRows int
	order    LedgerSpec
	shipment LedgerSpec
}

// NewSourceRecognizer 创建识别器
func NewSourceRecognizer(scanRows int, order, shipment LedgerSpec) *SourceRecognizer {
	if scanRows <= 0 {
		scanRows = DefaultHeaderScanRows
	}
	return &SourceRecognizer{scanRows: scanRows, order: order, shipment: shipment}
}

// RecognizeFile 读取文件并识别类型，取所有 Sheet 中置信度最高者
func (r *SourceRecognizer) RecognizeFile(file model.SourceFile) (RecognitionResult, error) {
	sheets, err := readWorkbook(file)
	if err != nil {
		return RecognitionResult{FileName: file.Name, Kind: SourceUnknown}, err
	}

	best := RecognitionResult{FileName: file.Name, Kind: SourceUnknown}
	for _, s := range sheets {
		res := r.Recognize(file.Name, s.Name, s.Rows)
		if res.Confidence > best.Confidence {
			best = res
		}
	}
	return best, nil
}

// Recognize 根据文件名、Sheet 名与前几行识别类型
func (r *SourceRecognizer) Recognize(fileName, sheetName string, rows [][]string) RecognitionResult {
	if len(rows) > r.scanRows {
		rows = rows[:r.scanRows]
	}

	// 依次尝试各种类型
	candidates := []RecognitionResult{
		r.recognizeLedger(fileName, sheetName, rows, r.order, SourceOrder, "订单"),
		r.recognizeLedger(fileName, sheetName, rows, r.shipment, SourceShipment, "出货"),
		r.recognizeMapping(fileName, sheetName, rows),
		r.recognizeForecast(fileName, sheetName, rows),
	}

	best := RecognitionResult{FileName: fileName, Sheet: sheetName, Kind: SourceUnknown}
	for _, c := range candidates {
		if c.Confidence >= 0.5 && c.Confidence > best.Confidence {
			best = c
		}
	}
	return best
}

// recognizeForecast 识别预测表
func (r *SourceRecognizer) recognizeForecast(fileName, sheetName string, rows [][]string) RecognitionResult {
	confidence := 0.0
	if ForecastLabelHeuristic().Match(flatten(rows)) {
		confidence += 0.6
	}
	if MarkerHeuristic("产品型号").Match(flatten(rows)) {
		confidence += 0.2
	}
	if strings.Contains(fileName, "预测") {
		confidence += 0.1
	}
	if _, err := ParseGenerationDate(fileName); err == nil {
		confidence += 0.1
	}
	return RecognitionResult{FileName: fileName, Sheet: sheetName, Kind: SourceForecast, Confidence: confidence}
}

// recognizeLedger 识别订单/出货台账
func (r *SourceRecognizer) recognizeLedger(fileName, sheetName string, rows [][]string, spec LedgerSpec, kind SourceKind, keyword string) RecognitionResult {
	confidence := 0.0
	for _, row := range rows {
		if RequiredColumnsHeuristic(spec.required()...).Match(row) {
			confidence = 0.8
			break
		}
	}
	if confidence > 0 && sheetName == spec.Sheet {
		confidence += 0.1
	}
	if strings.Contains(fileName, keyword) {
		confidence += 0.1
	}
	return RecognitionResult{FileName: fileName, Sheet: sheetName, Kind: kind, Confidence: confidence}
}

// recognizeMapping 识别料号映射表
func (r *SourceRecognizer) recognizeMapping(fileName, sheetName string, rows [][]string) RecognitionResult {
	confidence := 0.0
	for _, row := range rows {
		if !AnyColumnHeuristic("新品名", "新料号").Match(row) {
			continue
		}
		confidence = 0.6
		if AnyColumnHeuristic("旧品名", "旧料号", "替代品名1", "替代料号1").Match(row) || findContainsCol(row, "半成品") >= 0 {
			confidence += 0.3
		}
		break
	}
	if ContainsAny(fileName, []string{"对照", "映射", "mapping"}) {
		confidence += 0.1
	}
	return RecognitionResult{FileName: fileName, Sheet: sheetName, Kind: SourceMapping, Confidence: confidence}
}

func flatten(rows [][]string) []string {
	var out []string
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}
