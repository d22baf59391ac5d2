package importer

import (
	"fmt"

	"masterplan/internal/model"
	"masterplan/internal/parser"
)

// Classify 按内容识别文件类型并归入 Inputs；无法识别的文件不计入，结果中 Kind 为 unknown
func Classify(files []model.SourceFile, recognizer *parser.SourceRecognizer) (Inputs, []parser.RecognitionResult, error) {
	var in Inputs
	results := make([]parser.RecognitionResult, 0, len(files))
	seen := make(map[parser.SourceKind]string)

	for _, file := range files {
		res, err := recognizer.RecognizeFile(file)
		if err != nil {
			res = parser.RecognitionResult{FileName: file.Name, Kind: parser.SourceUnknown}
		}
		results = append(results, res)

		switch res.Kind {
		case parser.SourceForecast:
			in.Forecasts = append(in.Forecasts, file)
			continue
		case parser.SourceUnknown:
			continue
		}

		if prev, ok := seen[res.Kind]; ok {
			return in, results, fmt.Errorf("%s 与 %s 都被识别为%s，请显式指定", prev, file.Name, res.Kind.Label())
		}
		seen[res.Kind] = file.Name
		switch res.Kind {
		case parser.SourceOrder:
			in.Order = file
		case parser.SourceShipment:
			in.Shipment = file
		case parser.SourceMapping:
			in.Mapping = file
		}
	}
	return in, results, nil
}
