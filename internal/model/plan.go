package model

import (
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
)

// SourceFile 一份待处理的输入文件（文件名 + 内容）
type SourceFile struct {
	Name    string
	Content []byte
}

// Ext 小写扩展名
func (f SourceFile) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// IsEmpty 是否未提供
func (f SourceFile) IsEmpty() bool {
	return f.Name == "" && len(f.Content) == 0
}

// ProductIdentity 产品标识
type ProductIdentity struct {
	CanonicalName string `json:"canonicalName"`
	WaferName     string `json:"waferName"`
	Spec          string `json:"spec"`
}

// Attributes 产品描述属性（晶圆品名 / 规格）
type Attributes struct {
	WaferName string `json:"waferName,omitempty"`
	Spec      string `json:"spec,omitempty"`
}

// Merge 仅填补空白字段，已有值不被覆盖
func (a Attributes) Merge(other Attributes) Attributes {
	if strings.TrimSpace(a.WaferName) == "" {
		a.WaferName = strings.TrimSpace(other.WaferName)
	}
	if strings.TrimSpace(a.Spec) == "" {
		a.Spec = strings.TrimSpace(other.Spec)
	}
	return a
}

// IsEmpty 是否全部为空
func (a Attributes) IsEmpty() bool {
	return strings.TrimSpace(a.WaferName) == "" && strings.TrimSpace(a.Spec) == ""
}

// ForecastFact 单个版本的预测值
type ForecastFact struct {
	ProductID       string
	ForecastMonth   MonthKey
	GenerationMonth MonthKey
	Quantity        decimal.Decimal
}

// LedgerKind 台账类型
type LedgerKind string

const (
	LedgerOrder    LedgerKind = "order"
	LedgerShipment LedgerKind = "shipment"
)

// Label 中文名称
func (k LedgerKind) Label() string {
	switch k {
	case LedgerOrder:
		return "订单"
	case LedgerShipment:
		return "出货"
	default:
		return string(k)
	}
}

// LedgerFact 订单/出货按月汇总值
type LedgerFact struct {
	ProductID string
	Month     MonthKey
	Quantity  decimal.Decimal
}

// RecordKind 长表记录类型
type RecordKind string

const (
	KindForecast RecordKind = "forecast"
	KindOrder    RecordKind = "order"
	KindShipment RecordKind = "shipment"
)

// Record 长表记录，供明细表与图表使用
type Record struct {
	ProductID       string          `json:"productId"`
	Month           MonthKey        `json:"month"`
	GenerationMonth *MonthKey       `json:"generationMonth,omitempty"`
	Kind            RecordKind      `json:"kind"`
	Quantity        decimal.Decimal `json:"quantity"`
}
