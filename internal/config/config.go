package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"

	"masterplan/internal/importer"
	"masterplan/internal/mapping"
	"masterplan/internal/parser"
	"masterplan/internal/planner"
)

// 环境变量
const (
	EnvDataDir  = "MASTERPLAN_DATA_DIR"
	EnvPort     = "MASTERPLAN_PORT"
	EnvLogLevel = "MASTERPLAN_LOG_LEVEL"
)

// AppConfig 应用配置
type AppConfig struct {
	Server   ServerConfig   `toml:"server"`
	Data     DataConfig     `toml:"data"`
	Log      LogConfig      `toml:"log"`
	Plan     PlanConfig     `toml:"plan"`
	Forecast ForecastConfig `toml:"forecast"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Mapping  MappingConfig  `toml:"mapping"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port        int  `toml:"port"`
	DevMode     bool `toml:"dev_mode"`
	OpenBrowser bool `toml:"open_browser"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir"`
	DBName  string `toml:"db_name"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `toml:"level"`  // debug/info/warn/error
	Format     string `toml:"format"` // console/json
	File       string `toml:"file"`   // 为空时只输出到控制台
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxAgeDays int    `toml:"max_age_days"`
	MaxBackups int    `toml:"max_backups"`
}

// PlanConfig 主表构建配置
type PlanConfig struct {
	HeaderScanRows      int      `toml:"header_scan_rows"`
	MappingOnlyRows     string   `toml:"mapping_only_rows"` // drop/keep
	AttributePrecedence []string `toml:"attribute_precedence"`
	TrimOutOfHorizon    bool     `toml:"trim_out_of_horizon"`
	DropZeroRows        bool     `toml:"drop_zero_rows"`
}

// ForecastConfig 预测表配置
type ForecastConfig struct {
	Marker        string `toml:"marker"`
	ProductColumn int    `toml:"product_column"` // 0 起始
}

// LedgerConfig 台账配置
type LedgerConfig struct {
	Order    LedgerSheetConfig `toml:"order"`
	Shipment LedgerSheetConfig `toml:"shipment"`
}

// LedgerSheetConfig 单个台账的工作表与列名
type LedgerSheetConfig struct {
	Sheet          string `toml:"sheet"`
	ProductColumn  string `toml:"product_column"`
	DateColumn     string `toml:"date_column"`
	QuantityColumn string `toml:"quantity_column"`
}

// MappingConfig 料号映射配置
type MappingConfig struct {
	SubstituteMatch string `toml:"substitute_match"` // longest/declared
}

// LoadConfigInfo 配置加载元信息
type LoadConfigInfo struct {
	Path          string
	Found         bool
	PortSpecified bool
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	order := parser.DefaultOrderSpec()
	shipment := parser.DefaultShipmentSpec()
	forecast := parser.DefaultForecastOptions()
	policy := planner.DefaultPolicy()

	return &AppConfig{
		Server: ServerConfig{
			Port:        20262,
			DevMode:     false,
			OpenBrowser: true,
		},
		Data: DataConfig{
			DataDir: "data",
			DBName:  "masterplan.db",
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxAgeDays: 30,
			MaxBackups: 5,
		},
		Plan: PlanConfig{
			HeaderScanRows:  parser.DefaultHeaderScanRows,
			MappingOnlyRows: string(policy.MappingOnlyRows),
			AttributePrecedence: lo.Map(policy.AttributePrecedence, func(s planner.AttributeSource, _ int) string {
				return string(s)
			}),
		},
		Forecast: ForecastConfig{
			Marker:        forecast.Marker,
			ProductColumn: forecast.ProductColumn,
		},
		Ledger: LedgerConfig{
			Order:    ledgerSheetFromSpec(order),
			Shipment: ledgerSheetFromSpec(shipment),
		},
		Mapping: MappingConfig{
			SubstituteMatch: string(mapping.SelectLongest),
		},
	}
}

func ledgerSheetFromSpec(spec parser.LedgerSpec) LedgerSheetConfig {
	return LedgerSheetConfig{
		Sheet:          spec.Sheet,
		ProductColumn:  spec.ProductColumn,
		DateColumn:     spec.DateColumn,
		QuantityColumn: spec.QuantityColumn,
	}
}

func (c LedgerSheetConfig) toSpec(kind parser.LedgerSpec) parser.LedgerSpec {
	spec := kind
	if c.Sheet != "" {
		spec.Sheet = c.Sheet
	}
	if c.ProductColumn != "" {
		spec.ProductColumn = c.ProductColumn
	}
	if c.DateColumn != "" {
		spec.DateColumn = c.DateColumn
	}
	if c.QuantityColumn != "" {
		spec.QuantityColumn = c.QuantityColumn
	}
	return spec
}

// ImporterOptions 转换为运行选项
func (c *AppConfig) ImporterOptions() (importer.Options, error) {
	opts := importer.DefaultOptions()

	selection, err := mapping.ParseSelection(c.Mapping.SubstituteMatch)
	if err != nil {
		return opts, err
	}
	opts.Selection = selection

	if c.Plan.HeaderScanRows > 0 {
		opts.ScanRows = c.Plan.HeaderScanRows
		opts.Forecast.ScanRows = c.Plan.HeaderScanRows
	}
	if c.Forecast.Marker != "" {
		opts.Forecast.Marker = c.Forecast.Marker
	}
	if c.Forecast.ProductColumn >= 0 {
		opts.Forecast.ProductColumn = c.Forecast.ProductColumn
	}
	opts.Order = c.Ledger.Order.toSpec(opts.Order)
	opts.Shipment = c.Ledger.Shipment.toSpec(opts.Shipment)

	switch planner.MappingOnlyRows(c.Plan.MappingOnlyRows) {
	case "":
	case planner.MappingOnlyDrop, planner.MappingOnlyKeep:
		opts.Policy.MappingOnlyRows = planner.MappingOnlyRows(c.Plan.MappingOnlyRows)
	default:
		return opts, fmt.Errorf("plan.mapping_only_rows 取值无效: %q", c.Plan.MappingOnlyRows)
	}

	if len(c.Plan.AttributePrecedence) > 0 {
		precedence := make([]planner.AttributeSource, 0, len(c.Plan.AttributePrecedence))
		for _, s := range c.Plan.AttributePrecedence {
			src := planner.AttributeSource(s)
			switch src {
			case planner.SourceMapping, planner.SourceOrder, planner.SourceShipment, planner.SourceForecast:
				precedence = append(precedence, src)
			default:
				return opts, fmt.Errorf("plan.attribute_precedence 包含无效来源: %q", s)
			}
		}
		opts.Policy.AttributePrecedence = lo.Uniq(precedence)
	}
	opts.Policy.TrimOutOfHorizon = c.Plan.TrimOutOfHorizon
	opts.Policy.DropZeroRows = c.Plan.DropZeroRows

	return opts, nil
}

func isPortSpecifiedInToml(data []byte) bool {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return false
	}

	serverAny, ok := raw["server"]
	if !ok {
		return false
	}

	serverMap, ok := serverAny.(map[string]any)
	if !ok {
		return false
	}

	_, ok = serverMap["port"]
	return ok
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

func exeDirOrCwd() string {
	dir, err := GetExeDir()
	if err != nil || dir == "" {
		return "."
	}
	return dir
}

// DefaultConfigPath 可执行文件同目录下的 config.toml
func DefaultConfigPath() string {
	return filepath.Join(exeDirOrCwd(), "config.toml")
}

// LoadConfigWithInfo 加载配置并返回元信息；path 为空时使用默认路径
func LoadConfigWithInfo(path string) (*AppConfig, LoadConfigInfo, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	info := LoadConfigInfo{Path: path}
	config := DefaultConfig()

	// 同目录 .env 只补充未设置的环境变量
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, info, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		info.Found = true
		info.PortSpecified = isPortSpecifiedInToml(data)
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, info, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// 配置文件不存在，使用默认配置
	default:
		return nil, info, err
	}

	if err := applyEnv(config, &info); err != nil {
		return nil, info, err
	}
	return config, info, nil
}

// LoadConfig 从默认路径加载配置
func LoadConfig() (*AppConfig, error) {
	config, _, err := LoadConfigWithInfo("")
	return config, err
}

// applyEnv 环境变量覆盖
func applyEnv(config *AppConfig, info *LoadConfigInfo) error {
	if v := os.Getenv(EnvDataDir); v != "" {
		config.Data.DataDir = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("%s 取值无效: %q", EnvPort, v)
		}
		config.Server.Port = port
		info.PortSpecified = true
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		config.Log.Level = v
	}
	return nil
}

// SaveConfig 保存配置；path 为空时使用默认路径
func SaveConfig(config *AppConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ResolveDataDir 数据目录绝对路径；相对路径基于可执行文件目录
func ResolveDataDir(config *AppConfig) string {
	if filepath.IsAbs(config.Data.DataDir) {
		return config.Data.DataDir
	}
	return filepath.Join(exeDirOrCwd(), config.Data.DataDir)
}

// EnsureDataDir 确保数据目录及子目录存在
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := ResolveDataDir(config)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	subdirs := []string{"uploads", "exports", "logs"}
	for _, subdir := range subdirs {
		path := filepath.Join(dataDir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", err
		}
	}

	return dataDir, nil
}

// GetDataPath 获取数据文件路径
func GetDataPath(config *AppConfig, subdir, filename string) string {
	return filepath.Join(ResolveDataDir(config), subdir, filename)
}

// DBPath 数据库文件路径
func DBPath(config *AppConfig) string {
	return GetDataPath(config, "", config.Data.DBName)
}
