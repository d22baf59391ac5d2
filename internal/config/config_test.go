package config

import (
	"os"
	"path/filepath"
	"testing"

	"masterplan/internal/mapping"
	"masterplan/internal/planner"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, info, err := LoadConfigWithInfo(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("LoadConfigWithInfo: %v", err)
	}
	if info.Found || info.PortSpecified {
		t.Fatalf("info=%+v", info)
	}
	def := DefaultConfig()
	if cfg.Server.Port != def.Server.Port || cfg.Ledger.Order.Sheet != "Sheet" || cfg.Ledger.Shipment.Sheet != "原表" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	writeFile(t, path, `
[server]
port = 18080

[plan]
mapping_only_rows = "keep"
trim_out_of_horizon = true

[ledger.order]
quantity_column = "数量"

[mapping]
substitute_match = "declared"
`)

	cfg, info, err := LoadConfigWithInfo(path)
	if err != nil {
		t.Fatalf("LoadConfigWithInfo: %v", err)
	}
	if !info.Found || !info.PortSpecified || cfg.Server.Port != 18080 {
		t.Fatalf("info=%+v port=%d", info, cfg.Server.Port)
	}
	// 未出现的键保持默认
	if cfg.Ledger.Order.DateColumn != "客户要求交期" {
		t.Fatalf("DateColumn=%q", cfg.Ledger.Order.DateColumn)
	}

	opts, err := cfg.ImporterOptions()
	if err != nil {
		t.Fatalf("ImporterOptions: %v", err)
	}
	if opts.Policy.MappingOnlyRows != planner.MappingOnlyKeep || !opts.Policy.TrimOutOfHorizon {
		t.Fatalf("policy=%+v", opts.Policy)
	}
	if opts.Selection != mapping.SelectDeclared {
		t.Fatalf("Selection=%q", opts.Selection)
	}
	if opts.Order.QuantityColumn != "数量" || opts.Order.ProductColumn != "品名" {
		t.Fatalf("order spec=%+v", opts.Order)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvPort, "19090")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvDataDir, filepath.Join(dir, "store"))

	cfg, info, err := LoadConfigWithInfo(filepath.Join(dir, "config.toml"))
	if err != nil {
		t.Fatalf("LoadConfigWithInfo: %v", err)
	}
	if cfg.Server.Port != 19090 || !info.PortSpecified {
		t.Fatalf("port=%d info=%+v", cfg.Server.Port, info)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Level=%q", cfg.Log.Level)
	}

	dataDir, err := EnsureDataDir(cfg)
	if err != nil {
		t.Fatalf("EnsureDataDir: %v", err)
	}
	if dataDir != filepath.Join(dir, "store") {
		t.Fatalf("dataDir=%q", dataDir)
	}
	for _, sub := range []string{"uploads", "exports", "logs"} {
		if st, err := os.Stat(filepath.Join(dataDir, sub)); err != nil || !st.IsDir() {
			t.Fatalf("missing subdir %s: %v", sub, err)
		}
	}
	if got := DBPath(cfg); got != filepath.Join(dir, "store", "masterplan.db") {
		t.Fatalf("DBPath=%q", got)
	}
}

func TestLoadConfig_InvalidPortEnv(t *testing.T) {
	t.Setenv(EnvPort, "abc")
	if _, _, err := LoadConfigWithInfo(filepath.Join(t.TempDir(), "config.toml")); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func TestImporterOptions_RejectsInvalidValues(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Plan.MappingOnlyRows = "sometimes"
	if _, err := cfg.ImporterOptions(); err == nil {
		t.Fatalf("expected error for mapping_only_rows")
	}

	cfg = DefaultConfig()
	cfg.Plan.AttributePrecedence = []string{"mapping", "erp"}
	if _, err := cfg.ImporterOptions(); err == nil {
		t.Fatalf("expected error for attribute_precedence")
	}

	cfg = DefaultConfig()
	cfg.Mapping.SubstituteMatch = "random"
	if _, err := cfg.ImporterOptions(); err == nil {
		t.Fatalf("expected error for substitute_match")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Server.Port = 23000
	cfg.Plan.DropZeroRows = true
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	loaded, _, err := LoadConfigWithInfo(path)
	if err != nil {
		t.Fatalf("LoadConfigWithInfo: %v", err)
	}
	if loaded.Server.Port != 23000 || !loaded.Plan.DropZeroRows {
		t.Fatalf("loaded=%+v", loaded)
	}
}
