package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"futroll/internal/pkg/dateutil"
)

// 配置结构体：按子命令划分小节，未出现的小节全部走默认值。

type Config struct {
	App      AppConfig      `toml:"app"`
	Data     DataConfig     `toml:"data"`
	Backtest BacktestConfig `toml:"backtest"`
	Strategy StrategyConfig `toml:"strategy"`
	Binance  BinanceConfig  `toml:"binance"`
	Report   ReportConfig   `toml:"report"`
	Web      WebConfig      `toml:"web"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
}

type DataConfig struct {
	DBPath string `toml:"db_path"` // sqlite 数据库路径（行情与回测结果共用）
	CSVDir string `toml:"csv_dir"` // import 子命令默认导入目录
}

type BacktestConfig struct {
	FutCode             string  `toml:"fut_code"`              // 期货品种代码，如 IC / IF / IM
	IndexCode           string  `toml:"index_code"`            // 留空时按内置映射由 fut_code 推导
	StartDate           string  `toml:"start_date"`            // YYYYMMDD，留空取数据起点
	EndDate             string  `toml:"end_date"`              // YYYYMMDD，留空取数据终点
	InitialCapital      float64 `toml:"initial_capital"`
	MarginRate          float64 `toml:"margin_rate"`
	UseExchangeMargin   bool    `toml:"use_exchange_margin"` // 启用后按起始日交易所保证金率覆盖 margin_rate
	CommissionRate      float64 `toml:"commission_rate"`
	ExecutionPriceField string  `toml:"execution_price_field"` // open/close/settle/high/low
}

type StrategyConfig struct {
	Name                 string  `toml:"name"` // baseline | smart_roll
	RollDaysBeforeExpiry int     `toml:"roll_days_before_expiry"`
	MinRollDays          int     `toml:"min_roll_days"`
	RollCriteria         string  `toml:"roll_criteria"` // volume | oi
	TargetLeverage       float64 `toml:"target_leverage"`
	ContractSelection    string  `toml:"contract_selection"` // 目前仅 nearby
	SignalPriceField     string  `toml:"signal_price_field"`
}

type BinanceConfig struct {
	Pair       string `toml:"pair"`        // 币本位交割合约币对，如 BTCUSD
	SpotSymbol string `toml:"spot_symbol"` // 充当指数的现货符号，留空时取 pair+"T"（BTCUSD→BTCUSDT）
	APIKey     string `toml:"api_key"`
	APISecret  string `toml:"api_secret"`
	Limit      int    `toml:"limit"` // 每个合约拉取的最大日线条数
}

type ReportConfig struct {
	OutDir        string `toml:"out_dir"`
	RenderPNG     bool   `toml:"render_png"`     // 依赖 headless Chrome，探测失败时自动降级
	RollingWindow int    `toml:"rolling_window"` // 滚动波动率窗口（交易日）
}

type WebConfig struct {
	Addr string `toml:"addr"`
}

// Load 读取并解析 TOML 配置文件，并设置缺省值与基本校验。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 TOML 失败: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回全默认配置（配置文件缺失时 import/serve 等子命令仍可工作）。
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(c *Config) {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Data.DBPath == "" {
		c.Data.DBPath = "data/futroll.db"
	}
	if c.Data.CSVDir == "" {
		c.Data.CSVDir = "data/raw"
	}
	if c.Backtest.FutCode == "" {
		c.Backtest.FutCode = "IC"
	}
	if c.Backtest.InitialCapital <= 0 {
		c.Backtest.InitialCapital = 10_000_000
	}
	if c.Backtest.MarginRate <= 0 {
		c.Backtest.MarginRate = 0.12
	}
	if c.Backtest.CommissionRate <= 0 {
		c.Backtest.CommissionRate = 0.00023
	}
	if c.Backtest.ExecutionPriceField == "" {
		c.Backtest.ExecutionPriceField = "open"
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "smart_roll"
	}
	if c.Strategy.RollDaysBeforeExpiry <= 0 {
		c.Strategy.RollDaysBeforeExpiry = 1
	}
	if c.Strategy.MinRollDays <= 0 {
		c.Strategy.MinRollDays = 5
	}
	if c.Strategy.RollCriteria == "" {
		c.Strategy.RollCriteria = "volume"
	}
	if c.Strategy.TargetLeverage <= 0 {
		c.Strategy.TargetLeverage = 1.0
	}
	if c.Strategy.ContractSelection == "" {
		c.Strategy.ContractSelection = "nearby"
	}
	if c.Strategy.SignalPriceField == "" {
		c.Strategy.SignalPriceField = "open"
	}
	if c.Binance.Limit <= 0 {
		c.Binance.Limit = 1000
	}
	if c.Binance.SpotSymbol == "" && c.Binance.Pair != "" {
		c.Binance.SpotSymbol = c.Binance.Pair + "T"
	}
	if c.Report.OutDir == "" {
		c.Report.OutDir = "reports"
	}
	if c.Report.RollingWindow <= 0 {
		c.Report.RollingWindow = 20
	}
	if c.Web.Addr == "" {
		c.Web.Addr = ":8080"
	}
}

var priceFields = map[string]bool{
	"open": true, "high": true, "low": true, "close": true, "settle": true,
}

func validate(c *Config) error {
	if c.Backtest.MarginRate >= 1 {
		return fmt.Errorf("backtest.margin_rate 需小于 1（当前 %v）", c.Backtest.MarginRate)
	}
	if c.Backtest.CommissionRate >= 0.01 {
		return fmt.Errorf("backtest.commission_rate 异常偏大（当前 %v）", c.Backtest.CommissionRate)
	}
	if !priceFields[c.Backtest.ExecutionPriceField] {
		return fmt.Errorf("非法 execution_price_field: %s", c.Backtest.ExecutionPriceField)
	}
	if !priceFields[c.Strategy.SignalPriceField] {
		return fmt.Errorf("非法 signal_price_field: %s", c.Strategy.SignalPriceField)
	}
	switch c.Strategy.Name {
	case "baseline", "smart_roll":
	default:
		return fmt.Errorf("未知策略: %s（可选 baseline / smart_roll）", c.Strategy.Name)
	}
	switch c.Strategy.RollCriteria {
	case "volume", "oi":
	default:
		return fmt.Errorf("非法 roll_criteria: %s（可选 volume / oi）", c.Strategy.RollCriteria)
	}
	if c.Strategy.ContractSelection != "nearby" {
		return fmt.Errorf("暂不支持的 contract_selection: %s", c.Strategy.ContractSelection)
	}
	for _, d := range []string{c.Backtest.StartDate, c.Backtest.EndDate} {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if _, err := dateutil.Parse(d); err != nil {
			return err
		}
	}
	if c.Backtest.StartDate != "" && c.Backtest.EndDate != "" && c.Backtest.StartDate > c.Backtest.EndDate {
		return fmt.Errorf("backtest.start_date 晚于 end_date")
	}
	return nil
}
