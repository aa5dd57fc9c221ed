package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"futroll/internal/app"
	"futroll/internal/config"
	"futroll/internal/logger"
)

// 入口程序：
// 1) 加载 TOML 配置（FUTROLL_CONFIG 或默认路径，缺失时走全默认值）
// 2) 按子命令执行：import / fetch / run / report / serve
// 3) 命令行参数覆盖配置文件中的对应项
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("FUTROLL_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.toml"
	}

	var cfg *config.Config
	if _, err := os.Stat(cfgPath); err == nil {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			log.Fatalf("读取配置失败: %v", err)
		}
		cfg = loaded
		logger.Infof("✓ 配置加载成功: %s（环境=%s，品种=%s，策略=%s）",
			cfgPath, cfg.App.Env, cfg.Backtest.FutCode, cfg.Strategy.Name)
	} else {
		cfg = config.Default()
		logger.Warnf("配置文件 %s 不存在，使用默认配置", cfgPath)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	if err := run(ctx, cfg, cmd, args); err != nil {
		log.Fatalf("%s 失败: %v", cmd, err)
	}
}

func run(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "import":
		fs := flag.NewFlagSet("import", flag.ExitOnError)
		dir := fs.String("dir", cfg.Data.CSVDir, "CSV 数据目录")
		fs.Parse(args)
		return withApp(cfg, func(a *app.App) error {
			return a.Import(ctx, *dir)
		})

	case "fetch":
		fs := flag.NewFlagSet("fetch", flag.ExitOnError)
		pair := fs.String("pair", cfg.Binance.Pair, "币本位合约币对，如 BTCUSD")
		fs.Parse(args)
		if *pair != "" {
			cfg.Binance.Pair = *pair
			if cfg.Binance.SpotSymbol == "" {
				cfg.Binance.SpotSymbol = *pair + "T"
			}
		}
		return withApp(cfg, func(a *app.App) error {
			return a.Fetch(ctx)
		})

	case "run":
		fs := flag.NewFlagSet("run", flag.ExitOnError)
		start := fs.String("start", cfg.Backtest.StartDate, "起始日 YYYYMMDD，留空取数据起点")
		end := fs.String("end", cfg.Backtest.EndDate, "结束日 YYYYMMDD，留空取数据终点")
		strat := fs.String("strategy", cfg.Strategy.Name, "baseline | smart_roll")
		fs.Parse(args)
		cfg.Backtest.StartDate = *start
		cfg.Backtest.EndDate = *end
		cfg.Strategy.Name = *strat
		return withApp(cfg, func(a *app.App) error {
			result, err := a.RunBacktest(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("回测完成 run=%s 期末净值=%.4f 成交=%d 笔\n",
				result.RunID, result.FinalNAV, result.TradeCount())
			return nil
		})

	case "report":
		fs := flag.NewFlagSet("report", flag.ExitOnError)
		runID := fs.String("run", "", "回测运行 ID")
		fs.Parse(args)
		if *runID == "" {
			return fmt.Errorf("缺少 -run 参数")
		}
		return withApp(cfg, func(a *app.App) error {
			return a.Report(ctx, *runID)
		})

	case "serve":
		fs := flag.NewFlagSet("serve", flag.ExitOnError)
		addr := fs.String("addr", cfg.Web.Addr, "监听地址")
		fs.Parse(args)
		cfg.Web.Addr = *addr
		return withApp(cfg, func(a *app.App) error {
			return a.Serve(ctx)
		})

	default:
		usage()
		return fmt.Errorf("未知子命令: %s", cmd)
	}
}

func withApp(cfg *config.Config, fn func(*app.App) error) error {
	a, err := app.NewApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func usage() {
	fmt.Fprintln(os.Stderr, `用法: futroll <子命令> [参数]

子命令:
  import -dir <目录>        导入 tushare/wind 导出的 CSV 行情
  fetch  -pair <币对>       从 Binance 同步币本位交割合约数据
  run    [-start -end -strategy]  执行回测并生成报告
  report -run <ID>          为已落库的回测重新生成报告
  serve  [-addr]            启动回测结果查看服务

配置文件路径由 FUTROLL_CONFIG 指定，默认 configs/config.toml。`)
}
