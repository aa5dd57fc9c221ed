// Package app 负责应用级编排：加载配置、初始化依赖、按子命令执行。
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"futroll/internal/account"
	"futroll/internal/backtest"
	"futroll/internal/config"
	"futroll/internal/gateway/binance"
	"futroll/internal/gateway/database"
	"futroll/internal/gateway/tushare"
	"futroll/internal/logger"
	"futroll/internal/market"
	"futroll/internal/pkg/dateutil"
	"futroll/internal/report"
	"futroll/internal/store"
	"futroll/internal/strategy"
	"futroll/internal/transport/web"
)

// App 应用对象。行情与回测结果共用一个 sqlite 库，
// 各子命令在其上组装自己需要的依赖。
type App struct {
	cfg *config.Config
	db  *database.Store
}

// NewApp 根据配置构建应用对象（不执行任何子命令）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Close 释放数据库等资源。
func (a *App) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Import 导入目录下的 tushare/wind CSV 行情。
func (a *App) Import(ctx context.Context, dir string) error {
	if dir == "" {
		dir = a.cfg.Data.CSVDir
	}
	return tushare.NewImporter(a.db).ImportDir(ctx, dir)
}

// Fetch 从 Binance 同步币本位交割合约数据。
func (a *App) Fetch(ctx context.Context) error {
	if a.cfg.Binance.Pair == "" {
		return fmt.Errorf("未指定币对（binance.pair 或 -pair）")
	}
	return binance.NewFetcher(a.cfg.Binance, a.db).Fetch(ctx)
}

// RunBacktest 执行一次回测：组装合约链与策略、跑完日循环、
// 结果落库并生成报告。
func (a *App) RunBacktest(ctx context.Context) (*backtest.Result, error) {
	bt := a.cfg.Backtest

	indexCode := bt.IndexCode
	if indexCode == "" {
		code, ok := market.DefaultIndexFor(bt.FutCode)
		if !ok {
			return nil, fmt.Errorf("品种 %s 无内置指数映射，请配置 backtest.index_code", bt.FutCode)
		}
		indexCode = code
	}

	chain, err := market.BuildChain(ctx, a.db, bt.FutCode, indexCode)
	if err != nil {
		return nil, err
	}

	var start, end time.Time
	if bt.StartDate != "" {
		if start, err = dateutil.Parse(bt.StartDate); err != nil {
			return nil, err
		}
	}
	if bt.EndDate != "" {
		if end, err = dateutil.Parse(bt.EndDate); err != nil {
			return nil, err
		}
	}
	feed, err := market.NewFeed(chain, start, end)
	if err != nil {
		return nil, err
	}

	marginRate, err := a.resolveMarginRate(ctx, feed)
	if err != nil {
		return nil, err
	}

	strat, err := strategy.New(a.cfg.Strategy, chain)
	if err != nil {
		return nil, err
	}
	acct := account.NewAccount(bt.InitialCapital, marginRate, bt.CommissionRate, bt.ExecutionPriceField)

	result, err := backtest.New(feed, strat, acct).Run(ctx)
	if err != nil {
		return nil, err
	}

	run := a.persistResult(ctx, result)
	if _, err := report.NewWriter(a.cfg.Report).Write(ctx, run, result.NAVPoints, result.Trades); err != nil {
		logger.Warnf("报告生成失败（回测结果已落库）: %v", err)
	}
	return result, nil
}

// resolveMarginRate 确定本次回测的保证金率。启用 use_exchange_margin 时
// 取回测首日（或之前最近一日）的交易所多头保证金率，否则用配置值。
func (a *App) resolveMarginRate(ctx context.Context, feed *market.Feed) (float64, error) {
	bt := a.cfg.Backtest
	if !bt.UseExchangeMargin {
		return bt.MarginRate, nil
	}
	first := feed.Calendar()[0]
	rec, ok, err := a.db.MarginRateOn(ctx, bt.FutCode, first)
	if err != nil {
		return 0, fmt.Errorf("查询交易所保证金率失败: %w", err)
	}
	if !ok || rec.LongMarginRatio <= 0 {
		logger.Warnf("%s 在 %s 前无交易所保证金率记录，沿用配置值 %v",
			bt.FutCode, dateutil.Format(first), bt.MarginRate)
		return bt.MarginRate, nil
	}
	rate := rec.LongMarginRatio
	// wind 导出的保证金率为百分数（如 12.0）
	if rate > 1 {
		rate /= 100
	}
	logger.Infof("✓ 采用交易所保证金率: %s %s %.2f%%", bt.FutCode, dateutil.Format(rec.TradeDate), rate*100)
	return rate, nil
}

// persistResult 把回测结果写入结果库，落库失败只告警不中断，
// 报告仍可生成。返回用于报告的运行记录。
func (a *App) persistResult(ctx context.Context, result *backtest.Result) store.RunRecord {
	st := report.Compute(result.NAVPoints, result.Trades)
	run := store.RunRecord{
		ID:              result.RunID,
		CreatedAt:       time.Now(),
		FutCode:         result.FutCode,
		IndexCode:       result.IndexCode,
		StrategyName:    result.StrategyName,
		StartDate:       result.StartDate,
		EndDate:         result.EndDate,
		InitialCapital:  result.InitialCapital,
		FinalNAV:        result.FinalNAV,
		TotalReturn:     st.TotalReturn,
		AnnualReturn:    st.AnnualReturn,
		MaxDrawdown:     st.MaxDrawdown,
		SharpeRatio:     st.SharpeRatio,
		TradeCount:      result.TradeCount(),
		TotalCommission: result.TotalCommission,
	}
	if err := a.db.PutRun(ctx, run); err != nil {
		logger.Warnf("写入回测记录失败: %v", err)
		return run
	}
	if err := a.db.PutNAVPoints(ctx, result.NAVPoints); err != nil {
		logger.Warnf("写入净值序列失败: %v", err)
	}
	if err := a.db.PutTrades(ctx, result.Trades); err != nil {
		logger.Warnf("写入成交记录失败: %v", err)
	}
	logger.Infof("✓ 回测结果已落库: run=%s", run.ID)
	return run
}

// Report 为已落库的一次回测重新生成报告文件。
func (a *App) Report(ctx context.Context, runID string) error {
	run, ok, err := a.db.Run(ctx, runID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("回测记录不存在: %s", runID)
	}
	points, err := a.db.NAVPoints(ctx, runID)
	if err != nil {
		return err
	}
	trades, err := a.db.Trades(ctx, runID)
	if err != nil {
		return err
	}
	_, err = report.NewWriter(a.cfg.Report).Write(ctx, run, points, trades)
	return err
}

// Serve 启动回测结果查看服务，阻塞到 ctx 取消。
func (a *App) Serve(ctx context.Context) error {
	server, err := web.NewServer(web.ServerConfig{Addr: a.cfg.Web.Addr, Results: a.db})
	if err != nil {
		return err
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Start(ctx)
	})
	return group.Wait()
}
