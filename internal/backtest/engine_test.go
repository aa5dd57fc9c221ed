package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futroll/internal/account"
	"futroll/internal/config"
	"futroll/internal/domain"
	"futroll/internal/market"
	"futroll/internal/pkg/dateutil"
	"futroll/internal/strategy"
)

// 两合约五交易日的固定剧本：
//   0115 初始建仓 IC2401 10 手
//   0117 候选前日量 40000 > 25000，流动性换月到 IC2402 9 手
//   0118 起 IC2401 距到期不足 min_roll_days，无候选，持有到结束
func demoChain() *domain.ContractChain {
	index := domain.NewEquityIndex("000905.SH", "CSI500")
	for date, close := range map[string]float64{
		"20240115": 5000, "20240116": 5010, "20240117": 4990,
		"20240118": 5020, "20240119": 5030,
	} {
		index.AddBar(&domain.IndexDailyBar{TradeDate: dateutil.MustParse(date), Close: close})
	}

	a := domain.NewContract("IC2401.CFX", "IC", 200,
		dateutil.MustParse("20230821"), dateutil.MustParse("20240119"))
	addBar := func(c *domain.FuturesContract, date string, open, settle, volume float64) {
		c.AddBar(&domain.FuturesDailyBar{
			TradeDate: dateutil.MustParse(date),
			Open:      open, Close: settle, Settle: settle, Volume: volume,
		})
	}
	addBar(a, "20240115", 5000, 5005, 30000)
	addBar(a, "20240116", 5008, 5010, 25000)
	addBar(a, "20240117", 5012, 5015, 20000)
	addBar(a, "20240118", 5016, 5018, 10000)
	addBar(a, "20240119", 5020, 5022, 5000)

	b := domain.NewContract("IC2402.CFX", "IC", 200,
		dateutil.MustParse("20230918"), dateutil.MustParse("20240218"))
	addBar(b, "20240115", 5040, 5045, 20000)
	addBar(b, "20240116", 5048, 5050, 40000)
	addBar(b, "20240117", 5052, 5055, 45000)
	addBar(b, "20240118", 5058, 5060, 46000)
	addBar(b, "20240119", 5062, 5065, 47000)

	chain := domain.NewContractChain("IC", index)
	chain.Add(a)
	chain.Add(b)
	return chain
}

func demoEngine(t *testing.T) *Engine {
	t.Helper()
	chain := demoChain()
	feed, err := market.NewFeed(chain, time.Time{}, time.Time{})
	require.NoError(t, err)

	strat, err := strategy.New(config.StrategyConfig{
		Name:                 "smart_roll",
		RollDaysBeforeExpiry: 1,
		MinRollDays:          2,
		RollCriteria:         "volume",
		TargetLeverage:       1.0,
		ContractSelection:    "nearby",
		SignalPriceField:     "open",
	}, chain)
	require.NoError(t, err)

	acct := account.NewAccount(10_000_000, 0.12, 0.00023, "open")
	return New(feed, strat, acct)
}

func TestEngineRunScript(t *testing.T) {
	result, err := demoEngine(t).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.NAVPoints, 5)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, dateutil.MustParse("20240115"), result.StartDate)
	assert.Equal(t, dateutil.MustParse("20240119"), result.EndDate)

	// 成交剧本: 开仓买 IC2401，换月日先卖旧再买新
	trades := result.Trades
	require.Len(t, trades, 3)
	assert.Equal(t, "IC2401.CFX", trades[0].TsCode)
	assert.Equal(t, account.DirectionBuy, trades[0].Direction)
	assert.Equal(t, 10, trades[0].Volume)
	assert.Equal(t, account.ReasonOpen, trades[0].Reason)

	assert.Equal(t, "IC2401.CFX", trades[1].TsCode)
	assert.Equal(t, account.DirectionSell, trades[1].Direction)
	assert.Equal(t, dateutil.MustParse("20240117"), trades[1].TradeDate)
	assert.Equal(t, account.ReasonRoll, trades[1].Reason)
	// 平仓价 5012，开仓价 5000
	assert.InDelta(t, (5012-5000)*10*200, trades[1].RealizedPnL, 1e-9)

	assert.Equal(t, "IC2402.CFX", trades[2].TsCode)
	assert.Equal(t, account.DirectionBuy, trades[2].Direction)
	assert.Equal(t, 9, trades[2].Volume)
	assert.Equal(t, account.ReasonRoll, trades[2].Reason)

	// 手续费: 10*5000*200*0.00023 + 10*5012*200*0.00023 + 9*5052*200*0.00023
	wantCommission := 2300.0 + 2305.52 + 2091.528
	assert.InDelta(t, wantCommission, result.TotalCommission, 1e-6)
	assert.InDelta(t, (5012-5000)*10*200, result.RealizedPnL, 1e-9)

	// 逐日盯市现金流水账:
	// 0115: -2300 + (5005-5000)*10*200          = +7700
	// 0116:         (5010-5005)*10*200          = +10000
	// 0117: -2305.52 -2091.528 + (5055-5052)*9*200 = +1002.952
	// 0118:         (5060-5055)*9*200           = +9000
	// 0119:         (5065-5060)*9*200           = +9000
	wantFinal := (10_000_000 + 7700 + 10000 + 1002.952 + 9000 + 9000) / 10_000_000
	assert.InDelta(t, wantFinal, result.FinalNAV, 1e-12)
	assert.InDelta(t, wantFinal, result.NAVPoints[4].NAV, 1e-12)

	// 基准净值以首日收盘归一
	assert.InDelta(t, 1.0, result.NAVPoints[0].BenchmarkNAV, 1e-12)
	assert.InDelta(t, 5030.0/5000, result.NAVPoints[4].BenchmarkNAV, 1e-12)

	// 持仓期间保证金占用约 12%
	assert.InDelta(t, 0.12, result.NAVPoints[0].MarginUsage, 0.01)
}

func TestEngineDeterministic(t *testing.T) {
	first, err := demoEngine(t).Run(context.Background())
	require.NoError(t, err)
	second, err := demoEngine(t).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first.NAVPoints), len(second.NAVPoints))
	for i := range first.NAVPoints {
		assert.Equal(t, first.NAVPoints[i].NAV, second.NAVPoints[i].NAV, "重跑净值必须逐位一致")
	}
	assert.Equal(t, first.FinalNAV, second.FinalNAV)
	assert.Equal(t, len(first.Trades), len(second.Trades))
}

func TestEngineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := demoEngine(t).Run(ctx)
	assert.Error(t, err)
}
