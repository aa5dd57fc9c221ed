// Package backtest 实现逐日回放引擎。
// 严格单线程：快照、决策、调仓、盯市、记净值依次完成后才进入下一交易日，
// 因为盯市依赖持仓上一日结算价的就地更新，日与日之间不可重叠。
package backtest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"futroll/internal/account"
	"futroll/internal/logger"
	"futroll/internal/market"
	"futroll/internal/pkg/dateutil"
	"futroll/internal/store"
	"futroll/internal/strategy"
)

// Engine 回测引擎。依赖全部由调用方装配，Run 可重复调用但账户状态不重置，
// 一次回测对应一个新建的 Engine。
type Engine struct {
	feed  *market.Feed
	strat strategy.Strategy
	acct  *account.Account
}

func New(feed *market.Feed, strat strategy.Strategy, acct *account.Account) *Engine {
	return &Engine{feed: feed, strat: strat, acct: acct}
}

// Run 按交易日推进回测。ctx 取消时在日边界停止并返回错误。
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	calendar := e.feed.Calendar()
	if len(calendar) == 0 {
		return nil, fmt.Errorf("交易日历为空")
	}
	chain := e.feed.Chain()
	runID := uuid.NewString()

	logger.Infof("回测开始: run=%s 策略=%s 品种=%s 区间=%s~%s 交易日=%d",
		runID, e.strat.Name(), chain.FutCode,
		dateutil.Format(calendar[0]), dateutil.Format(calendar[len(calendar)-1]), len(calendar))

	baseIndexClose, ok := chain.Index.Close(calendar[0])
	if !ok || baseIndexClose <= 0 {
		return nil, fmt.Errorf("基准指数在 %s 无收盘价", dateutil.Format(calendar[0]))
	}

	result := &Result{
		RunID:          runID,
		StrategyName:   e.strat.Name(),
		FutCode:        chain.FutCode,
		IndexCode:      chain.Index.IndexCode,
		StartDate:      calendar[0],
		EndDate:        calendar[len(calendar)-1],
		InitialCapital: e.acct.InitialCapital,
		NAVPoints:      make([]store.NAVPointRecord, 0, len(calendar)),
	}

	for _, d := range calendar {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("回测在 %s 被取消: %w", dateutil.Format(d), err)
		}

		sig, ok := e.feed.SignalAt(d)
		if !ok {
			logger.Warnf("%s 无法构建快照，跳过", dateutil.Format(d))
			continue
		}

		targets := e.strat.OnBar(sig, e.acct)
		reason := tradeReason(e.acct, targets)
		result.TotalCommission += e.acct.RebalanceToTarget(targets, sig, chain, reason)

		dailyPnL := e.acct.MarkToMarket(d)
		e.acct.RecordNAV(d)

		benchNAV := 0.0
		if c, ok := chain.Index.Close(d); ok {
			benchNAV = c / baseIndexClose
		}
		marginUsage := 0.0
		if equity := e.acct.Equity(); equity > 0 {
			marginUsage = e.acct.RequiredMargin(d) / equity
		}
		result.NAVPoints = append(result.NAVPoints, store.NAVPointRecord{
			RunID:        runID,
			TradeDate:    d,
			NAV:          e.acct.NAV(),
			BenchmarkNAV: benchNAV,
			MarginUsage:  marginUsage,
		})

		logger.Debugf("%s nav=%.4f 当日盈亏=%.0f 持仓=%v",
			dateutil.Format(d), e.acct.NAV(), dailyPnL, e.acct.HoldingCodes())
	}

	for _, t := range e.acct.Trades() {
		result.Trades = append(result.Trades, store.TradeRecord{
			RunID:       runID,
			TradeDate:   t.TradeDate,
			TsCode:      t.TsCode,
			Direction:   t.Direction,
			Volume:      t.Volume,
			Price:       t.Price,
			Amount:      t.Amount,
			Commission:  t.Commission,
			Reason:      t.Reason,
			RealizedPnL: t.RealizedPnL,
		})
	}
	result.FinalNAV = e.acct.NAV()
	result.RealizedPnL = e.acct.RealizedPnL

	logger.Infof("✓ 回测完成: run=%s 期末净值=%.4f 成交=%d 笔 手续费=%.0f",
		runID, result.FinalNAV, result.TradeCount(), result.TotalCommission)
	return result, nil
}

// tradeReason 按目标与当前持仓的差异推断本次调仓的原因标签。
// 同时有平旧开新为换月；空仓起步建仓为开仓；只平不开为清仓；其余为再平衡。
func tradeReason(acct *account.Account, targets map[string]int) string {
	closing, opening := false, false
	for _, code := range acct.HoldingCodes() {
		if v, ok := targets[code]; !ok || v == 0 {
			closing = true
		}
	}
	for code, v := range targets {
		if v != 0 && acct.PositionVolume(code) == 0 {
			opening = true
		}
	}
	switch {
	case closing && opening:
		return account.ReasonRoll
	case opening && acct.PositionCount() == 0:
		return account.ReasonOpen
	case closing:
		return account.ReasonClose
	default:
		return account.ReasonRebalance
	}
}
