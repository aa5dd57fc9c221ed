// Package account 实现资金账户：现金、持仓、逐日盯市与调仓成交。
// 回测为单线程驱动，本包不做并发保护。
package account

import (
	"math"
	"sort"
	"time"

	"futroll/internal/domain"
	"futroll/internal/logger"
	"futroll/internal/pkg/dateutil"
)

// PriceSource 调仓执行所需的最小行情读取接口，
// 由 market.Snapshot 与 market.SignalSnapshot 实现。
type PriceSource interface {
	TradeDate() time.Time
	FuturesPrice(tsCode, field string) (float64, bool)
}

// Account 资金账户。权益 = 现金 + 浮动盈亏；
// 期货逐日结算，每日盯市后浮动盈亏归零、盈亏落入现金。
type Account struct {
	InitialCapital      float64
	MarginRate          float64
	CommissionRate      float64
	ExecutionPriceField string

	Cash          float64
	RealizedPnL   float64 // 平仓实现盈亏累计，仅作统计，不直接进现金
	UnrealizedPnL float64

	positions  map[string]*Position
	navHistory map[time.Time]float64
	trades     []TradeRecord
}

// NewAccount 按初始资金与费率建账。
func NewAccount(initialCapital, marginRate, commissionRate float64, executionPriceField string) *Account {
	return &Account{
		InitialCapital:      initialCapital,
		MarginRate:          marginRate,
		CommissionRate:      commissionRate,
		ExecutionPriceField: executionPriceField,
		Cash:                initialCapital,
		positions:           make(map[string]*Position),
		navHistory:          make(map[time.Time]float64),
	}
}

// Equity 账户权益 = 现金 + 浮动盈亏。
func (a *Account) Equity() float64 { return a.Cash + a.UnrealizedPnL }

// NAV 单位净值 = 权益 / 初始资金。
func (a *Account) NAV() float64 { return a.Equity() / a.InitialCapital }

// MarkToMarket 对全部持仓逐日盯市，当日盈亏结算进现金，返回当日总盈亏。
// 结算后浮动盈亏归零。按合约代码排序累加，重跑结果逐位一致。
func (a *Account) MarkToMarket(d time.Time) float64 {
	dailyPnL := 0.0
	for _, tsCode := range a.HoldingCodes() {
		dailyPnL += a.positions[tsCode].MarkToMarket(d)
	}
	a.Cash += dailyPnL
	a.UnrealizedPnL = 0
	return dailyPnL
}

// RequiredMargin 全部持仓占用保证金 = Σ 名义金额 * 保证金率。
// 只作记录与观察，不强制检查资金是否足够。
func (a *Account) RequiredMargin(d time.Time) float64 {
	total := 0.0
	for _, tsCode := range a.HoldingCodes() {
		total += a.positions[tsCode].NotionalValue(d) * a.MarginRate
	}
	return total
}

// AvailableMargin 可用保证金 = 现金 - 占用保证金。
func (a *Account) AvailableMargin(d time.Time) float64 {
	return a.Cash - a.RequiredMargin(d)
}

// GetPosition 按合约代码取持仓，未持有返回 nil。
func (a *Account) GetPosition(tsCode string) *Position {
	return a.positions[tsCode]
}

// PositionVolume 按合约代码取持仓手数，未持有返回 0。
func (a *Account) PositionVolume(tsCode string) int {
	if pos, ok := a.positions[tsCode]; ok {
		return pos.Volume
	}
	return 0
}

func (a *Account) PositionCount() int { return len(a.positions) }

// HoldingCodes 当前持仓合约代码，按字典序返回。
func (a *Account) HoldingCodes() []string {
	codes := make([]string, 0, len(a.positions))
	for code := range a.positions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// RebalanceToTarget 把持仓调整到目标手数，返回总手续费。
// 分两步：先平掉目标之外(或目标为 0)的持仓，再按差额开仓或加减仓。
// 开仓腿缺合约或缺执行价时告警并跳过，不中断回测；
// 平仓腿缺执行价时退回 last_settle 成交，保证总能平掉。
// 两步均按合约代码排序遍历，同样输入产生同样的成交序列。
func (a *Account) RebalanceToTarget(targets map[string]int, src PriceSource, chain *domain.ContractChain, reason string) float64 {
	tradeDate := src.TradeDate()
	totalCommission := 0.0

	for _, tsCode := range a.HoldingCodes() {
		if target, ok := targets[tsCode]; !ok || target == 0 {
			totalCommission += a.closePosition(tsCode, src, reason)
		}
	}

	codes := make([]string, 0, len(targets))
	for code := range targets {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, tsCode := range codes {
		target := targets[tsCode]
		if target == 0 {
			continue
		}
		delta := target - a.PositionVolume(tsCode)
		if delta == 0 {
			continue
		}

		contract, ok := chain.Get(tsCode)
		if !ok {
			logger.Warnf("调仓跳过: 合约不存在 %s", tsCode)
			continue
		}
		price, ok := src.FuturesPrice(tsCode, a.ExecutionPriceField)
		if !ok {
			logger.Warnf("调仓跳过: %s 在 %s 无 %s 价", tsCode, dateutil.Format(tradeDate), a.ExecutionPriceField)
			continue
		}
		totalCommission += a.executeTrade(contract, delta, price, tradeDate, reason)
	}

	return totalCommission
}

// executeTrade 执行一笔成交：先扣手续费，再更新持仓并记录成交。
// 平仓实现的盈亏只累计进 RealizedPnL，现金变动由逐日盯市完成。
func (a *Account) executeTrade(contract *domain.FuturesContract, volume int, price float64, tradeDate time.Time, reason string) float64 {
	tsCode := contract.TsCode
	amount := math.Abs(float64(volume) * price * contract.Multiplier)
	commission := amount * a.CommissionRate
	a.Cash -= commission

	realized := 0.0
	if pos, ok := a.positions[tsCode]; ok {
		realized = pos.UpdateVolume(volume, price)
		a.RealizedPnL += realized
		if pos.Volume == 0 {
			delete(a.positions, tsCode)
		}
	} else {
		a.positions[tsCode] = NewPosition(contract, volume, price)
	}

	direction := DirectionBuy
	if volume < 0 {
		direction = DirectionSell
	}
	a.trades = append(a.trades, TradeRecord{
		TradeDate:   tradeDate,
		TsCode:      tsCode,
		Direction:   direction,
		Volume:      abs(volume),
		Price:       price,
		Amount:      amount,
		Commission:  commission,
		Reason:      reason,
		RealizedPnL: realized,
	})
	return commission
}

// closePosition 全平指定合约。缺执行价时按 last_settle 成交。
func (a *Account) closePosition(tsCode string, src PriceSource, reason string) float64 {
	pos, ok := a.positions[tsCode]
	if !ok {
		return 0
	}
	price, ok := src.FuturesPrice(tsCode, a.ExecutionPriceField)
	if !ok {
		price = pos.LastSettle
	}
	return a.executeTrade(pos.Contract, -pos.Volume, price, src.TradeDate(), reason)
}

// RecordNAV 记录当日净值。
func (a *Account) RecordNAV(d time.Time) {
	a.navHistory[d] = a.NAV()
}

// NAVSeries 净值序列，按日期升序。
func (a *Account) NAVSeries() []domain.NAVPoint {
	dates := make([]time.Time, 0, len(a.navHistory))
	for d := range a.navHistory {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	series := make([]domain.NAVPoint, 0, len(dates))
	for _, d := range dates {
		series = append(series, domain.NAVPoint{Date: d, Value: a.navHistory[d]})
	}
	return series
}

// Trades 全部成交记录，按成交先后排列。
func (a *Account) Trades() []TradeRecord { return a.trades }
