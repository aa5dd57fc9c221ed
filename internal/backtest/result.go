package backtest

import (
	"time"

	"futroll/internal/store"
)

// Result 一次回测的完整产出：净值曲线、成交明细与汇总数字。
// 绩效指标由 report 包在此之上计算。
type Result struct {
	RunID           string
	StrategyName    string
	FutCode         string
	IndexCode       string
	StartDate       time.Time
	EndDate         time.Time
	InitialCapital  float64
	FinalNAV        float64
	TotalCommission float64
	RealizedPnL     float64
	NAVPoints       []store.NAVPointRecord
	Trades          []store.TradeRecord
}

// TradeCount 成交笔数。
func (r *Result) TradeCount() int { return len(r.Trades) }
