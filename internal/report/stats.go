// Package report 计算绩效指标并输出图表、markdown 摘要与可选 PNG。
package report

import (
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"futroll/internal/account"
	"futroll/internal/store"
)

// TradingDaysPerYear 年化用的交易日数，沿用中金所口径。
const TradingDaysPerYear = 244

// Stats 一次回测的绩效汇总。回撤与收益均为小数（-0.02 即 -2%）。
type Stats struct {
	Days             int
	FinalNAV         float64
	TotalReturn      float64
	AnnualReturn     float64
	AnnualVolatility float64
	SharpeRatio      float64
	MaxDrawdown      float64
	MaxDrawdownStart time.Time
	MaxDrawdownEnd   time.Time

	BenchmarkReturn float64
	BenchmarkAnnual float64
	ExcessAnnual    float64

	TradeCount      int
	RollCount       int
	WinRate         float64
	TotalCommission float64
}

// Compute 由净值序列与成交流水计算绩效。序列不足两点时只填充
// 可直接读出的字段。
func Compute(points []store.NAVPointRecord, trades []store.TradeRecord) Stats {
	st := Stats{Days: len(points), TradeCount: len(trades)}
	st.RollCount, st.WinRate, st.TotalCommission = tradeStats(trades)
	if len(points) == 0 {
		return st
	}

	last := points[len(points)-1]
	st.FinalNAV = last.NAV
	// 净值以期初资金为基准，区间收益直接读期末净值
	st.TotalReturn = last.NAV - 1
	st.BenchmarkReturn = last.BenchmarkNAV - 1
	st.AnnualReturn = annualize(st.TotalReturn, len(points))
	st.BenchmarkAnnual = annualize(st.BenchmarkReturn, len(points))
	st.ExcessAnnual = st.AnnualReturn - st.BenchmarkAnnual

	rets := dailyReturns(points)
	st.AnnualVolatility = sampleStd(rets) * math.Sqrt(TradingDaysPerYear)
	if sd := sampleStd(rets); sd > 0 {
		st.SharpeRatio = mean(rets) / sd * math.Sqrt(TradingDaysPerYear)
	}

	st.MaxDrawdown, st.MaxDrawdownStart, st.MaxDrawdownEnd = maxDrawdown(points)
	return st
}

// Drawdowns 返回与净值序列等长的回撤序列（相对历史峰值，≤0）。
func Drawdowns(points []store.NAVPointRecord) []float64 {
	out := make([]float64, len(points))
	peak := math.Inf(-1)
	for i, p := range points {
		if p.NAV > peak {
			peak = p.NAV
		}
		if peak > 0 {
			out[i] = p.NAV/peak - 1
		}
	}
	return out
}

// RollingVolatility 滚动年化波动率序列，与净值序列等长，
// 前 window 个位置为 0。窗口或样本不足时返回 nil。
func RollingVolatility(points []store.NAVPointRecord, window int) []float64 {
	if window < 2 || len(points) <= window {
		return nil
	}
	rets := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		if points[i-1].NAV > 0 {
			rets[i] = points[i].NAV/points[i-1].NAV - 1
		}
	}
	std := talib.StdDev(rets, window, 1.0)
	out := make([]float64, len(std))
	for i, s := range std {
		out[i] = s * math.Sqrt(TradingDaysPerYear)
	}
	return out
}

func annualize(total float64, days int) float64 {
	if days <= 0 || total <= -1 {
		return 0
	}
	return math.Pow(1+total, TradingDaysPerYear/float64(days)) - 1
}

func dailyReturns(points []store.NAVPointRecord) []float64 {
	if len(points) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		if points[i-1].NAV > 0 {
			rets = append(rets, points[i].NAV/points[i-1].NAV-1)
		}
	}
	return rets
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd 样本标准差（n-1），与 pandas.std 口径一致。
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

func maxDrawdown(points []store.NAVPointRecord) (float64, time.Time, time.Time) {
	var (
		maxDD    float64
		peak     = math.Inf(-1)
		peakDate time.Time
		ddStart  time.Time
		ddEnd    time.Time
	)
	for _, p := range points {
		if p.NAV > peak {
			peak = p.NAV
			peakDate = p.TradeDate
		}
		if peak <= 0 {
			continue
		}
		dd := p.NAV/peak - 1
		if dd < maxDD {
			maxDD = dd
			ddStart = peakDate
			ddEnd = p.TradeDate
		}
	}
	return maxDD, ddStart, ddEnd
}

// tradeStats 换月次数按出现 ROLL 成交的交易日计数；胜率只统计
// 产生已实现盈亏的平仓腿。
func tradeStats(trades []store.TradeRecord) (rolls int, winRate float64, commission float64) {
	rollDays := map[time.Time]bool{}
	wins, closers := 0, 0
	for _, tr := range trades {
		commission += tr.Commission
		if tr.Reason == account.ReasonRoll {
			rollDays[tr.TradeDate] = true
		}
		if tr.RealizedPnL != 0 {
			closers++
			if tr.RealizedPnL > 0 {
				wins++
			}
		}
	}
	rolls = len(rollDays)
	if closers > 0 {
		winRate = float64(wins) / float64(closers)
	}
	return rolls, winRate, commission
}
