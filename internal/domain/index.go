package domain

import (
	"sort"
	"time"
)

// EquityIndex 标的指数：基准收益与升贴水计算的现货腿。
type EquityIndex struct {
	IndexCode string
	Name      string

	bars map[time.Time]*IndexDailyBar
}

func NewEquityIndex(indexCode, name string) *EquityIndex {
	return &EquityIndex{
		IndexCode: indexCode,
		Name:      name,
		bars:      make(map[time.Time]*IndexDailyBar),
	}
}

func (x *EquityIndex) AddBar(b *IndexDailyBar) {
	if b == nil {
		return
	}
	x.bars[b.TradeDate] = b
}

// Bar 返回指定交易日的指数日线。
func (x *EquityIndex) Bar(d time.Time) (*IndexDailyBar, bool) {
	b, ok := x.bars[d]
	return b, ok
}

// Close 指数收盘价，无数据时 ok=false。
func (x *EquityIndex) Close(d time.Time) (float64, bool) {
	b, ok := x.bars[d]
	if !ok {
		return 0, false
	}
	return b.Close, true
}

// TradingDates 指数交易日历，升序。回测日循环以此为时间轴。
func (x *EquityIndex) TradingDates() []time.Time {
	out := make([]time.Time, 0, len(x.bars))
	for d := range x.bars {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// NAVPoint 归一化净值点。
type NAVPoint struct {
	Date  time.Time
	Value float64
}

// NAVSeries 区间内以首个收盘价归一的指数净值序列（首值为 1）。
func (x *EquityIndex) NAVSeries(from, to time.Time) []NAVPoint {
	var out []NAVPoint
	base := 0.0
	for _, d := range x.TradingDates() {
		if d.Before(from) || d.After(to) {
			continue
		}
		c, ok := x.Close(d)
		if !ok {
			continue
		}
		if base == 0 {
			base = c
		}
		if base <= 0 {
			return nil
		}
		out = append(out, NAVPoint{Date: d, Value: c / base})
	}
	return out
}
