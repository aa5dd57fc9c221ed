package domain

import (
	"sort"
	"time"

	"futroll/internal/pkg/dateutil"
)

// FuturesContract 单个期货合约：身份由 TsCode 唯一确定，
// 日线随数据加载追加，其余字段构造后不变。
type FuturesContract struct {
	TsCode     string
	FutCode    string
	Multiplier float64
	ListDate   time.Time
	DelistDate time.Time
	LastDDate  time.Time // 最后交割日，缺省取 DelistDate
	Name       string

	bars map[time.Time]*FuturesDailyBar
}

// NewContract 构造合约并补默认值。要求 ListDate <= DelistDate。
func NewContract(tsCode, futCode string, multiplier float64, listDate, delistDate time.Time) *FuturesContract {
	c := &FuturesContract{
		TsCode:     tsCode,
		FutCode:    futCode,
		Multiplier: multiplier,
		ListDate:   listDate,
		DelistDate: delistDate,
		LastDDate:  delistDate,
		Name:       tsCode,
		bars:       make(map[time.Time]*FuturesDailyBar),
	}
	return c
}

// AddBar 追加/覆盖一条日线。
func (c *FuturesContract) AddBar(b *FuturesDailyBar) {
	if b == nil {
		return
	}
	c.bars[b.TradeDate] = b
}

// Bar 返回指定交易日的日线，不存在时 ok=false。
func (c *FuturesContract) Bar(d time.Time) (*FuturesDailyBar, bool) {
	b, ok := c.bars[d]
	return b, ok
}

// IsListed 上市判断：d >= ListDate。
func (c *FuturesContract) IsListed(d time.Time) bool { return !d.Before(c.ListDate) }

// IsExpired 摘牌判断：d > DelistDate。
func (c *FuturesContract) IsExpired(d time.Time) bool { return d.After(c.DelistDate) }

// IsTradable 可交易窗口：ListDate <= d <= DelistDate。
func (c *FuturesContract) IsTradable(d time.Time) bool {
	return c.IsListed(d) && !c.IsExpired(d)
}

// GetPrice 取指定交易日某价格字段；无日线或未知字段时 ok=false。
func (c *FuturesContract) GetPrice(d time.Time, field string) (float64, bool) {
	b, ok := c.bars[d]
	if !ok {
		return 0, false
	}
	return b.Price(field)
}

// DaysToExpiry 距摘牌的自然日天数（已过期为负）。
func (c *FuturesContract) DaysToExpiry(d time.Time) int {
	return dateutil.DaysBetween(d, c.DelistDate)
}

// GetVolume 当日成交量，无日线时为 0。
func (c *FuturesContract) GetVolume(d time.Time) float64 {
	if b, ok := c.bars[d]; ok {
		return b.Volume
	}
	return 0
}

// GetOpenInterest 当日持仓量，无日线时为 0。
func (c *FuturesContract) GetOpenInterest(d time.Time) float64 {
	if b, ok := c.bars[d]; ok {
		return b.OpenInterest
	}
	return 0
}

// TradingDates 已加载日线的交易日，升序。
func (c *FuturesContract) TradingDates() []time.Time {
	out := make([]time.Time, 0, len(c.bars))
	for d := range c.bars {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
