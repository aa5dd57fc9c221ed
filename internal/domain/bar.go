package domain

import "time"

// 行情价格字段名，与 tushare 期货日线字段保持一致。
const (
	FieldOpen      = "open"
	FieldHigh      = "high"
	FieldLow       = "low"
	FieldClose     = "close"
	FieldSettle    = "settle"
	FieldPreClose  = "pre_close"
	FieldPreSettle = "pre_settle"
)

// FuturesDailyBar 期货日线（一合约一交易日一条，构造后不再修改）。
type FuturesDailyBar struct {
	TradeDate    time.Time
	PreClose     float64
	PreSettle    float64
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Settle       float64
	Volume       float64
	Amount       float64
	OpenInterest float64
	OIChange     float64
}

// Price 按字段名取价。未知字段返回 ok=false；0 值不视为缺失。
func (b *FuturesDailyBar) Price(field string) (float64, bool) {
	if b == nil {
		return 0, false
	}
	switch field {
	case FieldOpen:
		return b.Open, true
	case FieldHigh:
		return b.High, true
	case FieldLow:
		return b.Low, true
	case FieldClose:
		return b.Close, true
	case FieldSettle:
		return b.Settle, true
	case FieldPreClose:
		return b.PreClose, true
	case FieldPreSettle:
		return b.PreSettle, true
	}
	return 0, false
}

// IndexDailyBar 指数日线。
type IndexDailyBar struct {
	TradeDate time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
}
