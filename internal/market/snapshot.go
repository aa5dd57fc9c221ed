// Package market 提供行情横截面快照与按交易日推进的数据源。
package market

import (
	"fmt"
	"sort"
	"time"

	"futroll/internal/domain"
)

// Snapshot 单个交易日的行情横截面：指数日线加全部期货合约日线。
// 策略与账户通过它读取行情，不直接接触底层存储。
type Snapshot struct {
	tradeDate time.Time
	indexBar  *domain.IndexDailyBar
	quotes    map[string]*domain.FuturesDailyBar
}

// NewSnapshot 组装横截面。quotes 以合约代码为键，可为空。
func NewSnapshot(tradeDate time.Time, indexBar *domain.IndexDailyBar, quotes map[string]*domain.FuturesDailyBar) *Snapshot {
	if quotes == nil {
		quotes = make(map[string]*domain.FuturesDailyBar)
	}
	return &Snapshot{tradeDate: tradeDate, indexBar: indexBar, quotes: quotes}
}

func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot(%s, index=%.2f, futures=%d)", s.tradeDate.Format("2006-01-02"), s.IndexClose(), len(s.quotes))
}

func (s *Snapshot) TradeDate() time.Time { return s.tradeDate }

// ContractBar 取指定合约当日日线，当日无行情返回 false。
func (s *Snapshot) ContractBar(tsCode string) (*domain.FuturesDailyBar, bool) {
	bar, ok := s.quotes[tsCode]
	return bar, ok
}

// FuturesPrice 取指定合约当日某字段价格。合约无行情或字段未知返回 false。
func (s *Snapshot) FuturesPrice(tsCode, field string) (float64, bool) {
	bar, ok := s.quotes[tsCode]
	if !ok {
		return 0, false
	}
	return bar.Price(field)
}

// IndexClose 现货指数收盘价。
func (s *Snapshot) IndexClose() float64 {
	if s.indexBar == nil {
		return 0
	}
	return s.indexBar.Close
}

// Basis 指定合约的基差。relative 为真返回 (F-S)/S，否则返回 F-S。
// 首选 priceField，取不到或非正时退回收盘价；仍无效返回 false。
func (s *Snapshot) Basis(tsCode string, relative bool, priceField string) (float64, bool) {
	futPrice, ok := s.FuturesPrice(tsCode, priceField)
	if !ok || futPrice <= 0 {
		futPrice, ok = s.FuturesPrice(tsCode, domain.FieldClose)
	}
	if !ok || futPrice <= 0 {
		return 0, false
	}
	spot := s.IndexClose()
	if spot <= 0 {
		return 0, false
	}
	if relative {
		return (futPrice - spot) / spot, true
	}
	return futPrice - spot, true
}

// AvailableContracts 当日有行情的合约代码，字典序。
func (s *Snapshot) AvailableContracts() []string {
	codes := make([]string, 0, len(s.quotes))
	for code := range s.quotes {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// SignalSnapshot 盘前信号视图：在当日横截面之上附带前一交易日行情，
// 供换月流动性比较使用（决策只能看前一日的量仓，避免用到未来数据）。
type SignalSnapshot struct {
	*Snapshot
	prevQuotes map[string]*domain.FuturesDailyBar
}

// NewSignalSnapshot 组装信号视图。prevQuotes 为前一交易日的合约日线，可为空。
func NewSignalSnapshot(snap *Snapshot, prevQuotes map[string]*domain.FuturesDailyBar) *SignalSnapshot {
	if prevQuotes == nil {
		prevQuotes = make(map[string]*domain.FuturesDailyBar)
	}
	return &SignalSnapshot{Snapshot: snap, prevQuotes: prevQuotes}
}

// PrevVolume 前一交易日成交量，无行情返回 0。
func (s *SignalSnapshot) PrevVolume(tsCode string) float64 {
	if bar, ok := s.prevQuotes[tsCode]; ok {
		return bar.Volume
	}
	return 0
}

// PrevOI 前一交易日持仓量，无行情返回 0。
func (s *SignalSnapshot) PrevOI(tsCode string) float64 {
	if bar, ok := s.prevQuotes[tsCode]; ok {
		return bar.OpenInterest
	}
	return 0
}
