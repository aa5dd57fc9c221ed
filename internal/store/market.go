// Package store 定义行情与回测结果的存储抽象，并提供内存实现。
// sqlite 实现见 internal/gateway/database。
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"futroll/internal/domain"
)

// ContractRecord 合约基础信息，一行对应 tushare fut_basic 一条。
type ContractRecord struct {
	TsCode     string
	FutCode    string
	Name       string
	Multiplier float64
	ListDate   time.Time
	DelistDate time.Time
	LastDDate  time.Time
}

// FuturesBarRecord 期货日线，一行对应一合约一交易日。
type FuturesBarRecord struct {
	TsCode string
	domain.FuturesDailyBar
}

// IndexBarRecord 指数日线。
type IndexBarRecord struct {
	IndexCode string
	domain.IndexDailyBar
}

// MarginRateRecord 交易所保证金率（按品种按日，数据可能稀疏）。
type MarginRateRecord struct {
	FutCode          string
	TradeDate        time.Time
	LongMarginRatio  float64
	ShortMarginRatio float64
}

// MarketStore 行情存储抽象：写入按批、读取按品种或合约整段返回。
type MarketStore interface {
	PutContracts(ctx context.Context, recs []ContractRecord) error
	Contracts(ctx context.Context, futCode string) ([]ContractRecord, error)
	PutFuturesBars(ctx context.Context, recs []FuturesBarRecord) error
	FuturesBars(ctx context.Context, tsCode string) ([]FuturesBarRecord, error)
	PutIndexBars(ctx context.Context, recs []IndexBarRecord) error
	IndexBars(ctx context.Context, indexCode string) ([]IndexBarRecord, error)
	PutMarginRates(ctx context.Context, recs []MarginRateRecord) error
	// MarginRateOn 取 d 当日或之前最近一条保证金率，无记录返回 ok=false。
	MarginRateOn(ctx context.Context, futCode string, d time.Time) (MarginRateRecord, bool, error)
}

// MemoryMarketStore 内存实现，测试与小数据集使用。
type MemoryMarketStore struct {
	mu          sync.RWMutex
	contracts   map[string]ContractRecord            // ts_code -> record
	futuresBars map[string]map[time.Time]FuturesBarRecord
	indexBars   map[string]map[time.Time]IndexBarRecord
	marginRates map[string][]MarginRateRecord // fut_code -> 按日期升序
}

func NewMemoryMarketStore() *MemoryMarketStore {
	return &MemoryMarketStore{
		contracts:   make(map[string]ContractRecord),
		futuresBars: make(map[string]map[time.Time]FuturesBarRecord),
		indexBars:   make(map[string]map[time.Time]IndexBarRecord),
		marginRates: make(map[string][]MarginRateRecord),
	}
}

func (s *MemoryMarketStore) PutContracts(ctx context.Context, recs []ContractRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if r.TsCode == "" {
			return errors.New("合约代码不能为空")
		}
		s.contracts[r.TsCode] = r
	}
	return nil
}

// Contracts 按品种取合约，按 ts_code 排序返回拷贝。
func (s *MemoryMarketStore) Contracts(ctx context.Context, futCode string) ([]ContractRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ContractRecord, 0)
	for _, r := range s.contracts {
		if r.FutCode == futCode {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TsCode < out[j].TsCode })
	return out, nil
}

func (s *MemoryMarketStore) PutFuturesBars(ctx context.Context, recs []FuturesBarRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if r.TsCode == "" {
			return errors.New("合约代码不能为空")
		}
		m, ok := s.futuresBars[r.TsCode]
		if !ok {
			m = make(map[time.Time]FuturesBarRecord)
			s.futuresBars[r.TsCode] = m
		}
		m[r.TradeDate] = r
	}
	return nil
}

// FuturesBars 取单合约全部日线，按日期升序返回拷贝。
func (s *MemoryMarketStore) FuturesBars(ctx context.Context, tsCode string) ([]FuturesBarRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.futuresBars[tsCode]
	out := make([]FuturesBarRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

func (s *MemoryMarketStore) PutIndexBars(ctx context.Context, recs []IndexBarRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if r.IndexCode == "" {
			return errors.New("指数代码不能为空")
		}
		m, ok := s.indexBars[r.IndexCode]
		if !ok {
			m = make(map[time.Time]IndexBarRecord)
			s.indexBars[r.IndexCode] = m
		}
		m[r.TradeDate] = r
	}
	return nil
}

// IndexBars 取单指数全部日线，按日期升序返回拷贝。
func (s *MemoryMarketStore) IndexBars(ctx context.Context, indexCode string) ([]IndexBarRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := s.indexBars[indexCode]
	out := make([]IndexBarRecord, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

// PutMarginRates 同品种同日重复写入时覆盖旧值。
func (s *MemoryMarketStore) PutMarginRates(ctx context.Context, recs []MarginRateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if r.FutCode == "" {
			return errors.New("品种代码不能为空")
		}
		rs := s.marginRates[r.FutCode]
		replaced := false
		for i := range rs {
			if rs[i].TradeDate.Equal(r.TradeDate) {
				rs[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			rs = append(rs, r)
		}
		sort.Slice(rs, func(i, j int) bool { return rs[i].TradeDate.Before(rs[j].TradeDate) })
		s.marginRates[r.FutCode] = rs
	}
	return nil
}

func (s *MemoryMarketStore) MarginRateOn(ctx context.Context, futCode string, d time.Time) (MarginRateRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rs := s.marginRates[futCode]
	for i := len(rs) - 1; i >= 0; i-- {
		if !rs[i].TradeDate.After(d) {
			return rs[i], true, nil
		}
	}
	return MarginRateRecord{}, false, nil
}
