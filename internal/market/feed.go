package market

import (
	"context"
	"fmt"
	"sort"
	"time"

	"futroll/internal/domain"
	"futroll/internal/logger"
	"futroll/internal/pkg/dateutil"
	"futroll/internal/store"
)

// 品种与现货指数的内置映射（config 未显式给出 index_code 时使用）。
var indexByFutCode = map[string]string{
	"IC": "000905.SH", // 中证500
	"IM": "000852.SH", // 中证1000
	"IF": "000300.SH", // 沪深300
}

var indexNames = map[string]string{
	"000905.SH": "CSI500",
	"000852.SH": "CSI1000",
	"000300.SH": "CSI300",
}

// DefaultIndexFor 按品种代码推导现货指数代码。
func DefaultIndexFor(futCode string) (string, bool) {
	code, ok := indexByFutCode[futCode]
	return code, ok
}

// IndexName 指数代码对应的英文简称，未知代码原样返回。
func IndexName(indexCode string) string {
	if name, ok := indexNames[indexCode]; ok {
		return name
	}
	return indexCode
}

// BuildChain 从存储加载一个品种的全部合约与日线，组装成合约链。
// 指数日线为空视为数据未导入，直接报错。
func BuildChain(ctx context.Context, st store.MarketStore, futCode, indexCode string) (*domain.ContractChain, error) {
	idxBars, err := st.IndexBars(ctx, indexCode)
	if err != nil {
		return nil, fmt.Errorf("加载指数日线失败: %w", err)
	}
	if len(idxBars) == 0 {
		return nil, fmt.Errorf("指数 %s 无日线数据，请先导入行情", indexCode)
	}
	index := domain.NewEquityIndex(indexCode, IndexName(indexCode))
	for i := range idxBars {
		bar := idxBars[i].IndexDailyBar
		index.AddBar(&bar)
	}

	recs, err := st.Contracts(ctx, futCode)
	if err != nil {
		return nil, fmt.Errorf("加载合约信息失败: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("品种 %s 无合约信息，请先导入行情", futCode)
	}

	chain := domain.NewContractChain(futCode, index)
	totalBars := 0
	for _, rec := range recs {
		contract := domain.NewContract(rec.TsCode, rec.FutCode, rec.Multiplier, rec.ListDate, rec.DelistDate)
		if !rec.LastDDate.IsZero() {
			contract.LastDDate = rec.LastDDate
		}
		if rec.Name != "" {
			contract.Name = rec.Name
		}
		bars, err := st.FuturesBars(ctx, rec.TsCode)
		if err != nil {
			return nil, fmt.Errorf("加载合约 %s 日线失败: %w", rec.TsCode, err)
		}
		for i := range bars {
			bar := bars[i].FuturesDailyBar
			contract.AddBar(&bar)
		}
		totalBars += len(bars)
		chain.Add(contract)
	}
	logger.Infof("✓ 合约链加载完成: %s 合约 %d 个, 日线 %d 条, 指数 %s 日线 %d 条",
		futCode, chain.Len(), totalBars, indexCode, len(idxBars))
	return chain, nil
}

// Feed 按交易日推进的行情源。以指数交易日为时间轴，
// 为每个交易日预组装期货横截面，回测循环按序取快照。
type Feed struct {
	chain    *domain.ContractChain
	allDates []time.Time            // 指数全部交易日，升序
	calendar []time.Time            // 回测区间内的交易日
	quotes   map[time.Time]map[string]*domain.FuturesDailyBar
}

// NewFeed 构建行情源。start/end 为零值时各自不设边界。
// 区间内没有任何交易日时报错。
func NewFeed(chain *domain.ContractChain, start, end time.Time) (*Feed, error) {
	if chain.Index == nil {
		return nil, fmt.Errorf("合约链缺少指数数据")
	}
	allDates := chain.Index.TradingDates()
	calendar := make([]time.Time, 0, len(allDates))
	for _, d := range allDates {
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			continue
		}
		calendar = append(calendar, d)
	}
	if len(calendar) == 0 {
		return nil, fmt.Errorf("区间 %s ~ %s 内无交易日", boundLabel(start), boundLabel(end))
	}

	quotes := make(map[time.Time]map[string]*domain.FuturesDailyBar)
	for _, c := range chain.Contracts() {
		for _, d := range c.TradingDates() {
			bar, ok := c.Bar(d)
			if !ok {
				continue
			}
			m, exists := quotes[d]
			if !exists {
				m = make(map[string]*domain.FuturesDailyBar)
				quotes[d] = m
			}
			m[c.TsCode] = bar
		}
	}

	return &Feed{chain: chain, allDates: allDates, calendar: calendar, quotes: quotes}, nil
}

func (f *Feed) Chain() *domain.ContractChain { return f.chain }

// Calendar 回测区间内的交易日序列，升序。
func (f *Feed) Calendar() []time.Time { return f.calendar }

// SnapshotAt 取指定交易日的行情横截面。该日不是指数交易日返回 false。
func (f *Feed) SnapshotAt(d time.Time) (*Snapshot, bool) {
	idxBar, ok := f.chain.Index.Bar(d)
	if !ok {
		return nil, false
	}
	return NewSnapshot(d, idxBar, f.quotes[d]), true
}

// SignalAt 取指定交易日的盘前信号视图，前一交易日行情按指数全历史回溯，
// 即使回测起点是历史第一天之后，首日也能取到滞后量仓。
func (f *Feed) SignalAt(d time.Time) (*SignalSnapshot, bool) {
	snap, ok := f.SnapshotAt(d)
	if !ok {
		return nil, false
	}
	var prev map[string]*domain.FuturesDailyBar
	if pd, ok := f.prevTradingDate(d); ok {
		prev = f.quotes[pd]
	}
	return NewSignalSnapshot(snap, prev), true
}

// prevTradingDate 指数日历上 d 的前一个交易日。
func (f *Feed) prevTradingDate(d time.Time) (time.Time, bool) {
	i := sort.Search(len(f.allDates), func(i int) bool { return !f.allDates[i].Before(d) })
	if i == 0 {
		return time.Time{}, false
	}
	return f.allDates[i-1], true
}

func boundLabel(d time.Time) string {
	if d.IsZero() {
		return "不限"
	}
	return dateutil.Format(d)
}
