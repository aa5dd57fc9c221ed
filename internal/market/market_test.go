package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futroll/internal/domain"
	"futroll/internal/pkg/dateutil"
	"futroll/internal/store"
)

func idxBar(date string, close float64) *domain.IndexDailyBar {
	return &domain.IndexDailyBar{TradeDate: dateutil.MustParse(date), Close: close}
}

func TestSnapshotBasis(t *testing.T) {
	d := dateutil.MustParse("20240102")

	t.Run("RelativeAndAbsolute", func(t *testing.T) {
		snap := NewSnapshot(d, idxBar("20240102", 5000), map[string]*domain.FuturesDailyBar{
			"IC2401.CFX": {TradeDate: d, Open: 5100, Close: 5080},
		})

		rel, ok := snap.Basis("IC2401.CFX", true, domain.FieldOpen)
		require.True(t, ok)
		assert.InDelta(t, 0.02, rel, 1e-12)

		abs, ok := snap.Basis("IC2401.CFX", false, domain.FieldOpen)
		require.True(t, ok)
		assert.InDelta(t, 100, abs, 1e-12)
	})

	t.Run("FallsBackToClose", func(t *testing.T) {
		// 开盘价为 0（停牌样式的脏数据）时退回收盘价
		snap := NewSnapshot(d, idxBar("20240102", 5000), map[string]*domain.FuturesDailyBar{
			"IC2401.CFX": {TradeDate: d, Open: 0, Close: 5050},
		})

		rel, ok := snap.Basis("IC2401.CFX", true, domain.FieldOpen)
		require.True(t, ok)
		assert.InDelta(t, 0.01, rel, 1e-12)
	})

	t.Run("InvalidEverywhere", func(t *testing.T) {
		snap := NewSnapshot(d, idxBar("20240102", 5000), map[string]*domain.FuturesDailyBar{
			"IC2401.CFX": {TradeDate: d},
		})
		_, ok := snap.Basis("IC2401.CFX", true, domain.FieldOpen)
		assert.False(t, ok)

		_, ok = snap.Basis("IC9999.CFX", true, domain.FieldOpen)
		assert.False(t, ok, "合约无行情")
	})

	t.Run("SpotInvalid", func(t *testing.T) {
		snap := NewSnapshot(d, idxBar("20240102", 0), map[string]*domain.FuturesDailyBar{
			"IC2401.CFX": {TradeDate: d, Open: 5100},
		})
		_, ok := snap.Basis("IC2401.CFX", true, domain.FieldOpen)
		assert.False(t, ok)
	})
}

func TestSignalSnapshotLagOne(t *testing.T) {
	d := dateutil.MustParse("20240103")
	snap := NewSnapshot(d, idxBar("20240103", 5000), nil)
	sig := NewSignalSnapshot(snap, map[string]*domain.FuturesDailyBar{
		"IC2401.CFX": {Volume: 30000, OpenInterest: 90000},
	})

	assert.InDelta(t, 30000, sig.PrevVolume("IC2401.CFX"), 1e-9)
	assert.InDelta(t, 90000, sig.PrevOI("IC2401.CFX"), 1e-9)
	assert.Zero(t, sig.PrevVolume("IC2402.CFX"), "前日无行情按 0 处理")
	assert.Zero(t, sig.PrevOI("IC2402.CFX"))
}

// 三个交易日、单合约的小数据集。
func feedFixture(t *testing.T) *domain.ContractChain {
	t.Helper()
	index := domain.NewEquityIndex("000905.SH", "CSI500")
	index.AddBar(idxBar("20240102", 5000))
	index.AddBar(idxBar("20240103", 5050))
	index.AddBar(idxBar("20240104", 4990))

	c := domain.NewContract("IC2401.CFX", "IC", 200,
		dateutil.MustParse("20230821"), dateutil.MustParse("20240119"))
	c.AddBar(&domain.FuturesDailyBar{TradeDate: dateutil.MustParse("20240102"), Open: 5010, Settle: 5020, Volume: 31000})
	c.AddBar(&domain.FuturesDailyBar{TradeDate: dateutil.MustParse("20240103"), Open: 5030, Settle: 5060, Volume: 32000})
	c.AddBar(&domain.FuturesDailyBar{TradeDate: dateutil.MustParse("20240104"), Open: 5000, Settle: 4995, Volume: 33000})

	chain := domain.NewContractChain("IC", index)
	chain.Add(c)
	return chain
}

func TestFeedCalendarWindow(t *testing.T) {
	chain := feedFixture(t)

	feed, err := NewFeed(chain, dateutil.MustParse("20240103"), time.Time{})
	require.NoError(t, err)

	cal := feed.Calendar()
	require.Len(t, cal, 2)
	assert.Equal(t, dateutil.MustParse("20240103"), cal[0])
	assert.Equal(t, dateutil.MustParse("20240104"), cal[1])
}

func TestFeedEmptyWindow(t *testing.T) {
	chain := feedFixture(t)
	_, err := NewFeed(chain, dateutil.MustParse("20250101"), dateutil.MustParse("20250201"))
	assert.Error(t, err)
}

func TestFeedSnapshots(t *testing.T) {
	chain := feedFixture(t)
	feed, err := NewFeed(chain, time.Time{}, time.Time{})
	require.NoError(t, err)

	snap, ok := feed.SnapshotAt(dateutil.MustParse("20240103"))
	require.True(t, ok)
	assert.InDelta(t, 5050, snap.IndexClose(), 1e-9)
	p, ok := snap.FuturesPrice("IC2401.CFX", domain.FieldSettle)
	require.True(t, ok)
	assert.InDelta(t, 5060, p, 1e-9)

	_, ok = feed.SnapshotAt(dateutil.MustParse("20240106")) // 非交易日
	assert.False(t, ok)
}

func TestFeedSignalLagCrossesWindowStart(t *testing.T) {
	// 回测起点不是数据起点时，首日的滞后量仓仍要能取到起点前一日
	chain := feedFixture(t)
	feed, err := NewFeed(chain, dateutil.MustParse("20240103"), time.Time{})
	require.NoError(t, err)

	sig, ok := feed.SignalAt(dateutil.MustParse("20240103"))
	require.True(t, ok)
	assert.InDelta(t, 31000, sig.PrevVolume("IC2401.CFX"), 1e-9)

	// 数据第一天没有前日，按 0 处理
	full, err := NewFeed(chain, time.Time{}, time.Time{})
	require.NoError(t, err)
	sig, ok = full.SignalAt(dateutil.MustParse("20240102"))
	require.True(t, ok)
	assert.Zero(t, sig.PrevVolume("IC2401.CFX"))
}

func TestDefaultIndexFor(t *testing.T) {
	for futCode, want := range map[string]string{
		"IC": "000905.SH",
		"IM": "000852.SH",
		"IF": "000300.SH",
	} {
		got, ok := DefaultIndexFor(futCode)
		require.True(t, ok, futCode)
		assert.Equal(t, want, got)
	}
	_, ok := DefaultIndexFor("AU")
	assert.False(t, ok)
}

func TestBuildChain(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryMarketStore()

	require.NoError(t, st.PutContracts(ctx, []store.ContractRecord{{
		TsCode: "IC2401.CFX", FutCode: "IC", Name: "中证500股指期货2401", Multiplier: 200,
		ListDate:   dateutil.MustParse("20230821"),
		DelistDate: dateutil.MustParse("20240119"),
	}}))
	require.NoError(t, st.PutFuturesBars(ctx, []store.FuturesBarRecord{{
		TsCode: "IC2401.CFX",
		FuturesDailyBar: domain.FuturesDailyBar{
			TradeDate: dateutil.MustParse("20240102"), Settle: 5020, Volume: 31000,
		},
	}}))
	require.NoError(t, st.PutIndexBars(ctx, []store.IndexBarRecord{{
		IndexCode:     "000905.SH",
		IndexDailyBar: domain.IndexDailyBar{TradeDate: dateutil.MustParse("20240102"), Close: 5000},
	}}))

	chain, err := BuildChain(ctx, st, "IC", "000905.SH")
	require.NoError(t, err)

	assert.Equal(t, 1, chain.Len())
	c, ok := chain.Get("IC2401.CFX")
	require.True(t, ok)
	assert.Equal(t, "中证500股指期货2401", c.Name)
	p, ok := c.GetPrice(dateutil.MustParse("20240102"), domain.FieldSettle)
	require.True(t, ok)
	assert.InDelta(t, 5020, p, 1e-9)

	t.Run("MissingIndexFails", func(t *testing.T) {
		_, err := BuildChain(ctx, st, "IC", "000016.SH")
		assert.Error(t, err)
	})

	t.Run("MissingContractsFails", func(t *testing.T) {
		_, err := BuildChain(ctx, st, "AU", "000905.SH")
		assert.Error(t, err)
	})
}
