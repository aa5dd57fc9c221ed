package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futroll/internal/pkg/dateutil"
)

func mkContract(tsCode, list, delist string) *FuturesContract {
	return NewContract(tsCode, "IC", 200, dateutil.MustParse(list), dateutil.MustParse(delist))
}

func TestContractLifecycle(t *testing.T) {
	c := mkContract("IC2401.CFX", "20230821", "20240119")

	assert.False(t, c.IsListed(dateutil.MustParse("20230820")))
	assert.True(t, c.IsListed(dateutil.MustParse("20230821")))
	assert.True(t, c.IsTradable(dateutil.MustParse("20240119")), "摘牌当日仍可交易")
	assert.False(t, c.IsTradable(dateutil.MustParse("20240120")))
	assert.False(t, c.IsExpired(dateutil.MustParse("20240119")))
	assert.True(t, c.IsExpired(dateutil.MustParse("20240120")))

	assert.Equal(t, 17, c.DaysToExpiry(dateutil.MustParse("20240102")))
	assert.Equal(t, 0, c.DaysToExpiry(dateutil.MustParse("20240119")))
	assert.Equal(t, -1, c.DaysToExpiry(dateutil.MustParse("20240120")))
}

func TestContractPriceAndLiquidity(t *testing.T) {
	c := mkContract("IC2401.CFX", "20230821", "20240119")
	c.AddBar(&FuturesDailyBar{
		TradeDate: dateutil.MustParse("20240102"),
		Open:      5010, Close: 5040, Settle: 5050,
		Volume: 35000, OpenInterest: 90000,
	})

	p, ok := c.GetPrice(dateutil.MustParse("20240102"), FieldSettle)
	require.True(t, ok)
	assert.InDelta(t, 5050, p, 1e-9)

	_, ok = c.GetPrice(dateutil.MustParse("20240103"), FieldSettle)
	assert.False(t, ok, "无日线的交易日取不到价格")

	_, ok = c.GetPrice(dateutil.MustParse("20240102"), "vwap")
	assert.False(t, ok, "未知字段取不到价格")

	assert.InDelta(t, 35000, c.GetVolume(dateutil.MustParse("20240102")), 1e-9)
	assert.Zero(t, c.GetVolume(dateutil.MustParse("20240103")))
	assert.InDelta(t, 90000, c.GetOpenInterest(dateutil.MustParse("20240102")), 1e-9)
}

func TestChainOrdering(t *testing.T) {
	chain := NewContractChain("IC", NewEquityIndex("000905.SH", "CSI500"))
	chain.Add(mkContract("IC2403.CFX", "20230619", "20240315"))
	chain.Add(mkContract("IC2401.CFX", "20230821", "20240119"))
	chain.Add(mkContract("IC2402.CFX", "20230918", "20240218"))

	var codes []string
	for _, c := range chain.Contracts() {
		codes = append(codes, c.TsCode)
	}
	assert.Equal(t, []string{"IC2401.CFX", "IC2402.CFX", "IC2403.CFX"}, codes, "按摘牌日升序")
}

func TestChainTradableOn(t *testing.T) {
	chain := NewContractChain("IC", NewEquityIndex("000905.SH", "CSI500"))
	chain.Add(mkContract("IC2401.CFX", "20230821", "20240119"))
	chain.Add(mkContract("IC2402.CFX", "20230918", "20240218"))
	chain.Add(mkContract("IC2406.CFX", "20240220", "20240621")) // 查询日尚未上市

	tradable := chain.TradableOn(dateutil.MustParse("20240122"))

	require.Len(t, tradable, 1)
	assert.Equal(t, "IC2402.CFX", tradable[0].TsCode, "IC2401 已摘牌、IC2406 未上市")
}

func TestChainExpiringAfter(t *testing.T) {
	chain := NewContractChain("IC", NewEquityIndex("000905.SH", "CSI500"))
	chain.Add(mkContract("IC2401.CFX", "20230821", "20240119"))
	chain.Add(mkContract("IC2402.CFX", "20230918", "20240218"))
	chain.Add(mkContract("IC2409.CFX", "20240520", "20240920")) // 未上市

	d := dateutil.MustParse("20240114") // IC2401 还剩 5 天

	t.Run("StrictlyGreater", func(t *testing.T) {
		out := chain.ExpiringAfter(d, 5)
		require.Len(t, out, 1)
		assert.Equal(t, "IC2402.CFX", out[0].TsCode, "剩 5 天不满足「大于 5 天」")
	})

	t.Run("BoundaryIncluded", func(t *testing.T) {
		out := chain.ExpiringAfter(d, 4)
		require.Len(t, out, 2)
		assert.Equal(t, "IC2401.CFX", out[0].TsCode)
	})

	t.Run("UnlistedExcluded", func(t *testing.T) {
		for _, c := range chain.ExpiringAfter(d, 0) {
			assert.NotEqual(t, "IC2409.CFX", c.TsCode)
		}
	})
}

func TestIndexNAVSeries(t *testing.T) {
	idx := NewEquityIndex("000905.SH", "CSI500")
	for date, close := range map[string]float64{
		"20240102": 5000,
		"20240103": 5100,
		"20240104": 4950,
	} {
		idx.AddBar(&IndexDailyBar{TradeDate: dateutil.MustParse(date), Close: close})
	}

	series := idx.NAVSeries(dateutil.MustParse("20240102"), dateutil.MustParse("20240104"))

	require.Len(t, series, 3)
	assert.InDelta(t, 1.0, series[0].Value, 1e-12)
	assert.InDelta(t, 5100.0/5000, series[1].Value, 1e-12)
	assert.InDelta(t, 4950.0/5000, series[2].Value, 1e-12)
}

func TestBarPriceFields(t *testing.T) {
	bar := &FuturesDailyBar{Open: 5010, High: 5090, Low: 4990, Close: 5040, Settle: 5050, PreSettle: 4980}

	for field, want := range map[string]float64{
		FieldOpen: 5010, FieldHigh: 5090, FieldLow: 4990,
		FieldClose: 5040, FieldSettle: 5050, FieldPreSettle: 4980,
	} {
		got, ok := bar.Price(field)
		require.True(t, ok, field)
		assert.InDelta(t, want, got, 1e-9, field)
	}

	var nilBar *FuturesDailyBar
	_, ok := nilBar.Price(FieldOpen)
	assert.False(t, ok)
}
