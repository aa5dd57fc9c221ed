package main

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"futroll/internal/pkg/dateutil"
)

// 生成一套可直接 import 的样例 CSV 行情：中证500 指数、IC 月度合约链
// 与交易所保证金率，价格为带漂移的随机游走。
// 用法: go run scripts/gen_sample_data.go [输出目录]
// 默认输出目录: data/raw
func main() {
	outDir := "data/raw"
	if len(os.Args) > 1 && os.Args[1] != "" {
		outDir = os.Args[1]
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		panic(err)
	}

	rng := rand.New(rand.NewSource(42))
	days := tradingDays(date(2023, 1, 3), date(2024, 6, 28))
	contracts := monthlyContracts(2023, 1, 2024, 8)

	indexClose := writeIndexCSV(filepath.Join(outDir, "index_daily.csv"), rng, days)
	writeContractsCSV(filepath.Join(outDir, "fut_basic.csv"), contracts)
	writeFuturesCSV(filepath.Join(outDir, "fut_daily.csv"), rng, days, contracts, indexClose)
	writeMarginCSV(filepath.Join(outDir, "margin.csv"), days)

	fmt.Printf("✓ 样例数据已生成: %s（%d 个交易日, %d 个合约）\n", outDir, len(days), len(contracts))
}

type sampleContract struct {
	tsCode string
	list   time.Time
	delist time.Time
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// tradingDays 工作日近似交易日历。
func tradingDays(from, to time.Time) []time.Time {
	var out []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d)
		}
	}
	return out
}

// thirdFriday 股指期货交割日惯例：到期月第三个周五。
func thirdFriday(y int, m time.Month) time.Time {
	d := date(y, m, 1)
	fridays := 0
	for {
		if d.Weekday() == time.Friday {
			fridays++
			if fridays == 3 {
				return d
			}
		}
		d = d.AddDate(0, 0, 1)
	}
}

// monthlyContracts 逐月合约，上市日取交割月前 6 个月的月初。
func monthlyContracts(fromYear int, fromMonth time.Month, toYear int, toMonth time.Month) []sampleContract {
	var out []sampleContract
	for d := date(fromYear, fromMonth, 1); !d.After(date(toYear, toMonth, 1)); d = d.AddDate(0, 1, 0) {
		delist := thirdFriday(d.Year(), d.Month())
		out = append(out, sampleContract{
			tsCode: fmt.Sprintf("IC%02d%02d.CFX", d.Year()%100, int(d.Month())),
			list:   d.AddDate(0, -6, 0),
			delist: delist,
		})
	}
	return out
}

func writeCSV(path string, header []string, rows [][]string) {
	f, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		panic(err)
	}
	if err := w.WriteAll(rows); err != nil {
		panic(err)
	}
}

func writeIndexCSV(path string, rng *rand.Rand, days []time.Time) map[time.Time]float64 {
	closeByDay := make(map[time.Time]float64, len(days))
	price := 6000.0
	rows := make([][]string, 0, len(days))
	for _, d := range days {
		open := price * (1 + rng.NormFloat64()*0.004)
		price *= 1 + 0.0001 + rng.NormFloat64()*0.012
		high := maxf(open, price) * (1 + rng.Float64()*0.005)
		low := minf(open, price) * (1 - rng.Float64()*0.005)
		closeByDay[d] = price
		rows = append(rows, []string{
			"000905.SH", dateutil.Format(d),
			f2(open), f2(high), f2(low), f2(price),
		})
	}
	writeCSV(path, []string{"S_INFO_WINDCODE", "TRADE_DT", "S_DQ_OPEN", "S_DQ_HIGH", "S_DQ_LOW", "S_DQ_CLOSE"}, rows)
	return closeByDay
}

func writeContractsCSV(path string, contracts []sampleContract) {
	rows := make([][]string, 0, len(contracts))
	for _, c := range contracts {
		rows = append(rows, []string{
			c.tsCode, "IC", c.tsCode[:6], "200",
			dateutil.Format(c.list), dateutil.Format(c.delist), dateutil.Format(c.delist),
		})
	}
	// 连续合约行应被导入端过滤掉，保留一条验证过滤逻辑
	rows = append(rows, []string{"ICL.CFX", "IC", "ICL", "200", "20150416", "20991231", "20991231"})
	writeCSV(path, []string{"ts_code", "fut_code", "name", "multiplier", "list_date", "delist_date", "last_ddate"}, rows)
}

func writeFuturesCSV(path string, rng *rand.Rand, days []time.Time, contracts []sampleContract, indexClose map[time.Time]float64) {
	var rows [][]string
	for _, c := range contracts {
		preClose, preSettle := 0.0, 0.0
		oi := 20000 + rng.Float64()*10000
		for _, d := range days {
			if d.Before(c.list) || d.After(c.delist) {
				continue
			}
			spot := indexClose[d]
			// 股指期货贴水：距到期越远贴水越深
			monthsOut := float64(c.delist.Year()-d.Year())*12 + float64(c.delist.Month()-d.Month())
			basis := -spot * 0.002 * (1 + monthsOut*0.5)
			settle := spot + basis + rng.NormFloat64()*10
			open := settle * (1 + rng.NormFloat64()*0.003)
			high := maxf(open, settle) * (1 + rng.Float64()*0.004)
			low := minf(open, settle) * (1 - rng.Float64()*0.004)
			// 近月流动性高，临近到期快速衰减
			liquidity := 1.0 / (1 + monthsOut)
			if daysTo := int(c.delist.Sub(d).Hours() / 24); daysTo <= 7 {
				liquidity *= float64(daysTo) / 8
			}
			vol := (30000 + rng.Float64()*20000) * liquidity
			oiChg := rng.NormFloat64() * 800 * liquidity
			oi = maxf(oi+oiChg, 100)

			rows = append(rows, []string{
				c.tsCode, dateutil.Format(d),
				f2(preClose), f2(preSettle), f2(open), f2(high), f2(low),
				f2(settle * (1 + rng.NormFloat64()*0.001)), f2(settle),
				f2(vol), f2(vol * settle * 200 / 10000), f2(oi), f2(oiChg),
			})
			preClose, preSettle = settle, settle
		}
	}
	writeCSV(path, []string{
		"ts_code", "trade_date", "pre_close", "pre_settle", "open", "high", "low",
		"close", "settle", "vol", "amount", "oi", "oi_chg",
	}, rows)
}

func writeMarginCSV(path string, days []time.Time) {
	var rows [][]string
	for i, d := range days {
		// 保证金率按月变一次即可
		if i%21 != 0 {
			continue
		}
		rows = append(rows, []string{"IC2401.CFE", dateutil.Format(d), "12.0", "12.0"})
	}
	writeCSV(path, []string{"S_INFO_WINDCODE", "TRADE_DT", "LONG_MARGIN_RATIO", "SHORT_MARGIN_RATIO"}, rows)
}

func f2(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
