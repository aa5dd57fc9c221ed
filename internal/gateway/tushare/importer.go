// Package tushare 导入 tushare/wind 导出的 CSV 行情文件。
//
// 目录中的文件按表头自动识别四类数据：期货日线、指数日线、合约信息
// 与交易所保证金率，列名与导出源保持一致，子目录会被递归扫描。
package tushare

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"futroll/internal/domain"
	"futroll/internal/logger"
	"futroll/internal/pkg/dateutil"
	"futroll/internal/store"
)

// 文件类别，由表头识别。
const (
	KindFutures   = "futures"
	KindIndex     = "index"
	KindContracts = "contracts"
	KindMargin    = "margin"
)

// importConcurrency 并发导入的文件数上限。写入端有互斥保护，
// 并发只为让解析与落库重叠。
const importConcurrency = 4

var futCodeRe = regexp.MustCompile(`^[A-Z]+`)

// Importer 把 CSV 行情写入行情库。
type Importer struct {
	store store.MarketStore
}

func NewImporter(st store.MarketStore) *Importer {
	return &Importer{store: st}
}

// ImportDir 递归扫描目录下的全部 CSV 并导入，文件间并发执行。
func (im *Importer) ImportDir(ctx context.Context, dir string) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("扫描数据目录失败: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("数据目录中没有 CSV 文件: %s", dir)
	}
	sort.Strings(files)

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(importConcurrency)
	for _, path := range files {
		path := path
		group.Go(func() error {
			kind, n, err := im.ImportFile(ctx, path)
			if err != nil {
				return err
			}
			logger.Infof("✓ %s导入完成: %s (%d 行)", kindLabel(kind), filepath.Base(path), n)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	logger.Infof("✓ 数据导入完成: 共 %d 个文件", len(files))
	return nil
}

// ImportFile 识别单个 CSV 的类别并导入，返回类别与写入行数。
func (im *Importer) ImportFile(ctx context.Context, path string) (string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("打开 CSV 失败: %w", err)
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.TrimLeadingSpace = true
	header, err := rd.Read()
	if err != nil {
		return "", 0, fmt.Errorf("读取表头失败 %s: %w", path, err)
	}
	cols := indexColumns(header)
	kind := classify(cols)
	if kind == "" {
		return "", 0, fmt.Errorf("无法识别的 CSV 表头: %s", path)
	}

	var n int
	switch kind {
	case KindFutures:
		n, err = im.readFuturesRows(ctx, rd, cols)
	case KindIndex:
		n, err = im.readIndexRows(ctx, rd, cols)
	case KindContracts:
		n, err = im.readContractRows(ctx, rd, cols)
	case KindMargin:
		n, err = im.readMarginRows(ctx, rd, cols)
	}
	if err != nil {
		return kind, 0, fmt.Errorf("导入 %s 失败: %w", path, err)
	}
	return kind, n, nil
}

// ImportFuturesDaily 导入期货日线 CSV（tushare fut_daily 列名）。
func (im *Importer) ImportFuturesDaily(ctx context.Context, r io.Reader) (int, error) {
	rd, cols, err := readHeader(r)
	if err != nil {
		return 0, err
	}
	return im.readFuturesRows(ctx, rd, cols)
}

// ImportIndexDaily 导入指数日线 CSV（wind S_DQ_* 列名）。
func (im *Importer) ImportIndexDaily(ctx context.Context, r io.Reader) (int, error) {
	rd, cols, err := readHeader(r)
	if err != nil {
		return 0, err
	}
	return im.readIndexRows(ctx, rd, cols)
}

// ImportContracts 导入合约信息 CSV，过滤连续合约与字段不全的行。
func (im *Importer) ImportContracts(ctx context.Context, r io.Reader) (int, error) {
	rd, cols, err := readHeader(r)
	if err != nil {
		return 0, err
	}
	return im.readContractRows(ctx, rd, cols)
}

// ImportMarginRates 导入保证金率 CSV，同一品种同一日取首行。
func (im *Importer) ImportMarginRates(ctx context.Context, r io.Reader) (int, error) {
	rd, cols, err := readHeader(r)
	if err != nil {
		return 0, err
	}
	return im.readMarginRows(ctx, rd, cols)
}

func (im *Importer) readFuturesRows(ctx context.Context, rd *csv.Reader, cols colIndex) (int, error) {
	var recs []store.FuturesBarRecord
	line := 1
	for {
		row, err := rd.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("第 %d 行解析失败: %w", line, err)
		}
		tsCode := cols.get(row, "ts_code")
		if tsCode == "" {
			continue
		}
		d, err := dateutil.Parse(cols.get(row, "trade_date"))
		if err != nil {
			return 0, fmt.Errorf("第 %d 行 trade_date 非法: %w", line, err)
		}
		bar := domain.FuturesDailyBar{TradeDate: d}
		// 缺失的数值列按 0 落库，快照层对 0 价会回退或跳过。
		for _, fld := range []struct {
			col string
			dst *float64
		}{
			{"pre_close", &bar.PreClose},
			{"pre_settle", &bar.PreSettle},
			{"open", &bar.Open},
			{"high", &bar.High},
			{"low", &bar.Low},
			{"close", &bar.Close},
			{"settle", &bar.Settle},
			{"vol", &bar.Volume},
			{"amount", &bar.Amount},
			{"oi", &bar.OpenInterest},
			{"oi_chg", &bar.OIChange},
		} {
			v, err := parseFloat(cols.get(row, fld.col))
			if err != nil {
				return 0, fmt.Errorf("第 %d 行 %s 非法: %w", line, fld.col, err)
			}
			*fld.dst = v
		}
		recs = append(recs, store.FuturesBarRecord{TsCode: tsCode, FuturesDailyBar: bar})
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if err := im.store.PutFuturesBars(ctx, recs); err != nil {
		return 0, fmt.Errorf("写入期货日线失败: %w", err)
	}
	return len(recs), nil
}

func (im *Importer) readIndexRows(ctx context.Context, rd *csv.Reader, cols colIndex) (int, error) {
	var recs []store.IndexBarRecord
	line := 1
	for {
		row, err := rd.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("第 %d 行解析失败: %w", line, err)
		}
		code := cols.get(row, "s_info_windcode")
		if code == "" {
			continue
		}
		d, err := dateutil.Parse(cols.get(row, "trade_dt"))
		if err != nil {
			return 0, fmt.Errorf("第 %d 行 TRADE_DT 非法: %w", line, err)
		}
		bar := domain.IndexDailyBar{TradeDate: d}
		for _, fld := range []struct {
			col string
			dst *float64
		}{
			{"s_dq_open", &bar.Open},
			{"s_dq_high", &bar.High},
			{"s_dq_low", &bar.Low},
			{"s_dq_close", &bar.Close},
		} {
			v, err := parseFloat(cols.get(row, fld.col))
			if err != nil {
				return 0, fmt.Errorf("第 %d 行 %s 非法: %w", line, fld.col, err)
			}
			*fld.dst = v
		}
		recs = append(recs, store.IndexBarRecord{IndexCode: code, IndexDailyBar: bar})
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if err := im.store.PutIndexBars(ctx, recs); err != nil {
		return 0, fmt.Errorf("写入指数日线失败: %w", err)
	}
	return len(recs), nil
}

func (im *Importer) readContractRows(ctx context.Context, rd *csv.Reader, cols colIndex) (int, error) {
	var recs []store.ContractRecord
	skipped := 0
	line := 1
	for {
		row, err := rd.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("第 %d 行解析失败: %w", line, err)
		}
		tsCode := cols.get(row, "ts_code")
		// 代码含 L 的是连续合约（ICL、IC2403L 等），不是可交易合约。
		if tsCode == "" || strings.Contains(tsCode, "L") {
			skipped++
			continue
		}
		multStr := cols.get(row, "multiplier")
		listStr := cols.get(row, "list_date")
		delistStr := cols.get(row, "delist_date")
		if multStr == "" || listStr == "" || delistStr == "" {
			skipped++
			continue
		}
		mult, err := strconv.ParseFloat(multStr, 64)
		if err != nil {
			return 0, fmt.Errorf("第 %d 行 multiplier 非法: %w", line, err)
		}
		listDate, err := dateutil.Parse(listStr)
		if err != nil {
			return 0, fmt.Errorf("第 %d 行 list_date 非法: %w", line, err)
		}
		delistDate, err := dateutil.Parse(delistStr)
		if err != nil {
			return 0, fmt.Errorf("第 %d 行 delist_date 非法: %w", line, err)
		}
		rec := store.ContractRecord{
			TsCode:     tsCode,
			FutCode:    cols.get(row, "fut_code"),
			Name:       cols.get(row, "name"),
			Multiplier: mult,
			ListDate:   listDate,
			DelistDate: delistDate,
		}
		if s := cols.get(row, "last_ddate"); s != "" {
			lastD, err := dateutil.Parse(s)
			if err != nil {
				return 0, fmt.Errorf("第 %d 行 last_ddate 非法: %w", line, err)
			}
			rec.LastDDate = lastD
		}
		recs = append(recs, rec)
	}
	if skipped > 0 {
		logger.Debugf("合约信息过滤 %d 行（连续合约或字段缺失）", skipped)
	}
	if len(recs) == 0 {
		return 0, nil
	}
	if err := im.store.PutContracts(ctx, recs); err != nil {
		return 0, fmt.Errorf("写入合约信息失败: %w", err)
	}
	return len(recs), nil
}

func (im *Importer) readMarginRows(ctx context.Context, rd *csv.Reader, cols colIndex) (int, error) {
	var recs []store.MarginRateRecord
	seen := map[string]bool{}
	line := 1
	for {
		row, err := rd.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return 0, fmt.Errorf("第 %d 行解析失败: %w", line, err)
		}
		// IC2112.CFE -> IC，按代码前缀聚合到品种
		futCode := futCodeRe.FindString(cols.get(row, "s_info_windcode"))
		if futCode == "" {
			continue
		}
		d, err := dateutil.Parse(cols.get(row, "trade_dt"))
		if err != nil {
			return 0, fmt.Errorf("第 %d 行 TRADE_DT 非法: %w", line, err)
		}
		key := futCode + "|" + dateutil.Format(d)
		if seen[key] {
			continue
		}
		seen[key] = true
		long, err := parseFloat(cols.get(row, "long_margin_ratio"))
		if err != nil {
			return 0, fmt.Errorf("第 %d 行 LONG_MARGIN_RATIO 非法: %w", line, err)
		}
		short, err := parseFloat(cols.get(row, "short_margin_ratio"))
		if err != nil {
			return 0, fmt.Errorf("第 %d 行 SHORT_MARGIN_RATIO 非法: %w", line, err)
		}
		recs = append(recs, store.MarginRateRecord{
			FutCode:          futCode,
			TradeDate:        d,
			LongMarginRatio:  long,
			ShortMarginRatio: short,
		})
	}
	if len(recs) == 0 {
		return 0, nil
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].FutCode != recs[j].FutCode {
			return recs[i].FutCode < recs[j].FutCode
		}
		return recs[i].TradeDate.Before(recs[j].TradeDate)
	})
	if err := im.store.PutMarginRates(ctx, recs); err != nil {
		return 0, fmt.Errorf("写入保证金率失败: %w", err)
	}
	return len(recs), nil
}

// colIndex 把规范化列名映射到列下标，列顺序与导出工具无关。
type colIndex map[string]int

func indexColumns(header []string) colIndex {
	m := make(colIndex, len(header))
	for i, name := range header {
		m[normalizeCol(name)] = i
	}
	return m
}

func (c colIndex) get(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\uFEFF")))
}

func classify(cols colIndex) string {
	_, hasMarginRatio := cols["long_margin_ratio"]
	_, hasIndexClose := cols["s_dq_close"]
	_, hasMultiplier := cols["multiplier"]
	_, hasSettle := cols["settle"]
	switch {
	case hasMarginRatio:
		return KindMargin
	case hasIndexClose:
		return KindIndex
	case hasMultiplier:
		return KindContracts
	case hasSettle:
		return KindFutures
	}
	return ""
}

func kindLabel(kind string) string {
	switch kind {
	case KindFutures:
		return "期货日线"
	case KindIndex:
		return "指数日线"
	case KindContracts:
		return "合约信息"
	case KindMargin:
		return "保证金率"
	}
	return kind
}

func readHeader(r io.Reader) (*csv.Reader, colIndex, error) {
	rd := csv.NewReader(r)
	rd.TrimLeadingSpace = true
	header, err := rd.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("读取表头失败: %w", err)
	}
	return rd, indexColumns(header), nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
