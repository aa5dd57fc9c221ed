// Package binance 从 Binance 拉取币本位交割合约数据，落入行情库后
// 即可走与股指期货相同的回测链路。
//
// 映射关系：交割合约（如 BTCUSD_240628）按品种 pair 归组，上市/交割
// 时间来自 ExchangeInfo，现货日线充当指数基准。币本位 K 线没有每日
// 结算价，以收盘价代作结算价；也不提供未平仓量历史，流动性换月只能
// 使用 volume 口径。
package binance

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	binance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/delivery"

	"futroll/internal/config"
	"futroll/internal/logger"
	"futroll/internal/pkg/dateutil"
	"futroll/internal/store"
)

type deliveryAPI interface {
	ExchangeInfo(ctx context.Context) ([]delivery.Symbol, error)
	DailyKlines(ctx context.Context, symbol string, limit int) ([]*delivery.Kline, error)
}

type spotAPI interface {
	DailyKlines(ctx context.Context, symbol string, limit int) ([]*binance.Kline, error)
}

// Fetcher 同步一个品种的交割合约元数据、期货日线与现货指数日线。
type Fetcher struct {
	cfg      config.BinanceConfig
	delivery deliveryAPI
	spot     spotAPI
	store    store.MarketStore
}

func NewFetcher(cfg config.BinanceConfig, st store.MarketStore) *Fetcher {
	return &Fetcher{
		cfg:      cfg,
		delivery: &deliveryClient{c: delivery.NewClient(cfg.APIKey, cfg.APISecret)},
		spot:     &spotClient{c: binance.NewClient(cfg.APIKey, cfg.APISecret)},
		store:    st,
	}
}

// Fetch 执行一次全量同步。
func (f *Fetcher) Fetch(ctx context.Context) error {
	symbols, err := f.syncContracts(ctx)
	if err != nil {
		return err
	}
	// 顺序拉取，避开交易所频控
	for _, sym := range symbols {
		if err := f.syncFuturesBars(ctx, sym); err != nil {
			return err
		}
	}
	return f.syncIndexBars(ctx)
}

// syncContracts 拉取交割合约元数据，返回纳入同步的合约代码。
func (f *Fetcher) syncContracts(ctx context.Context) ([]string, error) {
	all, err := f.delivery.ExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("拉取交易规则失败: %w", err)
	}

	var recs []store.ContractRecord
	for _, sym := range all {
		if sym.Pair != f.cfg.Pair {
			continue
		}
		// 永续没有交割日，不进合约链
		if strings.EqualFold(string(sym.ContractType), "PERPETUAL") || sym.DeliveryDate <= 0 {
			continue
		}
		delist := dateutil.FromMilli(sym.DeliveryDate)
		recs = append(recs, store.ContractRecord{
			TsCode:     sym.Symbol,
			FutCode:    sym.Pair,
			Name:       contractName(sym.Pair, string(sym.ContractType)),
			Multiplier: float64(sym.ContractSize),
			ListDate:   dateutil.FromMilli(sym.OnboardDate),
			DelistDate: delist,
			LastDDate:  delist,
		})
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("未找到 %s 的交割合约", f.cfg.Pair)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].TsCode < recs[j].TsCode })

	if err := f.store.PutContracts(ctx, recs); err != nil {
		return nil, fmt.Errorf("写入合约信息失败: %w", err)
	}
	codes := make([]string, 0, len(recs))
	for _, rec := range recs {
		codes = append(codes, rec.TsCode)
	}
	logger.Infof("✓ 交割合约元数据同步完成: %s 共 %d 个", f.cfg.Pair, len(codes))
	return codes, nil
}

func (f *Fetcher) syncFuturesBars(ctx context.Context, symbol string) error {
	klines, err := f.delivery.DailyKlines(ctx, symbol, f.cfg.Limit)
	if err != nil {
		return fmt.Errorf("拉取 %s 日线失败: %w", symbol, err)
	}
	if len(klines) == 0 {
		logger.Warnf("%s 暂无日线数据", symbol)
		return nil
	}

	recs := make([]store.FuturesBarRecord, 0, len(klines))
	prevClose := 0.0
	for _, k := range klines {
		open, err := parsePrice(k.Open, symbol, "open")
		if err != nil {
			return err
		}
		high, err := parsePrice(k.High, symbol, "high")
		if err != nil {
			return err
		}
		low, err := parsePrice(k.Low, symbol, "low")
		if err != nil {
			return err
		}
		closeP, err := parsePrice(k.Close, symbol, "close")
		if err != nil {
			return err
		}
		vol, _ := strconv.ParseFloat(k.Volume, 64)
		baseVol, _ := strconv.ParseFloat(k.QuoteAssetVolume, 64)

		rec := store.FuturesBarRecord{TsCode: symbol}
		rec.TradeDate = dateutil.FromMilli(k.OpenTime)
		rec.Open, rec.High, rec.Low, rec.Close = open, high, low, closeP
		// 无每日结算价，以收盘价代作结算价
		rec.Settle = closeP
		rec.PreClose = prevClose
		rec.PreSettle = prevClose
		rec.Volume = vol
		rec.Amount = baseVol
		recs = append(recs, rec)
		prevClose = closeP
	}
	if err := f.store.PutFuturesBars(ctx, recs); err != nil {
		return fmt.Errorf("写入 %s 日线失败: %w", symbol, err)
	}
	logger.Infof("✓ %s 日线同步完成: %d 根", symbol, len(recs))
	return nil
}

func (f *Fetcher) syncIndexBars(ctx context.Context) error {
	symbol := f.cfg.SpotSymbol
	klines, err := f.spot.DailyKlines(ctx, symbol, f.cfg.Limit)
	if err != nil {
		return fmt.Errorf("拉取现货 %s 日线失败: %w", symbol, err)
	}
	if len(klines) == 0 {
		return fmt.Errorf("现货 %s 没有日线数据", symbol)
	}

	recs := make([]store.IndexBarRecord, 0, len(klines))
	for _, k := range klines {
		open, err := parsePrice(k.Open, symbol, "open")
		if err != nil {
			return err
		}
		high, err := parsePrice(k.High, symbol, "high")
		if err != nil {
			return err
		}
		low, err := parsePrice(k.Low, symbol, "low")
		if err != nil {
			return err
		}
		closeP, err := parsePrice(k.Close, symbol, "close")
		if err != nil {
			return err
		}
		rec := store.IndexBarRecord{IndexCode: symbol}
		rec.TradeDate = dateutil.FromMilli(k.OpenTime)
		rec.Open, rec.High, rec.Low, rec.Close = open, high, low, closeP
		recs = append(recs, rec)
	}
	if err := f.store.PutIndexBars(ctx, recs); err != nil {
		return fmt.Errorf("写入现货指数日线失败: %w", err)
	}
	logger.Infof("✓ 现货指数同步完成: %s 共 %d 根", symbol, len(recs))
	return nil
}

func contractName(pair, contractType string) string {
	switch contractType {
	case "CURRENT_QUARTER":
		return pair + " 当季交割"
	case "NEXT_QUARTER":
		return pair + " 次季交割"
	}
	return pair + " " + contractType
}

func parsePrice(s, symbol, field string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %s 价格非法 %q: %w", symbol, field, s, err)
	}
	return v, nil
}

type deliveryClient struct {
	c *delivery.Client
}

func (d *deliveryClient) ExchangeInfo(ctx context.Context) ([]delivery.Symbol, error) {
	info, err := d.c.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	return info.Symbols, nil
}

func (d *deliveryClient) DailyKlines(ctx context.Context, symbol string, limit int) ([]*delivery.Kline, error) {
	return d.c.NewKlinesService().Symbol(symbol).Interval("1d").Limit(limit).Do(ctx)
}

type spotClient struct {
	c *binance.Client
}

func (s *spotClient) DailyKlines(ctx context.Context, symbol string, limit int) ([]*binance.Kline, error) {
	return s.c.NewKlinesService().Symbol(symbol).Interval("1d").Limit(limit).Do(ctx)
}
