package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"futroll/internal/domain"
	"futroll/internal/store"
)

var _ store.MarketStore = (*Store)(nil)

func (s *Store) PutContracts(ctx context.Context, recs []store.ContractRecord) error {
	if len(recs) == 0 {
		return nil
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	for _, r := range recs {
		if r.TsCode == "" {
			return fmt.Errorf("合约代码不能为空")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO contracts (ts_code, fut_code, name, multiplier, list_date, delist_date, last_ddate)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(ts_code) DO UPDATE SET
				fut_code=excluded.fut_code,
				name=excluded.name,
				multiplier=excluded.multiplier,
				list_date=excluded.list_date,
				delist_date=excluded.delist_date,
				last_ddate=excluded.last_ddate
		`, r.TsCode, r.FutCode, r.Name, r.Multiplier,
			dateStr(r.ListDate), dateStr(r.DelistDate), dateStr(r.LastDDate))
		if err != nil {
			return fmt.Errorf("写入合约 %s 失败: %w", r.TsCode, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Contracts(ctx context.Context, futCode string) ([]store.ContractRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT ts_code, fut_code, name, multiplier, list_date, delist_date, last_ddate
		FROM contracts WHERE fut_code = ? ORDER BY ts_code
	`, futCode)
	if err != nil {
		return nil, fmt.Errorf("查询合约失败: %w", err)
	}
	defer rows.Close()

	out := make([]store.ContractRecord, 0)
	for rows.Next() {
		var r store.ContractRecord
		var listDate, delistDate, lastDDate string
		if err := rows.Scan(&r.TsCode, &r.FutCode, &r.Name, &r.Multiplier, &listDate, &delistDate, &lastDDate); err != nil {
			return nil, fmt.Errorf("扫描合约行失败: %w", err)
		}
		if r.ListDate, err = parseDate(listDate); err != nil {
			return nil, err
		}
		if r.DelistDate, err = parseDate(delistDate); err != nil {
			return nil, err
		}
		if r.LastDDate, err = parseDate(lastDDate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) PutFuturesBars(ctx context.Context, recs []store.FuturesBarRecord) error {
	if len(recs) == 0 {
		return nil
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO futures_bars
			(ts_code, trade_date, pre_close, pre_settle, open, high, low, close, settle,
			 volume, amount, open_interest, oi_change)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ts_code, trade_date) DO UPDATE SET
			pre_close=excluded.pre_close,
			pre_settle=excluded.pre_settle,
			open=excluded.open,
			high=excluded.high,
			low=excluded.low,
			close=excluded.close,
			settle=excluded.settle,
			volume=excluded.volume,
			amount=excluded.amount,
			open_interest=excluded.open_interest,
			oi_change=excluded.oi_change
	`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if r.TsCode == "" {
			return fmt.Errorf("合约代码不能为空")
		}
		b := r.FuturesDailyBar
		if _, err := stmt.ExecContext(ctx, r.TsCode, dateStr(b.TradeDate),
			b.PreClose, b.PreSettle, b.Open, b.High, b.Low, b.Close, b.Settle,
			b.Volume, b.Amount, b.OpenInterest, b.OIChange); err != nil {
			return fmt.Errorf("写入 %s 日线失败: %w", r.TsCode, err)
		}
	}
	return tx.Commit()
}

func (s *Store) FuturesBars(ctx context.Context, tsCode string) ([]store.FuturesBarRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT ts_code, trade_date, pre_close, pre_settle, open, high, low, close, settle,
		       volume, amount, open_interest, oi_change
		FROM futures_bars WHERE ts_code = ? ORDER BY trade_date
	`, tsCode)
	if err != nil {
		return nil, fmt.Errorf("查询期货日线失败: %w", err)
	}
	defer rows.Close()

	out := make([]store.FuturesBarRecord, 0)
	for rows.Next() {
		var r store.FuturesBarRecord
		var b domain.FuturesDailyBar
		var tradeDate string
		if err := rows.Scan(&r.TsCode, &tradeDate, &b.PreClose, &b.PreSettle,
			&b.Open, &b.High, &b.Low, &b.Close, &b.Settle,
			&b.Volume, &b.Amount, &b.OpenInterest, &b.OIChange); err != nil {
			return nil, fmt.Errorf("扫描期货日线失败: %w", err)
		}
		if b.TradeDate, err = parseDate(tradeDate); err != nil {
			return nil, err
		}
		r.FuturesDailyBar = b
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) PutIndexBars(ctx context.Context, recs []store.IndexBarRecord) error {
	if len(recs) == 0 {
		return nil
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO index_bars (index_code, trade_date, open, high, low, close)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(index_code, trade_date) DO UPDATE SET
			open=excluded.open,
			high=excluded.high,
			low=excluded.low,
			close=excluded.close
	`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, r := range recs {
		if r.IndexCode == "" {
			return fmt.Errorf("指数代码不能为空")
		}
		b := r.IndexDailyBar
		if _, err := stmt.ExecContext(ctx, r.IndexCode, dateStr(b.TradeDate),
			b.Open, b.High, b.Low, b.Close); err != nil {
			return fmt.Errorf("写入指数 %s 日线失败: %w", r.IndexCode, err)
		}
	}
	return tx.Commit()
}

func (s *Store) IndexBars(ctx context.Context, indexCode string) ([]store.IndexBarRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT index_code, trade_date, open, high, low, close
		FROM index_bars WHERE index_code = ? ORDER BY trade_date
	`, indexCode)
	if err != nil {
		return nil, fmt.Errorf("查询指数日线失败: %w", err)
	}
	defer rows.Close()

	out := make([]store.IndexBarRecord, 0)
	for rows.Next() {
		var r store.IndexBarRecord
		var b domain.IndexDailyBar
		var tradeDate string
		if err := rows.Scan(&r.IndexCode, &tradeDate, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, fmt.Errorf("扫描指数日线失败: %w", err)
		}
		if b.TradeDate, err = parseDate(tradeDate); err != nil {
			return nil, err
		}
		r.IndexDailyBar = b
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) PutMarginRates(ctx context.Context, recs []store.MarginRateRecord) error {
	if len(recs) == 0 {
		return nil
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	for _, r := range recs {
		if r.FutCode == "" {
			return fmt.Errorf("品种代码不能为空")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO margin_rates (fut_code, trade_date, long_margin_ratio, short_margin_ratio)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(fut_code, trade_date) DO UPDATE SET
				long_margin_ratio=excluded.long_margin_ratio,
				short_margin_ratio=excluded.short_margin_ratio
		`, r.FutCode, dateStr(r.TradeDate), r.LongMarginRatio, r.ShortMarginRatio)
		if err != nil {
			return fmt.Errorf("写入保证金率失败: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) MarginRateOn(ctx context.Context, futCode string, d time.Time) (store.MarginRateRecord, bool, error) {
	db, err := s.handle()
	if err != nil {
		return store.MarginRateRecord{}, false, err
	}
	row := db.QueryRowContext(ctx, `
		SELECT fut_code, trade_date, long_margin_ratio, short_margin_ratio
		FROM margin_rates
		WHERE fut_code = ? AND trade_date <= ?
		ORDER BY trade_date DESC LIMIT 1
	`, futCode, dateStr(d))

	var r store.MarginRateRecord
	var tradeDate string
	if err := row.Scan(&r.FutCode, &tradeDate, &r.LongMarginRatio, &r.ShortMarginRatio); err != nil {
		if err == sql.ErrNoRows {
			return store.MarginRateRecord{}, false, nil
		}
		return store.MarginRateRecord{}, false, fmt.Errorf("查询保证金率失败: %w", err)
	}
	if r.TradeDate, err = parseDate(tradeDate); err != nil {
		return store.MarginRateRecord{}, false, err
	}
	return r, true, nil
}
