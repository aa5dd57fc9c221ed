package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"futroll/internal/store"
)

var _ store.ResultStore = (*Store)(nil)

func (s *Store) PutRun(ctx context.Context, run store.RunRecord) error {
	if run.ID == "" {
		return fmt.Errorf("run id 不能为空")
	}
	db, err := s.handle()
	if err != nil {
		return err
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO runs
			(id, created_at, fut_code, index_code, strategy, start_date, end_date,
			 initial_capital, final_nav, total_return, annual_return, max_drawdown,
			 sharpe_ratio, trade_count, total_commission)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			final_nav=excluded.final_nav,
			total_return=excluded.total_return,
			annual_return=excluded.annual_return,
			max_drawdown=excluded.max_drawdown,
			sharpe_ratio=excluded.sharpe_ratio,
			trade_count=excluded.trade_count,
			total_commission=excluded.total_commission
	`, run.ID, run.CreatedAt.UnixMilli(), run.FutCode, run.IndexCode, run.StrategyName,
		dateStr(run.StartDate), dateStr(run.EndDate), run.InitialCapital, run.FinalNAV,
		run.TotalReturn, run.AnnualReturn, run.MaxDrawdown, run.SharpeRatio,
		run.TradeCount, run.TotalCommission)
	if err != nil {
		return fmt.Errorf("写入回测记录失败: %w", err)
	}
	return nil
}

func (s *Store) Runs(ctx context.Context) ([]store.RunRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, created_at, fut_code, index_code, strategy, start_date, end_date,
		       initial_capital, final_nav, total_return, annual_return, max_drawdown,
		       sharpe_ratio, trade_count, total_commission
		FROM runs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("查询回测记录失败: %w", err)
	}
	defer rows.Close()

	out := make([]store.RunRecord, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) Run(ctx context.Context, id string) (store.RunRecord, bool, error) {
	db, err := s.handle()
	if err != nil {
		return store.RunRecord{}, false, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, created_at, fut_code, index_code, strategy, start_date, end_date,
		       initial_capital, final_nav, total_return, annual_return, max_drawdown,
		       sharpe_ratio, trade_count, total_commission
		FROM runs WHERE id = ?
	`, id)
	if err != nil {
		return store.RunRecord{}, false, fmt.Errorf("查询回测记录失败: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return store.RunRecord{}, false, rows.Err()
	}
	r, err := scanRun(rows)
	if err != nil {
		return store.RunRecord{}, false, err
	}
	return r, true, nil
}

func scanRun(rows *sql.Rows) (store.RunRecord, error) {
	var r store.RunRecord
	var createdAt int64
	var startDate, endDate string
	if err := rows.Scan(&r.ID, &createdAt, &r.FutCode, &r.IndexCode, &r.StrategyName,
		&startDate, &endDate, &r.InitialCapital, &r.FinalNAV, &r.TotalReturn,
		&r.AnnualReturn, &r.MaxDrawdown, &r.SharpeRatio, &r.TradeCount, &r.TotalCommission); err != nil {
		return store.RunRecord{}, fmt.Errorf("扫描回测记录失败: %w", err)
	}
	r.CreatedAt = time.UnixMilli(createdAt)
	var err error
	if r.StartDate, err = parseDate(startDate); err != nil {
		return store.RunRecord{}, err
	}
	if r.EndDate, err = parseDate(endDate); err != nil {
		return store.RunRecord{}, err
	}
	return r, nil
}

func (s *Store) PutNAVPoints(ctx context.Context, pts []store.NAVPointRecord) error {
	if len(pts) == 0 {
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
		INSERT INTO nav_points (run_id, trade_date, nav, benchmark_nav, margin_usage)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, trade_date) DO UPDATE SET
			nav=excluded.nav,
			benchmark_nav=excluded.benchmark_nav,
			margin_usage=excluded.margin_usage
	`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, p := range pts {
		if p.RunID == "" {
			return fmt.Errorf("nav point 缺少 run id")
		}
		if _, err := stmt.ExecContext(ctx, p.RunID, dateStr(p.TradeDate),
			p.NAV, p.BenchmarkNAV, p.MarginUsage); err != nil {
			return fmt.Errorf("写入净值点失败: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) NAVPoints(ctx context.Context, runID string) ([]store.NAVPointRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, trade_date, nav, benchmark_nav, margin_usage
		FROM nav_points WHERE run_id = ? ORDER BY trade_date
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("查询净值序列失败: %w", err)
	}
	defer rows.Close()

	out := make([]store.NAVPointRecord, 0)
	for rows.Next() {
		var p store.NAVPointRecord
		var tradeDate string
		if err := rows.Scan(&p.RunID, &tradeDate, &p.NAV, &p.BenchmarkNAV, &p.MarginUsage); err != nil {
			return nil, fmt.Errorf("扫描净值点失败: %w", err)
		}
		if p.TradeDate, err = parseDate(tradeDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PutTrades(ctx context.Context, trades []store.TradeRecord) error {
	if len(trades) == 0 {
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
		INSERT INTO trades
			(run_id, trade_date, ts_code, direction, volume, price, amount, commission, reason, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		if t.RunID == "" {
			return fmt.Errorf("trade 缺少 run id")
		}
		if _, err := stmt.ExecContext(ctx, t.RunID, dateStr(t.TradeDate), t.TsCode,
			t.Direction, t.Volume, t.Price, t.Amount, t.Commission, t.Reason, t.RealizedPnL); err != nil {
			return fmt.Errorf("写入成交记录失败: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) Trades(ctx context.Context, runID string) ([]store.TradeRecord, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, trade_date, ts_code, direction, volume, price, amount, commission, reason, realized_pnl
		FROM trades WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("查询成交记录失败: %w", err)
	}
	defer rows.Close()

	out := make([]store.TradeRecord, 0)
	for rows.Next() {
		var t store.TradeRecord
		var tradeDate string
		if err := rows.Scan(&t.RunID, &tradeDate, &t.TsCode, &t.Direction, &t.Volume,
			&t.Price, &t.Amount, &t.Commission, &t.Reason, &t.RealizedPnL); err != nil {
			return nil, fmt.Errorf("扫描成交记录失败: %w", err)
		}
		if t.TradeDate, err = parseDate(tradeDate); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
