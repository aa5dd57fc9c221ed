// Package database 基于 sqlite 的行情与回测结果存储，
// 实现 store.MarketStore 与 store.ResultStore。
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"futroll/internal/pkg/dateutil"
)

// Store 单库双职责：行情表与结果表共用一个 sqlite 文件。
// 写入走事务批量，日期一律存 YYYYMMDD 文本。
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// NewStore 打开（必要时创建）sqlite 数据库并建表。
func NewStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("创建数据目录失败: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// sqlite 单写者，限制连接数避免 database is locked
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("数据库已关闭")
	}
	return s.db, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contracts (
			ts_code     TEXT PRIMARY KEY,
			fut_code    TEXT NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			multiplier  REAL NOT NULL,
			list_date   TEXT NOT NULL,
			delist_date TEXT NOT NULL,
			last_ddate  TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_fut_code ON contracts(fut_code)`,
		`CREATE TABLE IF NOT EXISTS futures_bars (
			ts_code       TEXT NOT NULL,
			trade_date    TEXT NOT NULL,
			pre_close     REAL NOT NULL DEFAULT 0,
			pre_settle    REAL NOT NULL DEFAULT 0,
			open          REAL NOT NULL DEFAULT 0,
			high          REAL NOT NULL DEFAULT 0,
			low           REAL NOT NULL DEFAULT 0,
			close         REAL NOT NULL DEFAULT 0,
			settle        REAL NOT NULL DEFAULT 0,
			volume        REAL NOT NULL DEFAULT 0,
			amount        REAL NOT NULL DEFAULT 0,
			open_interest REAL NOT NULL DEFAULT 0,
			oi_change     REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (ts_code, trade_date)
		)`,
		`CREATE TABLE IF NOT EXISTS index_bars (
			index_code TEXT NOT NULL,
			trade_date TEXT NOT NULL,
			open       REAL NOT NULL DEFAULT 0,
			high       REAL NOT NULL DEFAULT 0,
			low        REAL NOT NULL DEFAULT 0,
			close      REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (index_code, trade_date)
		)`,
		`CREATE TABLE IF NOT EXISTS margin_rates (
			fut_code           TEXT NOT NULL,
			trade_date         TEXT NOT NULL,
			long_margin_ratio  REAL NOT NULL DEFAULT 0,
			short_margin_ratio REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (fut_code, trade_date)
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id               TEXT PRIMARY KEY,
			created_at       INTEGER NOT NULL,
			fut_code         TEXT NOT NULL,
			index_code       TEXT NOT NULL,
			strategy         TEXT NOT NULL,
			start_date       TEXT NOT NULL,
			end_date         TEXT NOT NULL,
			initial_capital  REAL NOT NULL,
			final_nav        REAL NOT NULL,
			total_return     REAL NOT NULL,
			annual_return    REAL NOT NULL,
			max_drawdown     REAL NOT NULL,
			sharpe_ratio     REAL NOT NULL,
			trade_count      INTEGER NOT NULL,
			total_commission REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nav_points (
			run_id        TEXT NOT NULL,
			trade_date    TEXT NOT NULL,
			nav           REAL NOT NULL,
			benchmark_nav REAL NOT NULL DEFAULT 0,
			margin_usage  REAL NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, trade_date)
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id       TEXT NOT NULL,
			trade_date   TEXT NOT NULL,
			ts_code      TEXT NOT NULL,
			direction    TEXT NOT NULL,
			volume       INTEGER NOT NULL,
			price        REAL NOT NULL,
			amount       REAL NOT NULL,
			commission   REAL NOT NULL,
			reason       TEXT NOT NULL DEFAULT '',
			realized_pnl REAL NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("初始化表结构失败: %w", err)
		}
	}
	return nil
}

func dateStr(d time.Time) string {
	if d.IsZero() {
		return ""
	}
	return dateutil.Format(d)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return dateutil.Parse(s)
}
