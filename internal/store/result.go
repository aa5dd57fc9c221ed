package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// RunRecord 一次回测的元信息与汇总指标。
type RunRecord struct {
	ID              string
	CreatedAt       time.Time
	FutCode         string
	IndexCode       string
	StrategyName    string
	StartDate       time.Time
	EndDate         time.Time
	InitialCapital  float64
	FinalNAV        float64
	TotalReturn     float64
	AnnualReturn    float64
	MaxDrawdown     float64
	SharpeRatio     float64
	TradeCount      int
	TotalCommission float64
}

// NAVPointRecord 净值曲线上的一个点，附带基准净值与保证金占用比。
type NAVPointRecord struct {
	RunID        string
	TradeDate    time.Time
	NAV          float64
	BenchmarkNAV float64
	MarginUsage  float64
}

// TradeRecord 落库的成交记录。
type TradeRecord struct {
	RunID       string
	TradeDate   time.Time
	TsCode      string
	Direction   string
	Volume      int
	Price       float64
	Amount      float64
	Commission  float64
	Reason      string
	RealizedPnL float64
}

// ResultStore 回测结果存储抽象。
type ResultStore interface {
	PutRun(ctx context.Context, run RunRecord) error
	Runs(ctx context.Context) ([]RunRecord, error)
	Run(ctx context.Context, id string) (RunRecord, bool, error)
	PutNAVPoints(ctx context.Context, pts []NAVPointRecord) error
	NAVPoints(ctx context.Context, runID string) ([]NAVPointRecord, error)
	PutTrades(ctx context.Context, trades []TradeRecord) error
	Trades(ctx context.Context, runID string) ([]TradeRecord, error)
}

// MemoryResultStore 内存实现。
type MemoryResultStore struct {
	mu     sync.RWMutex
	runs   map[string]RunRecord
	navs   map[string][]NAVPointRecord
	trades map[string][]TradeRecord
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{
		runs:   make(map[string]RunRecord),
		navs:   make(map[string][]NAVPointRecord),
		trades: make(map[string][]TradeRecord),
	}
}

func (s *MemoryResultStore) PutRun(ctx context.Context, run RunRecord) error {
	if run.ID == "" {
		return errors.New("run id 不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// Runs 全部回测记录，按创建时间倒序（最新在前）。
func (s *MemoryResultStore) Runs(ctx context.Context) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RunRecord, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryResultStore) Run(ctx context.Context, id string) (RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	return r, ok, nil
}

func (s *MemoryResultStore) PutNAVPoints(ctx context.Context, pts []NAVPointRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pts {
		if p.RunID == "" {
			return errors.New("nav point 缺少 run id")
		}
		s.navs[p.RunID] = append(s.navs[p.RunID], p)
	}
	return nil
}

// NAVPoints 取一次回测的净值序列，按日期升序返回拷贝。
func (s *MemoryResultStore) NAVPoints(ctx context.Context, runID string) ([]NAVPointRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.navs[runID]
	out := make([]NAVPointRecord, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

func (s *MemoryResultStore) PutTrades(ctx context.Context, trades []TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range trades {
		if t.RunID == "" {
			return errors.New("trade 缺少 run id")
		}
		s.trades[t.RunID] = append(s.trades[t.RunID], t)
	}
	return nil
}

// Trades 取一次回测的成交记录，保持写入顺序返回拷贝。
func (s *MemoryResultStore) Trades(ctx context.Context, runID string) ([]TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.trades[runID]
	out := make([]TradeRecord, len(src))
	copy(out, src)
	return out, nil
}
