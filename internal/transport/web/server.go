// Package web 提供回测结果的查看页面与 JSON API。
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"futroll/internal/logger"
	"futroll/internal/pkg/dateutil"
	"futroll/internal/pkg/format"
	"futroll/internal/store"
)

// ServerConfig Web 服务依赖。
type ServerConfig struct {
	Addr    string
	Results store.ResultStore
}

// Server 只读展示结果库，不触发回测。
type Server struct {
	addr    string
	results store.ResultStore
	httpSrv *http.Server
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Results == nil {
		return nil, fmt.Errorf("nil result store")
	}
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	s := &Server{addr: addr, results: cfg.Results}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	tmpl, err := template.ParseFS(Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("解析页面模板失败: %w", err)
	}
	engine.SetHTMLTemplate(tmpl)

	staticFS, err := fs.Sub(Static, "static")
	if err != nil {
		return nil, fmt.Errorf("静态资源不可用: %w", err)
	}
	engine.StaticFS("/static", http.FS(staticFS))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/", s.handleRunsPage)
	engine.GET("/runs/:id", s.handleRunPage)
	api := engine.Group("/api")
	{
		api.GET("/runs", s.handleListRuns)
		api.GET("/runs/:id", s.handleGetRun)
		api.GET("/runs/:id/nav", s.handleGetNAV)
		api.GET("/runs/:id/trades", s.handleGetTrades)
	}

	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Addr() string { return s.addr }

// Handler 暴露路由，测试用。
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Start 阻塞运行，ctx 取消后优雅退出。
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.ListenAndServe()
	}()
	logger.Infof("✓ Web 服务监听 %s", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("关闭 Web 服务失败: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("Web 服务异常退出: %w", err)
	}
}

// runView 同时服务 JSON API 与页面模板，展示串不进 JSON。
type runView struct {
	ID              string  `json:"id"`
	CreatedAt       string  `json:"created_at"`
	FutCode         string  `json:"fut_code"`
	IndexCode       string  `json:"index_code"`
	Strategy        string  `json:"strategy"`
	StartDate       string  `json:"start_date"`
	EndDate         string  `json:"end_date"`
	InitialCapital  float64 `json:"initial_capital"`
	FinalNAV        float64 `json:"final_nav"`
	TotalReturn     float64 `json:"total_return"`
	AnnualReturn    float64 `json:"annual_return"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	TradeCount      int     `json:"trade_count"`
	TotalCommission float64 `json:"total_commission"`

	TotalPct    string `json:"-"`
	AnnualPct   string `json:"-"`
	DrawdownPct string `json:"-"`
}

func toRunView(r store.RunRecord) runView {
	return runView{
		ID:              r.ID,
		CreatedAt:       r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		FutCode:         r.FutCode,
		IndexCode:       r.IndexCode,
		Strategy:        r.StrategyName,
		StartDate:       dateutil.Format(r.StartDate),
		EndDate:         dateutil.Format(r.EndDate),
		InitialCapital:  r.InitialCapital,
		FinalNAV:        r.FinalNAV,
		TotalReturn:     r.TotalReturn,
		AnnualReturn:    r.AnnualReturn,
		MaxDrawdown:     r.MaxDrawdown,
		SharpeRatio:     r.SharpeRatio,
		TradeCount:      r.TradeCount,
		TotalCommission: r.TotalCommission,
		TotalPct:        format.Percent(r.TotalReturn),
		AnnualPct:       format.Percent(r.AnnualReturn),
		DrawdownPct:     format.Percent(r.MaxDrawdown),
	}
}

type navView struct {
	Date        string  `json:"date"`
	NAV         float64 `json:"nav"`
	Benchmark   float64 `json:"benchmark"`
	MarginUsage float64 `json:"margin_usage"`
}

type tradeView struct {
	Date        string  `json:"date"`
	TsCode      string  `json:"ts_code"`
	Direction   string  `json:"direction"`
	Volume      int     `json:"volume"`
	Price       float64 `json:"price"`
	Amount      float64 `json:"amount"`
	Commission  float64 `json:"commission"`
	Reason      string  `json:"reason"`
	RealizedPnL float64 `json:"realized_pnl"`
}

func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := s.results.Runs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]runView, 0, len(runs))
	for _, r := range runs {
		views = append(views, toRunView(r))
	}
	c.JSON(http.StatusOK, gin.H{"runs": views, "count": len(views)})
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, ok, err := s.results.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "回测记录不存在"})
		return
	}
	c.JSON(http.StatusOK, toRunView(run))
}

func (s *Server) handleGetNAV(c *gin.Context) {
	points, err := s.results.NAVPoints(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]navView, 0, len(points))
	for _, p := range points {
		views = append(views, navView{
			Date:        dateutil.Format(p.TradeDate),
			NAV:         p.NAV,
			Benchmark:   p.BenchmarkNAV,
			MarginUsage: p.MarginUsage,
		})
	}
	c.JSON(http.StatusOK, gin.H{"points": views, "count": len(views)})
}

func (s *Server) handleGetTrades(c *gin.Context) {
	trades, err := s.results.Trades(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	views := make([]tradeView, 0, len(trades))
	for _, tr := range trades {
		views = append(views, tradeView{
			Date:        dateutil.Format(tr.TradeDate),
			TsCode:      tr.TsCode,
			Direction:   tr.Direction,
			Volume:      tr.Volume,
			Price:       tr.Price,
			Amount:      tr.Amount,
			Commission:  tr.Commission,
			Reason:      tr.Reason,
			RealizedPnL: tr.RealizedPnL,
		})
	}
	c.JSON(http.StatusOK, gin.H{"trades": views, "count": len(views)})
}

func (s *Server) handleRunsPage(c *gin.Context) {
	runs, err := s.results.Runs(c.Request.Context())
	if err != nil {
		c.String(http.StatusInternalServerError, "加载回测列表失败: %v", err)
		return
	}
	views := make([]runView, 0, len(runs))
	for _, r := range runs {
		views = append(views, toRunView(r))
	}
	c.HTML(http.StatusOK, "runs.html", gin.H{"Runs": views})
}

func (s *Server) handleRunPage(c *gin.Context) {
	run, ok, err := s.results.Run(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.String(http.StatusInternalServerError, "加载回测记录失败: %v", err)
		return
	}
	if !ok {
		c.String(http.StatusNotFound, "回测记录不存在: %s", c.Param("id"))
		return
	}
	c.HTML(http.StatusOK, "run.html", gin.H{"Run": toRunView(run)})
}
