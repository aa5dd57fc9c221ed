package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"futroll/internal/config"
	"futroll/internal/logger"
	"futroll/internal/report/visual"
	"futroll/internal/store"
)

// Output 一次报告生成的产物路径与指标。
type Output struct {
	Stats       Stats
	ChartPath   string
	SummaryPath string
	PNGPath     string // 未导出时为空
}

// Writer 把一次回测的结果落成报告文件。
type Writer struct {
	cfg config.ReportConfig
}

func NewWriter(cfg config.ReportConfig) *Writer {
	return &Writer{cfg: cfg}
}

// Write 生成图表 HTML 与 markdown 摘要；配置开启且本机有
// headless Chrome 时追加 PNG，否则降级并告警。
func (w *Writer) Write(ctx context.Context, run store.RunRecord, points []store.NAVPointRecord, trades []store.TradeRecord) (*Output, error) {
	if err := os.MkdirAll(w.cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建报告目录失败: %w", err)
	}

	st := Compute(points, trades)
	rolling := RollingVolatility(points, w.cfg.RollingWindow)

	chartPath := filepath.Join(w.cfg.OutDir, fmt.Sprintf("nav_%s.html", run.ID))
	if err := WriteChart(chartPath, run, points, rolling); err != nil {
		return nil, err
	}
	summaryPath := filepath.Join(w.cfg.OutDir, fmt.Sprintf("summary_%s.md", run.ID))
	if err := WriteSummary(summaryPath, run, st, trades); err != nil {
		return nil, err
	}

	out := &Output{Stats: st, ChartPath: chartPath, SummaryPath: summaryPath}
	if w.cfg.RenderPNG {
		if !visual.EnsureHeadlessAvailable() {
			logger.Warnf("未检测到 headless Chrome，PNG 导出降级为仅 HTML")
		} else {
			pngPath := filepath.Join(w.cfg.OutDir, fmt.Sprintf("nav_%s.png", run.ID))
			if err := visual.ExportPNG(ctx, chartPath, pngPath, 0); err != nil {
				logger.Warnf("PNG 导出失败，保留 HTML: %v", err)
			} else {
				out.PNGPath = pngPath
			}
		}
	}
	logger.Infof("✓ 报告生成完成: %s", summaryPath)
	return out, nil
}
