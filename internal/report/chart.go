package report

import (
	"fmt"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"futroll/internal/pkg/dateutil"
	"futroll/internal/store"
)

// WriteChart 输出净值页：上图为策略/基准/超额净值，下图为回撤与
// 滚动波动率。rollingVol 为 nil 或长度不符时下图只画回撤。
func WriteChart(path string, run store.RunRecord, points []store.NAVPointRecord, rollingVol []float64) error {
	if len(points) == 0 {
		return fmt.Errorf("净值序列为空，无法绘图")
	}

	dates := make([]string, len(points))
	nav := make([]opts.LineData, len(points))
	bench := make([]opts.LineData, len(points))
	excess := make([]opts.LineData, len(points))
	for i, p := range points {
		dates[i] = dateutil.Format(p.TradeDate)
		nav[i] = opts.LineData{Value: p.NAV}
		bench[i] = opts.LineData{Value: p.BenchmarkNAV}
		ratio := p.NAV
		if p.BenchmarkNAV > 0 {
			ratio = p.NAV / p.BenchmarkNAV
		}
		excess[i] = opts.LineData{Value: ratio}
	}

	navLine := charts.NewLine()
	navLine.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s %s 净值曲线", run.FutCode, run.StrategyName),
			Subtitle: fmt.Sprintf("%s ~ %s  run=%s",
				dateutil.Format(run.StartDate), dateutil.Format(run.EndDate), run.ID),
		}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "460px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	navLine.SetXAxis(dates).
		AddSeries("策略净值", nav).
		AddSeries("基准净值", bench).
		AddSeries("超额净值", excess).
		SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	riskLine := charts.NewLine()
	riskLine.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "回撤与滚动波动率"}),
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "320px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	dd := Drawdowns(points)
	ddItems := make([]opts.LineData, len(dd))
	for i, v := range dd {
		ddItems[i] = opts.LineData{Value: v}
	}
	riskLine.SetXAxis(dates).
		AddSeries("回撤", ddItems, charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.25)}))
	if len(rollingVol) == len(points) {
		volItems := make([]opts.LineData, len(rollingVol))
		for i, v := range rollingVol {
			volItems[i] = opts.LineData{Value: v}
		}
		riskLine.AddSeries("滚动年化波动率", volItems)
	}

	page := components.NewPage()
	page.AddCharts(navLine, riskLine)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建图表文件失败: %w", err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		return fmt.Errorf("渲染图表失败: %w", err)
	}
	return nil
}
