package report

import (
	"fmt"
	"os"
	"strings"

	"futroll/internal/pkg/dateutil"
	"futroll/internal/pkg/format"
	"futroll/internal/store"
)

// tradeTail 摘要里最多列出的成交条数。
const tradeTail = 20

// WriteSummary 输出 markdown 摘要：运行参数、绩效表与最近成交。
func WriteSummary(path string, run store.RunRecord, st Stats, trades []store.TradeRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# 回测报告 %s\n\n", run.ID)
	fmt.Fprintf(&b, "- 品种: %s（基准 %s）\n", run.FutCode, run.IndexCode)
	fmt.Fprintf(&b, "- 策略: %s\n", run.StrategyName)
	fmt.Fprintf(&b, "- 区间: %s ~ %s（%d 个交易日）\n",
		dateutil.Format(run.StartDate), dateutil.Format(run.EndDate), st.Days)
	fmt.Fprintf(&b, "- 初始资金: %s\n", format.Amount(run.InitialCapital))
	fmt.Fprintf(&b, "- 生成时间: %s\n\n", run.CreatedAt.UTC().Format("2006-01-02 15:04:05"))

	b.WriteString("## 绩效指标\n\n")
	b.WriteString("| 指标 | 数值 |\n|---|---|\n")
	row := func(name, value string) {
		fmt.Fprintf(&b, "| %s | %s |\n", name, value)
	}
	row("期末净值", format.NAV(st.FinalNAV))
	row("区间收益", format.Percent(st.TotalReturn))
	row("年化收益", format.Percent(st.AnnualReturn))
	row("年化波动率", format.Percent(st.AnnualVolatility))
	row("夏普比率", fmt.Sprintf("%.2f", st.SharpeRatio))
	if st.MaxDrawdown < 0 {
		row("最大回撤", fmt.Sprintf("%s（%s ~ %s）",
			format.Percent(st.MaxDrawdown), dateutil.Format(st.MaxDrawdownStart), dateutil.Format(st.MaxDrawdownEnd)))
	} else {
		row("最大回撤", format.Percent(0))
	}
	row("基准区间收益", format.Percent(st.BenchmarkReturn))
	row("年化超额", format.Percent(st.ExcessAnnual))
	row("换月次数", fmt.Sprintf("%d", st.RollCount))
	row("成交笔数", fmt.Sprintf("%d", st.TradeCount))
	row("平仓胜率", format.Percent(st.WinRate))
	row("手续费合计", format.Amount(st.TotalCommission))

	b.WriteString("\n## 最近成交\n\n")
	if len(trades) == 0 {
		b.WriteString("无成交记录。\n")
	} else {
		start := 0
		if len(trades) > tradeTail {
			start = len(trades) - tradeTail
			fmt.Fprintf(&b, "仅展示最近 %d 笔，共 %d 笔。\n\n", tradeTail, len(trades))
		}
		b.WriteString("| 日期 | 合约 | 方向 | 手数 | 价格 | 手续费 | 原因 | 平仓盈亏 |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|\n")
		for _, tr := range trades[start:] {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %.2f | %.2f | %s | %.2f |\n",
				dateutil.Format(tr.TradeDate), tr.TsCode, tr.Direction,
				tr.Volume, tr.Price, tr.Commission, tr.Reason, tr.RealizedPnL)
		}
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("写入报告摘要失败: %w", err)
	}
	return nil
}
