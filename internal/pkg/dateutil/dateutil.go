package dateutil

import (
	"fmt"
	"time"
)

// 交易日期在领域层统一为 UTC 零点的 time.Time；
// YYYYMMDD 字符串只出现在 CSV / sqlite 边界。

const Layout = "20060102"

// Parse 解析 YYYYMMDD 字符串（tushare / wind 导出格式）。
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("非法交易日期 %q: %w", s, err)
	}
	return t, nil
}

// MustParse 测试与样例数据专用。
func MustParse(s string) time.Time {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Format 输出 YYYYMMDD。
func Format(t time.Time) string { return t.Format(Layout) }

// FromMilli 将毫秒时间戳归一到 UTC 零点（Binance K 线开盘时间）。
func FromMilli(ms int64) time.Time {
	t := time.UnixMilli(ms).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween 返回 from 到 to 的自然日天数（两端均为 UTC 零点时精确）。
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
