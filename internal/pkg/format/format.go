// Package format 报表与页面共用的数字格式化。
package format

import (
	"fmt"
	"strings"
)

// Percent 小数转百分比展示，-0.0234 -> "-2.34%"。
func Percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// NAV 净值固定四位小数。
func NAV(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

// Amount 金额按千分位分组，保留两位小数，1234567.8 -> "1,234,567.80"。
func Amount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, ch := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(ch)
	}
	b.WriteByte('.')
	b.WriteString(fracPart)
	return b.String()
}
