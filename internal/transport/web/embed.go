package web

import "embed"

// Templates 包含回测结果页面的 HTML 模板。
//
//go:embed templates/*.html
var Templates embed.FS

// Static 包含静态资源（CSS）。
//
//go:embed static
var Static embed.FS
