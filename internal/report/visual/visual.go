// Package visual 用 headless Chrome 把图表页导出为 PNG。
// Chrome 不可用时调用方应降级为仅保留 HTML。
package visual

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	"futroll/internal/logger"
)

// 常见的 Chrome/Chromium 可执行名，探测到任意一个即认为可用。
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

const defaultRenderTimeout = 30 * time.Second

// EnsureHeadlessAvailable 探测本机是否有可用的 headless Chrome。
func EnsureHeadlessAvailable() bool {
	for _, name := range chromeCandidates {
		if _, err := exec.LookPath(name); err == nil {
			return true
		}
	}
	return false
}

// ExportPNG 渲染 HTML 图表页并整页截图写入 pngPath。
func ExportPNG(ctx context.Context, htmlPath, pngPath string, timeout time.Duration) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("解析图表路径失败: %w", err)
	}
	if timeout <= 0 {
		timeout = defaultRenderTimeout
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()
	runCtx, cancelRun := chromedp.NewContext(allocCtx)
	defer cancelRun()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, timeout)
	defer cancelTimeout()

	var buf []byte
	err = chromedp.Run(runCtx,
		chromedp.Navigate("file://"+abs),
		// echarts 渲染出 canvas 即认为加载完成
		chromedp.WaitVisible("canvas", chromedp.ByQuery),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.FullScreenshot(&buf, 95),
	)
	if err != nil {
		return fmt.Errorf("headless 渲染失败: %w", err)
	}
	if err := os.WriteFile(pngPath, buf, 0o644); err != nil {
		return fmt.Errorf("写入 PNG 失败: %w", err)
	}
	logger.Infof("✓ 图表 PNG 导出完成: %s", pngPath)
	return nil
}
