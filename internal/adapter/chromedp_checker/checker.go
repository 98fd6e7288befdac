package chromedp_checker

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/adapter/httpcheck"
	"github.com/user/linkchecker-service/internal/entity"
)

// BrowserChecker loads each URL in headless Chrome and classifies the
// main document response. It catches pages that refuse non-browser clients.
type BrowserChecker struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	slots    chan struct{}
	timeout  time.Duration
	log      *zap.Logger
}

// NewBrowserChecker starts one browser allocator shared by up to maxConcurrency tabs.
func NewBrowserChecker(maxConcurrency int, pageLoadTimeout time.Duration, log *zap.Logger) *BrowserChecker {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36`),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &BrowserChecker{
		allocCtx: allocCtx,
		cancel:   cancel,
		slots:    make(chan struct{}, maxConcurrency),
		timeout:  pageLoadTimeout,
		log:      log,
	}
}

// Check navigates to url in a fresh tab.
func (c *BrowserChecker) Check(ctx context.Context, url string) entity.CheckResult {
	select {
	case c.slots <- struct{}{}:
		defer func() { <-c.slots }()
	case <-ctx.Done():
		return resultFor(nil, ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(c.allocCtx, chromedp.WithLogf(c.log.Sugar().Debugf))
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.timeout)
	defer cancelTimeout()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(url))
	result := resultFor(resp, err)
	c.log.Debug("Browser check finished", zap.String("url", url), zap.Stringer("status", result.Status), zap.String("reason", result.Reason))
	return result
}

// Close shuts the browser down.
func (c *BrowserChecker) Close() {
	c.cancel()
}

func resultFor(resp *network.Response, err error) entity.CheckResult {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return entity.CheckResult{Status: entity.StatusBroken, Reason: "timeout"}
	case err != nil:
		return entity.CheckResult{Status: entity.StatusBroken, Reason: "navigation failed: " + err.Error()}
	case resp == nil:
		return entity.CheckResult{Status: entity.StatusBroken, Reason: "no response"}
	}
	return httpcheck.Classify(int(resp.Status))
}
