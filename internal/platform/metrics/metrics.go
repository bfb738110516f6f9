package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   atomic.Uint64
	clientErrors    atomic.Uint64
	serverErrors    atomic.Uint64
	rateLimited     atomic.Uint64
	totalDurationMs atomic.Uint64
	loginFailures   atomic.Uint64
	uploads         atomic.Uint64
	uploadedBytes   atomic.Uint64
	downloads       atomic.Uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.totalRequests.Add(1)
	switch {
	case status == http.StatusTooManyRequests:
		c.rateLimited.Add(1)
		c.clientErrors.Add(1)
	case status >= 500:
		c.serverErrors.Add(1)
	case status >= 400:
		c.clientErrors.Add(1)
	}
	if ms := duration.Milliseconds(); ms > 0 {
		c.totalDurationMs.Add(uint64(ms))
	}
}

func (c *Collector) LoginFailed() {
	if c == nil {
		return
	}
	c.loginFailures.Add(1)
}

func (c *Collector) Uploaded(size int64) {
	if c == nil {
		return
	}
	c.uploads.Add(1)
	if size > 0 {
		c.uploadedBytes.Add(uint64(size))
	}
}

func (c *Collector) Downloaded() {
	if c == nil {
		return
	}
	c.downloads.Add(1)
}

func (c *Collector) Snapshot() map[string]any {
	total := c.totalRequests.Load()
	totalMs := c.totalDurationMs.Load()
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":      total,
		"clientErrorsTotal":  c.clientErrors.Load(),
		"serverErrorsTotal":  c.serverErrors.Load(),
		"rateLimitedTotal":   c.rateLimited.Load(),
		"avgDurationMs":      avg,
		"totalDurationMs":    totalMs,
		"loginFailuresTotal": c.loginFailures.Load(),
		"uploadsTotal":       c.uploads.Load(),
		"uploadedBytesTotal": c.uploadedBytes.Load(),
		"downloadsTotal":     c.downloads.Load(),
	}
}

// Handler serves the current snapshot as JSON.
func (c *Collector) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c.Snapshot())
	})
}
