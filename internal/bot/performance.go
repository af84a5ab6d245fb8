package bot

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"discord-invite-tracker/internal/metrics"

	"go.uber.org/zap"
)

// PerfTransport wraps http.RoundTripper to track REST latency
type PerfTransport struct {
	Base    http.RoundTripper
	Metrics *metrics.Metrics
}

func (t *PerfTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.Base.RoundTrip(req)
	t.Metrics.ObserveREST(req.Method, statusClass(resp, err), time.Since(start).Seconds())
	return resp, err
}

// statusClass buckets a response as "2xx", "4xx" and so on.
func statusClass(resp *http.Response, err error) string {
	if err != nil || resp == nil {
		return "error"
	}
	return strconv.Itoa(resp.StatusCode/100) + "xx"
}

// monitorHeartbeat samples gateway heartbeat latency until ctx is done.
func (b *Bot) monitorHeartbeat(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			latency := b.Session.HeartbeatLatency()
			b.metrics.Heartbeat(latency.Seconds())
			if latency > 500*time.Millisecond {
				b.logger.Warn("high gateway latency", zap.Duration("latency", latency))
			}
		}
	}
}
