package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Pusher delivers the process registry to a Prometheus Pushgateway after a
// run finishes. Batch jobs are gone before a scrape would happen, so push
// is the only way their final metrics survive.
type Pusher struct {
	url string
	job string
}

func NewPusher(url, job string) *Pusher {
	return &Pusher{url: url, job: job}
}

// Push sends all default-registry metrics, grouped by symbol and run id so
// successive runs do not clobber each other on the gateway.
func (p *Pusher) Push(ctx context.Context, symbol, runID string) error {
	err := push.New(p.url, p.job).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("symbol", symbol).
		Grouping("run_id", runID).
		PushContext(ctx)
	if err != nil {
		return fmt.Errorf("pushgateway: %w", err)
	}
	return nil
}
