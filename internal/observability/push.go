package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends the pipeline collectors to a Prometheus pushgateway. An empty url is a no-op.
func Push(ctx context.Context, url, job, instance string) error {
	if url == "" {
		return nil
	}
	pusher := push.New(url, job)
	for _, c := range Collectors {
		pusher = pusher.Collector(c)
	}
	if instance != "" {
		pusher = pusher.Grouping("instance", instance)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}
