package tool

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ProbeTimeout bounds the whole startup probe.
var ProbeTimeout = 3 * time.Second

// ProbeHost sends a few unprivileged ICMP echoes to host and returns the average RTT.
// Used only as a startup hint; an unreachable host does not stop the queue.
func ProbeHost(ctx context.Context, host string) (time.Duration, error) {
	pinger, err := probing.NewPinger(host)
	if err != nil {
		return 0, fmt.Errorf("failed to create pinger for %s: %v", host, err)
	}
	pinger.Count = 3
	pinger.Interval = 200 * time.Millisecond
	pinger.Timeout = ProbeTimeout
	pinger.SetPrivileged(false)

	if err := pinger.RunWithContext(ctx); err != nil {
		return 0, fmt.Errorf("failed to ping %s: %v", host, err)
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("host %s did not answer %d probes", host, stats.PacketsSent)
	}
	return stats.AvgRtt, nil
}
