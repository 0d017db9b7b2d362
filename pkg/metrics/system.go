package metrics

import (
	"context"

	"github.com/shirou/gopsutil/v4/cpu"
)

// cpuPercent is the host CPU utilisation since the previous call. Failures
// read as zero.
func cpuPercent(ctx context.Context) float64 {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(percents) == 0 {
		return 0
	}
	return percents[0]
}
