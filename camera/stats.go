package camera

import (
	"math"
	"time"
)

// rateStabilityThreshold is the maximum FPS standard deviation, as a
// fraction of the mean, for a delivery rate to count as stable.
// Example: 30 fps mean is stable while the stddev stays under 4.5 fps.
const rateStabilityThreshold = 0.15

// RateStats summarizes a measured frame delivery rate.
type RateStats struct {
	// Frames is the number of timestamps the window covered.
	Frames int
	// Duration is the span of the window.
	Duration time.Duration
	// FPSMean is the overall rate across the window.
	FPSMean float64
	// FPSStdDev is the standard deviation of the instantaneous rate.
	FPSStdDev float64
	// FPSMin and FPSMax bound the instantaneous rate.
	FPSMin float64
	FPSMax float64
	// Stable is true when the stddev stays under 15% of the mean.
	Stable bool
}

// CalculateRateStats derives rate statistics from a series of frame
// timestamps spanning totalDuration.
//
// The instantaneous rate of each inter-frame interval feeds the
// stddev/min/max figures; the mean is the overall frames-over-duration
// rate. Fewer than two frames, or a non-positive duration, yields an
// empty, unstable result.
func CalculateRateStats(frameTimes []time.Time, totalDuration time.Duration) RateStats {
	n := len(frameTimes)
	stats := RateStats{Frames: n, Duration: totalDuration}
	if n < 2 || totalDuration <= 0 {
		return stats
	}

	stats.FPSMean = float64(n) / totalDuration.Seconds()

	instantaneous := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneous = append(instantaneous, 1.0/interval)
		}
	}
	if len(instantaneous) == 0 {
		return stats
	}

	stats.FPSMin = instantaneous[0]
	stats.FPSMax = instantaneous[0]
	for _, fps := range instantaneous {
		if fps < stats.FPSMin {
			stats.FPSMin = fps
		}
		if fps > stats.FPSMax {
			stats.FPSMax = fps
		}
	}

	var sumSq float64
	for _, fps := range instantaneous {
		d := fps - stats.FPSMean
		sumSq += d * d
	}
	stats.FPSStdDev = math.Sqrt(sumSq / float64(len(instantaneous)))

	stats.Stable = stats.FPSStdDev < rateStabilityThreshold*stats.FPSMean
	return stats
}
