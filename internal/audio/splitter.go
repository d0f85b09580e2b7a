// Package audio cuts long recordings into chunks at silent regions found
// by the tracker.
package audio

import (
	"time"

	"github.com/maauso/silencetrack/internal/report"
)

// SplitOpts configures the behavior of audio splitting.
type SplitOpts struct {
	// ChunkTarget is the target duration for each audio chunk.
	// Audio will be split at silence boundaries close to this duration.
	// Default: 45 seconds.
	ChunkTarget time.Duration

	// MinSilence is the minimum region length to consider for a split point.
	// Default: 500 milliseconds.
	MinSilence time.Duration

	// MinChunk is the shortest chunk a silence split may produce.
	// Default: 1 second.
	MinChunk time.Duration
}

// DefaultSplitOpts returns the default options for audio splitting.
func DefaultSplitOpts() SplitOpts {
	return SplitOpts{
		ChunkTarget: 45 * time.Second,
		MinSilence:  500 * time.Millisecond,
		MinChunk:    time.Second,
	}
}

// SplitPoints picks the times, in seconds, at which a stream of the given
// duration should be cut. Each cut falls in the middle of the silent region
// closest to the next target boundary, within a third of the target either
// way; stretches without usable silence are cut at the target itself.
// Streams no longer than the target are not cut.
func SplitPoints(regions []report.Region, totalDuration float64, opts SplitOpts) []float64 {
	target := opts.ChunkTarget.Seconds()
	if target <= 0 || totalDuration <= target {
		return nil
	}
	minChunk := opts.MinChunk.Seconds()

	candidates := usableRegions(regions, opts.MinSilence.Seconds())
	if len(candidates) == 0 {
		return fixedSplitPoints(totalDuration, target, minChunk)
	}

	var points []float64
	lastSplit := 0.0
	for lastSplit < totalDuration-target/2 {
		idealPoint := lastSplit + target
		next := idealPoint

		if best := findBestSilence(candidates, idealPoint, target/3); best != nil {
			if mid := midpoint(*best); mid > lastSplit+minChunk {
				next = mid
			}
		}

		if next >= totalDuration-minChunk {
			break
		}
		points = append(points, next)
		lastSplit = next
	}

	return points
}

// usableRegions keeps regions of at least minLen seconds.
func usableRegions(regions []report.Region, minLen float64) []report.Region {
	out := make([]report.Region, 0, len(regions))
	for _, r := range regions {
		if r.Length >= minLen {
			out = append(out, r)
		}
	}
	return out
}

// fixedSplitPoints generates evenly spaced split points when no silences are found.
func fixedSplitPoints(totalDuration, target, minChunk float64) []float64 {
	var points []float64
	for t := target; t < totalDuration-minChunk; t += target {
		points = append(points, t)
	}
	return points
}

// findBestSilence finds the region whose middle is closest to the ideal
// point within tolerance. Regions are in stream order.
func findBestSilence(regions []report.Region, idealPoint, tolerance float64) *report.Region {
	var best *report.Region
	bestDistance := tolerance

	for i := range regions {
		mid := midpoint(regions[i])
		if mid < idealPoint-tolerance {
			continue
		}
		if mid > idealPoint+tolerance {
			break
		}

		distance := abs(mid - idealPoint)
		if distance < bestDistance {
			bestDistance = distance
			best = &regions[i]
		}
	}

	return best
}

func midpoint(r report.Region) float64 {
	return (r.Start + r.End) / 2
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
