package edit

import (
	"fmt"
	"math"
	"sort"
)

// epsilon absorbs float drift when comparing cut boundaries.
const epsilon = 1e-9

// Segment is a derived time range of the source that survives cut removal.
// Start and End are seconds on the original media timeline, Start < End.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the segment length in seconds.
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// ComputeKeepSegments reduces a trim window plus an arbitrary set of cut
// intervals into the minimal ordered list of segments to keep. Cuts may be
// unsorted and may overlap; overlapping or touching cuts are merged before
// segment boundaries are derived. The returned segments are strictly
// ascending and non-overlapping, on the original source timeline.
//
// An empty result means the cuts cover the whole window and there is
// nothing left to output; the caller decides how to report that.
func ComputeKeepSegments(trimStart float64, trimEnd *float64, cuts []Interval, sourceDuration float64) ([]Segment, error) {
	if trimStart < 0 {
		return nil, &ValidationError{Field: "trimStart", Reason: "must not be negative"}
	}

	windowEnd := sourceDuration
	if trimEnd != nil {
		if *trimEnd < 0 {
			return nil, &ValidationError{Field: "trimEnd", Reason: "must not be negative"}
		}
		windowEnd = *trimEnd
	}
	// ffmpeg stops at end of stream anyway; a window reaching past the
	// probed duration is clamped rather than rejected.
	if sourceDuration > 0 && windowEnd > sourceDuration {
		windowEnd = sourceDuration
	}

	if trimStart >= windowEnd-epsilon {
		return nil, &ValidationError{
			Field:  "trimStart",
			Reason: fmt.Sprintf("trim window [%g, %g) is empty", trimStart, windowEnd),
		}
	}

	for i, c := range cuts {
		if c.Start >= c.End {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("cuts[%d]", i),
				Reason: fmt.Sprintf("start %g must be before end %g", c.Start, c.End),
			}
		}
	}

	clipped := clipToWindow(cuts, trimStart, windowEnd)
	merged := mergeIntervals(clipped)

	var segments []Segment
	cursor := trimStart
	for _, cut := range merged {
		if cut.Start > cursor+epsilon {
			segments = append(segments, Segment{Start: cursor, End: cut.Start})
		}
		cursor = math.Max(cursor, cut.End)
	}
	if cursor < windowEnd-epsilon {
		segments = append(segments, Segment{Start: cursor, End: windowEnd})
	}

	return segments, nil
}

// clipToWindow intersects every cut with [start, end), dropping cuts that
// fall entirely outside the window.
func clipToWindow(cuts []Interval, start, end float64) []Interval {
	var clipped []Interval
	for _, c := range cuts {
		cs := math.Max(c.Start, start)
		ce := math.Min(c.End, end)
		if ce > cs+epsilon {
			clipped = append(clipped, Interval{Start: cs, End: ce})
		}
	}
	return clipped
}

// mergeIntervals sorts intervals by start and merges overlapping or touching
// ones into maximal disjoint intervals.
func mergeIntervals(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	merged := []Interval{sorted[0]}
	for _, next := range sorted[1:] {
		last := &merged[len(merged)-1]
		if next.Start <= last.End+epsilon {
			last.End = math.Max(last.End, next.End)
		} else {
			merged = append(merged, next)
		}
	}
	return merged
}

// TotalDuration sums the durations of the given segments.
func TotalDuration(segments []Segment) float64 {
	var total float64
	for _, s := range segments {
		total += s.Duration()
	}
	return total
}

// CoversWindow reports whether the segments are exactly the single segment
// [trimStart, windowEnd), i.e. no cut removed anything. The orchestrator
// uses this to skip the cut stage entirely.
func CoversWindow(segments []Segment, trimStart, windowEnd float64) bool {
	if len(segments) != 1 {
		return false
	}
	return math.Abs(segments[0].Start-trimStart) < epsilon &&
		math.Abs(segments[0].End-windowEnd) < epsilon
}
