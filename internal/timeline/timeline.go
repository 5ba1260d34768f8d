// Package timeline implements the interval algebra behind trimming: merging
// caller-supplied removal ranges and computing the retained complement.
package timeline

import (
	"errors"
	"sort"
)

// ErrAllContentRemoved is reported when the removal ranges cover the whole
// timeline and nothing would be retained.
var ErrAllContentRemoved = errors.New("all content would be removed: at least one segment must be retained")

// Range is a half-open [Start, End) interval in seconds.
type Range struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the span of the range in seconds.
func (r Range) Duration() float64 {
	return r.End - r.Start
}

// MergeRanges sorts ranges by start and coalesces any pair that overlaps or
// touches. The result is the minimal ascending disjoint cover of the input.
// Ranges are assumed pre-validated (start >= 0, end > start).
func MergeRanges(ranges []Range) []Range {
	if len(ranges) == 0 {
		return nil
	}

	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := sorted[:1]
	for _, r := range sorted[1:] {
		last := &merged[len(merged)-1]
		if r.Start <= last.End {
			if r.End > last.End {
				last.End = r.End
			}
			continue
		}
		merged = append(merged, r)
	}
	return merged
}

// KeepSegments returns the complement of the merged removal ranges within
// [0, duration): the ascending, disjoint list of segments to retain. An
// empty removal set keeps the whole timeline. When nothing would be
// retained it returns ErrAllContentRemoved.
func KeepSegments(duration float64, removals []Range) ([]Range, error) {
	merged := MergeRanges(removals)

	var keep []Range
	cursor := 0.0
	for _, r := range merged {
		if r.Start > cursor {
			keep = append(keep, Range{Start: cursor, End: r.Start})
		}
		if r.End > cursor {
			cursor = r.End
		}
	}
	if cursor < duration {
		keep = append(keep, Range{Start: cursor, End: duration})
	}

	if len(keep) == 0 {
		return nil, ErrAllContentRemoved
	}
	return keep, nil
}
