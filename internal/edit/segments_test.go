package edit

import (
	"errors"
	"math"
	"testing"
)

func floatPtr(v float64) *float64 { return &v }

func segmentsEqual(a []Segment, b []Segment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i].Start-b[i].Start) > 1e-6 || math.Abs(a[i].End-b[i].End) > 1e-6 {
			return false
		}
	}
	return true
}

func TestComputeKeepSegments(t *testing.T) {
	tests := []struct {
		name      string
		trimStart float64
		trimEnd   *float64
		cuts      []Interval
		duration  float64
		want      []Segment
	}{
		{
			name:     "no trim no cuts",
			duration: 30,
			want:     []Segment{{0, 30}},
		},
		{
			name:     "unsorted disjoint cuts",
			duration: 30,
			cuts:     []Interval{{10, 15}, {2, 4}},
			want:     []Segment{{0, 2}, {4, 10}, {15, 30}},
		},
		{
			name:     "overlapping cuts merged",
			duration: 30,
			cuts:     []Interval{{2, 6}, {4, 8}},
			want:     []Segment{{0, 2}, {8, 30}},
		},
		{
			name:     "touching cuts merged",
			duration: 30,
			cuts:     []Interval{{2, 6}, {6, 8}},
			want:     []Segment{{0, 2}, {8, 30}},
		},
		{
			name:      "trim window only",
			trimStart: 5,
			trimEnd:   floatPtr(25),
			duration:  30,
			want:      []Segment{{5, 25}},
		},
		{
			name:      "cut clipped to window",
			trimStart: 5,
			trimEnd:   floatPtr(25),
			cuts:      []Interval{{0, 10}},
			duration:  30,
			want:      []Segment{{10, 25}},
		},
		{
			name:      "cut outside window discarded",
			trimStart: 5,
			trimEnd:   floatPtr(25),
			cuts:      []Interval{{26, 29}},
			duration:  30,
			want:      []Segment{{5, 25}},
		},
		{
			name:     "cut at window start",
			duration: 30,
			cuts:     []Interval{{0, 5}},
			want:     []Segment{{5, 30}},
		},
		{
			name:     "cut at window end",
			duration: 30,
			cuts:     []Interval{{25, 30}},
			want:     []Segment{{0, 25}},
		},
		{
			name:     "cuts cover window",
			duration: 30,
			cuts:     []Interval{{0, 20}, {15, 30}},
			want:     nil,
		},
		{
			name:     "trimEnd beyond duration clamped",
			trimEnd:  floatPtr(60),
			duration: 30,
			want:     []Segment{{0, 30}},
		},
		{
			name:     "cut past window end clipped",
			duration: 30,
			cuts:     []Interval{{25, 40}},
			want:     []Segment{{0, 25}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeKeepSegments(tt.trimStart, tt.trimEnd, tt.cuts, tt.duration)
			if err != nil {
				t.Fatalf("ComputeKeepSegments() error = %v", err)
			}
			if !segmentsEqual(got, tt.want) {
				t.Errorf("ComputeKeepSegments() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeKeepSegments_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		trimStart float64
		trimEnd   *float64
		cuts      []Interval
		duration  float64
		wantField string
	}{
		{"negative trim start", -1, nil, nil, 30, "trimStart"},
		{"negative trim end", 0, floatPtr(-5), nil, 30, "trimEnd"},
		{"trim start at window end", 30, nil, nil, 30, "trimStart"},
		{"trim start past trim end", 20, floatPtr(10), nil, 30, "trimStart"},
		{"inverted cut", 0, nil, []Interval{{20, 10}}, 30, "cuts[0]"},
		{"zero-length cut", 0, nil, []Interval{{5, 5}}, 30, "cuts[0]"},
		{"later inverted cut", 0, nil, []Interval{{1, 2}, {9, 3}}, 30, "cuts[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeKeepSegments(tt.trimStart, tt.trimEnd, tt.cuts, tt.duration)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("error field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

// Kept duration must equal window duration minus merged cut duration inside
// the window, and segments must be strictly ascending and non-overlapping.
func TestComputeKeepSegments_DurationInvariant(t *testing.T) {
	tests := []struct {
		name      string
		trimStart float64
		trimEnd   *float64
		cuts      []Interval
		duration  float64
		wantKept  float64
	}{
		{"disjoint cuts", 0, nil, []Interval{{10, 15}, {2, 4}}, 30, 23},
		{"overlapping cuts", 0, nil, []Interval{{2, 6}, {4, 8}}, 30, 24},
		{"trim plus cuts", 5, floatPtr(25), []Interval{{0, 10}, {20, 22}}, 30, 13},
		{"duplicate cuts", 0, nil, []Interval{{3, 7}, {3, 7}, {3, 7}}, 30, 26},
		{"many overlapping", 0, nil, []Interval{{1, 4}, {2, 5}, {3, 6}, {10, 11}}, 20, 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeKeepSegments(tt.trimStart, tt.trimEnd, tt.cuts, tt.duration)
			if err != nil {
				t.Fatalf("ComputeKeepSegments() error = %v", err)
			}

			if kept := TotalDuration(got); math.Abs(kept-tt.wantKept) > 1e-6 {
				t.Errorf("total kept duration = %g, want %g", kept, tt.wantKept)
			}

			for i, s := range got {
				if s.Start >= s.End {
					t.Errorf("segment %d is empty or inverted: %v", i, s)
				}
				if i > 0 && got[i-1].End > s.Start+1e-9 {
					t.Errorf("segments %d and %d overlap: %v, %v", i-1, i, got[i-1], s)
				}
			}
		})
	}
}

func TestCoversWindow(t *testing.T) {
	tests := []struct {
		name      string
		segments  []Segment
		trimStart float64
		windowEnd float64
		want      bool
	}{
		{"whole window", []Segment{{5, 25}}, 5, 25, true},
		{"split by cut", []Segment{{5, 10}, {12, 25}}, 5, 25, false},
		{"shrunk by cut at start", []Segment{{7, 25}}, 5, 25, false},
		{"empty", nil, 5, 25, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoversWindow(tt.segments, tt.trimStart, tt.windowEnd); got != tt.want {
				t.Errorf("CoversWindow() = %v, want %v", got, tt.want)
			}
		})
	}
}
