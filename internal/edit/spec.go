// Package edit defines the declarative edit description accepted by
// clipsmith and the pure functions that compile it: the keep-segment
// calculator and the filter chain builder.
package edit

import (
	"encoding/json"
	"fmt"
)

// Spec is a caller-supplied description of one requested edit. It is
// immutable for the duration of a pipeline run.
type Spec struct {
	TrimStart float64    `json:"trimStart"`
	TrimEnd   *float64   `json:"trimEnd"`
	Cuts      []Interval `json:"cuts"`
	Filters   FilterList `json:"filters"`
}

// Interval is a half-open [Start, End) time range on the source timeline,
// in seconds.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the interval length in seconds.
func (iv Interval) Duration() float64 {
	return iv.End - iv.Start
}

// ValidationError reports a malformed edit spec. Field names the offending
// part of the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the spec's filter parameters and cut intervals for values
// that can never produce a runnable pipeline. Range checks that depend on
// the source duration happen in ComputeKeepSegments.
func (s *Spec) Validate() error {
	if s.TrimStart < 0 {
		return &ValidationError{Field: "trimStart", Reason: "must not be negative"}
	}
	if s.TrimEnd != nil && *s.TrimEnd < 0 {
		return &ValidationError{Field: "trimEnd", Reason: "must not be negative"}
	}
	for i, c := range s.Cuts {
		if c.Start >= c.End {
			return &ValidationError{
				Field:  fmt.Sprintf("cuts[%d]", i),
				Reason: fmt.Sprintf("start %g must be before end %g", c.Start, c.End),
			}
		}
		if c.Start < 0 {
			return &ValidationError{
				Field:  fmt.Sprintf("cuts[%d]", i),
				Reason: "start must not be negative",
			}
		}
	}
	for i, f := range s.Filters {
		if err := validateFilter(i, f); err != nil {
			return err
		}
	}
	return nil
}

func validateFilter(index int, f FilterOp) error {
	field := fmt.Sprintf("filters[%d]", index)
	switch op := f.(type) {
	case Blur:
		if op.Radius < 1 {
			return &ValidationError{Field: field, Reason: "blur radius must be at least 1"}
		}
	case Speed:
		if op.Factor <= 0 {
			return &ValidationError{Field: field, Reason: "speed factor must be positive"}
		}
	case Volume:
		if op.Value < 0 {
			return &ValidationError{Field: field, Reason: "volume must not be negative"}
		}
	}
	return nil
}

// FilterOp is one abstract visual or audio transformation. The set of
// implementations is closed: unknown filter types are rejected when the
// request is decoded instead of being silently dropped.
type FilterOp interface {
	filterType() string
	params() map[string]any
}

type Brightness struct{ Value float64 }
type Contrast struct{ Value float64 }
type Saturation struct{ Value float64 }
type Blur struct{ Radius int }
type Grayscale struct{}
type Sepia struct{}
type Volume struct{ Value float64 }
type Speed struct{ Factor float64 }

func (Brightness) filterType() string { return "brightness" }
func (Contrast) filterType() string   { return "contrast" }
func (Saturation) filterType() string { return "saturation" }
func (Blur) filterType() string       { return "blur" }
func (Grayscale) filterType() string  { return "grayscale" }
func (Sepia) filterType() string      { return "sepia" }
func (Volume) filterType() string     { return "volume" }
func (Speed) filterType() string      { return "speed" }

func (f Brightness) params() map[string]any { return map[string]any{"value": f.Value} }
func (f Contrast) params() map[string]any   { return map[string]any{"value": f.Value} }
func (f Saturation) params() map[string]any { return map[string]any{"value": f.Value} }
func (f Blur) params() map[string]any       { return map[string]any{"radius": f.Radius} }
func (Grayscale) params() map[string]any    { return map[string]any{} }
func (Sepia) params() map[string]any        { return map[string]any{} }
func (f Volume) params() map[string]any     { return map[string]any{"value": f.Value} }
func (f Speed) params() map[string]any      { return map[string]any{"speed": f.Factor} }

// FilterList is an ordered sequence of filter operations. On the wire each
// element is a {"type": ..., "params": {...}} envelope.
type FilterList []FilterOp

type filterEnvelope struct {
	Type   string          `json:"type"`
	Params json.RawMessage `json:"params,omitempty"`
}

func (fl FilterList) MarshalJSON() ([]byte, error) {
	out := make([]struct {
		Type   string         `json:"type"`
		Params map[string]any `json:"params"`
	}, len(fl))
	for i, f := range fl {
		out[i].Type = f.filterType()
		out[i].Params = f.params()
	}
	return json.Marshal(out)
}

func (fl *FilterList) UnmarshalJSON(data []byte) error {
	var envelopes []filterEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return err
	}

	ops := make(FilterList, 0, len(envelopes))
	for i, env := range envelopes {
		op, err := decodeFilter(i, env)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}
	*fl = ops
	return nil
}

func decodeFilter(index int, env filterEnvelope) (FilterOp, error) {
	field := fmt.Sprintf("filters[%d]", index)

	decodeParams := func(dst any) error {
		if len(env.Params) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Params, dst); err != nil {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("malformed params: %v", err)}
		}
		return nil
	}

	switch env.Type {
	case "brightness":
		var p struct {
			Value float64 `json:"value"`
		}
		if err := decodeParams(&p); err != nil {
			return nil, err
		}
		return Brightness{Value: p.Value}, nil

	case "contrast":
		p := struct {
			Value float64 `json:"value"`
		}{Value: 1}
		if err := decodeParams(&p); err != nil {
			return nil, err
		}
		return Contrast{Value: p.Value}, nil

	case "saturation":
		p := struct {
			Value float64 `json:"value"`
		}{Value: 1}
		if err := decodeParams(&p); err != nil {
			return nil, err
		}
		return Saturation{Value: p.Value}, nil

	case "blur":
		p := struct {
			Radius int `json:"radius"`
		}{Radius: 2}
		if err := decodeParams(&p); err != nil {
			return nil, err
		}
		return Blur{Radius: p.Radius}, nil

	case "grayscale":
		return Grayscale{}, nil

	case "sepia":
		return Sepia{}, nil

	case "volume":
		p := struct {
			Value float64 `json:"value"`
		}{Value: 1}
		if err := decodeParams(&p); err != nil {
			return nil, err
		}
		return Volume{Value: p.Value}, nil

	case "speed":
		p := struct {
			Speed float64 `json:"speed"`
		}{Speed: 1}
		if err := decodeParams(&p); err != nil {
			return nil, err
		}
		return Speed{Factor: p.Speed}, nil

	case "":
		return nil, &ValidationError{Field: field, Reason: "missing filter type"}

	default:
		return nil, &ValidationError{Field: field, Reason: fmt.Sprintf("unknown filter type %q", env.Type)}
	}
}
