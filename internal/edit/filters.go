package edit

import (
	"fmt"
	"strconv"
)

// FilterChain holds the per-stream FFmpeg filter expressions compiled from a
// filter list. Order within each chain follows the order of the source
// filter list. Either chain may be empty; an empty chain means that stream
// is copied untouched.
type FilterChain struct {
	Video []string
	Audio []string
}

// Empty reports whether no filter touches either stream.
func (c FilterChain) Empty() bool {
	return len(c.Video) == 0 && len(c.Audio) == 0
}

// atempo only accepts factors in [0.5, 2.0] per stage; anything outside is
// decomposed into a chain of in-range stages.
const (
	atempoMin = 0.5
	atempoMax = 2.0
)

// BuildFilterChain maps each filter operation onto its FFmpeg filter
// expressions. A Speed op contributes to both chains with numerically
// consistent factors (video setpts 1/f, audio atempo f) so the resulting
// stream durations match exactly.
func BuildFilterChain(filters []FilterOp) FilterChain {
	var chain FilterChain

	for _, f := range filters {
		switch op := f.(type) {
		case Brightness:
			// ffmpeg eq brightness is -1..1; the caller works in -100..100.
			chain.Video = append(chain.Video, "eq=brightness="+formatFloat(op.Value/100))

		case Contrast:
			chain.Video = append(chain.Video, "eq=contrast="+formatFloat(op.Value))

		case Saturation:
			chain.Video = append(chain.Video, "eq=saturation="+formatFloat(op.Value))

		case Blur:
			chain.Video = append(chain.Video, fmt.Sprintf("boxblur=%d:%d", op.Radius, op.Radius))

		case Grayscale:
			chain.Video = append(chain.Video, "hue=s=0")

		case Sepia:
			chain.Video = append(chain.Video,
				"colorchannelmixer=.393:.769:.189:0:.349:.686:.168:0:.272:.534:.131")

		case Volume:
			chain.Audio = append(chain.Audio, "volume="+formatFloat(op.Value))

		case Speed:
			chain.Video = append(chain.Video, "setpts="+formatFloat(1/op.Factor)+"*PTS")
			chain.Audio = append(chain.Audio, atempoChain(op.Factor)...)
		}
	}

	return chain
}

// atempoChain decomposes a tempo factor into one or more atempo stages that
// each stay within ffmpeg's accepted range. The product of the stages equals
// the requested factor.
func atempoChain(factor float64) []string {
	var stages []string
	for factor > atempoMax {
		stages = append(stages, "atempo="+formatFloat(atempoMax))
		factor /= atempoMax
	}
	for factor < atempoMin {
		stages = append(stages, "atempo="+formatFloat(atempoMin))
		factor /= atempoMin
	}
	return append(stages, "atempo="+formatFloat(factor))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
