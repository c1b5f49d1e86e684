package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clipsmith/clipsmith/internal/edit"
)

// TrimArgs builds the stream-copy invocation that extracts [start, end) of
// the input. A nil end runs to the end of the source.
func TrimArgs(input string, start float64, end *float64, output string) []string {
	args := []string{"-i", input, "-ss", formatSeconds(start)}

	if end != nil {
		args = append(args, "-t", formatSeconds(*end-start))
	}

	// Stream copy: no re-encode needed for a plain trim.
	args = append(args,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		output, "-y",
	)
	return args
}

// ConcatArgs builds the single filter_complex invocation that extracts each
// keep segment from the input and concatenates them in order. Segment times
// must already be on the input file's own timeline. Per-segment
// setpts/asetpts resets keep audio and video aligned across the joins.
// hasAudio must reflect the probed input; referencing [0:a] on an
// audio-less file fails the whole invocation.
func ConcatArgs(input string, segments []edit.Segment, hasAudio bool, output string) []string {
	parts := make([]string, 0, len(segments)+2)
	for i, seg := range segments {
		chain := fmt.Sprintf(
			"[0:v]trim=start=%s:end=%s,setpts=PTS-STARTPTS[v%d]",
			formatSeconds(seg.Start), formatSeconds(seg.End), i,
		)
		if hasAudio {
			chain += fmt.Sprintf(
				";[0:a]atrim=start=%s:end=%s,asetpts=PTS-STARTPTS[a%d]",
				formatSeconds(seg.Start), formatSeconds(seg.End), i,
			)
		}
		parts = append(parts, chain)
	}

	var videoInputs, audioInputs strings.Builder
	for i := range segments {
		fmt.Fprintf(&videoInputs, "[v%d]", i)
		fmt.Fprintf(&audioInputs, "[a%d]", i)
	}
	parts = append(parts,
		fmt.Sprintf("%sconcat=n=%d:v=1:a=0[outv]", videoInputs.String(), len(segments)),
	)
	if hasAudio {
		parts = append(parts,
			fmt.Sprintf("%sconcat=n=%d:v=0:a=1[outa]", audioInputs.String(), len(segments)),
		)
	}

	args := []string{
		"-i", input,
		"-filter_complex", strings.Join(parts, ";"),
		"-map", "[outv]",
	}
	if hasAudio {
		args = append(args, "-map", "[outa]")
	}
	return append(args, output, "-y")
}

// FilterArgs builds the invocation that applies the compiled filter chains.
// When both chains are non-empty they are passed together so a single output
// carries synchronized video and audio; an empty chain's stream is copied
// untouched rather than re-encoded.
func FilterArgs(input string, chain edit.FilterChain, output string) []string {
	args := []string{"-i", input}

	if len(chain.Video) > 0 {
		args = append(args, "-vf", strings.Join(chain.Video, ","))
	} else {
		args = append(args, "-c:v", "copy")
	}
	if len(chain.Audio) > 0 {
		args = append(args, "-af", strings.Join(chain.Audio, ","))
	} else {
		args = append(args, "-c:a", "copy")
	}

	return append(args, output, "-y")
}

// ThumbnailArgs builds the invocation that grabs a single frame at the
// given offset as a JPEG.
func ThumbnailArgs(input string, timestamp float64, output string) []string {
	return []string{
		"-i", input,
		"-ss", formatSeconds(timestamp),
		"-vframes", "1",
		"-q:v", "2",
		output, "-y",
	}
}

// AudioExtractArgs builds the invocation that strips the video stream and
// encodes the audio as MP3.
func AudioExtractArgs(input, output string) []string {
	return []string{
		"-i", input,
		"-vn",
		"-acodec", "libmp3lame",
		"-q:a", "2",
		output, "-y",
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
