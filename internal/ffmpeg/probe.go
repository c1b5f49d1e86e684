package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// MediaInfo holds the metadata clipsmith needs about one media file.
type MediaInfo struct {
	DurationSeconds float64   `json:"duration"`
	SizeBytes       int64     `json:"size"`
	Bitrate         int64     `json:"bitrate"`
	Video           VideoInfo `json:"video"`
	Audio           AudioInfo `json:"audio"`
}

type VideoInfo struct {
	Codec  string  `json:"codec"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	FPS    float64 `json:"fps"`
}

type AudioInfo struct {
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Prober extracts media metadata via an ffprobe invocation.
type Prober struct {
	invoker Invoker
	timeout time.Duration
	logger  *slog.Logger
}

func NewProber(invoker Invoker, timeout time.Duration, logger *slog.Logger) *Prober {
	return &Prober{invoker: invoker, timeout: timeout, logger: logger}
}

// Probe runs a read-only inspection of path and parses the JSON report.
func (p *Prober) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	result, err := p.invoker.Run(ctx, []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	})
	if err != nil {
		return nil, err
	}

	info, err := parseProbeOutput([]byte(result.Stdout))
	if err != nil {
		return nil, fmt.Errorf("cannot parse probe output for %s: %w", path, err)
	}
	return info, nil
}

// probeReport mirrors the subset of ffprobe's -print_format json output
// that clipsmith reads.
type probeReport struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

func parseProbeOutput(data []byte) (*MediaInfo, error) {
	var report probeReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}

	// A report without a usable duration means the tool could not read the
	// file, not that the caller asked for a zero-length window.
	duration, err := strconv.ParseFloat(report.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("probe report has no usable duration (got %q)", report.Format.Duration)
	}

	info := &MediaInfo{
		DurationSeconds: duration,
		SizeBytes:       parseInt(report.Format.Size),
		Bitrate:         parseInt(report.Format.BitRate),
	}

	for _, s := range report.Streams {
		switch s.CodecType {
		case "video":
			if info.Video.Codec != "" {
				continue // first video stream wins
			}
			info.Video = VideoInfo{
				Codec:  s.CodecName,
				Width:  s.Width,
				Height: s.Height,
				FPS:    parseFraction(s.RFrameRate),
			}
		case "audio":
			if info.Audio.Codec != "" {
				continue
			}
			info.Audio = AudioInfo{
				Codec:      s.CodecName,
				SampleRate: int(parseInt(s.SampleRate)),
				Channels:   s.Channels,
			}
		}
	}

	return info, nil
}

// parseFraction evaluates ffprobe rate strings like "30000/1001" or "25".
func parseFraction(s string) float64 {
	if s == "" {
		return 0
	}
	num, den, found := strings.Cut(s, "/")
	n := parseFloat(num)
	if !found {
		return n
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
