package ffmpeg

import (
	"math"
	"testing"
)

const sampleProbeJSON = `{
	"streams": [
		{
			"codec_type": "video",
			"codec_name": "h264",
			"width": 1920,
			"height": 1080,
			"r_frame_rate": "30000/1001"
		},
		{
			"codec_type": "audio",
			"codec_name": "aac",
			"sample_rate": "48000",
			"channels": 2
		}
	],
	"format": {
		"duration": "30.048000",
		"size": "15728640",
		"bit_rate": "4194304"
	}
}`

func TestParseProbeOutput(t *testing.T) {
	info, err := parseProbeOutput([]byte(sampleProbeJSON))
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}

	if math.Abs(info.DurationSeconds-30.048) > 1e-6 {
		t.Errorf("duration = %g, want 30.048", info.DurationSeconds)
	}
	if info.SizeBytes != 15728640 {
		t.Errorf("size = %d, want 15728640", info.SizeBytes)
	}
	if info.Bitrate != 4194304 {
		t.Errorf("bitrate = %d, want 4194304", info.Bitrate)
	}
	if info.Video.Codec != "h264" || info.Video.Width != 1920 || info.Video.Height != 1080 {
		t.Errorf("video = %+v", info.Video)
	}
	if math.Abs(info.Video.FPS-29.97) > 0.01 {
		t.Errorf("fps = %g, want ~29.97", info.Video.FPS)
	}
	if info.Audio.Codec != "aac" || info.Audio.SampleRate != 48000 || info.Audio.Channels != 2 {
		t.Errorf("audio = %+v", info.Audio)
	}
}

func TestParseProbeOutput_VideoOnly(t *testing.T) {
	raw := `{
		"streams": [{"codec_type": "video", "codec_name": "vp9", "width": 640, "height": 480, "r_frame_rate": "25/1"}],
		"format": {"duration": "8.0", "size": "1024", "bit_rate": "900"}
	}`

	info, err := parseProbeOutput([]byte(raw))
	if err != nil {
		t.Fatalf("parseProbeOutput() error = %v", err)
	}
	if info.Audio.Codec != "" || info.Audio.Channels != 0 {
		t.Errorf("audio should be zero for video-only file, got %+v", info.Audio)
	}
	if info.Video.FPS != 25 {
		t.Errorf("fps = %g, want 25", info.Video.FPS)
	}
}

func TestParseProbeOutput_Malformed(t *testing.T) {
	if _, err := parseProbeOutput([]byte("not json")); err == nil {
		t.Fatal("expected error for malformed report")
	}
}

func TestParseProbeOutput_MissingDuration(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"absent", `{"streams": [], "format": {"size": "1024"}}`},
		{"malformed", `{"streams": [], "format": {"duration": "N/A", "size": "1024"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseProbeOutput([]byte(tt.raw)); err == nil {
				t.Fatal("expected error for report without a duration")
			}
		})
	}
}

func TestParseFraction(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"", 0},
		{"25", 25},
		{"25/1", 25},
		{"30000/1001", 29.97002997002997},
		{"0/0", 0},
		{"garbage", 0},
	}

	for _, tt := range tests {
		if got := parseFraction(tt.input); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("parseFraction(%q) = %g, want %g", tt.input, got, tt.want)
		}
	}
}
