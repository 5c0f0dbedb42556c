package media

import (
	"testing"
	"time"
)

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 30000.0 / 1001.0},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
		{"abc/1", 0},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := ParseFrameRate(tc.in); got != tc.want {
				t.Fatalf("ParseFrameRate(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseProbe(t *testing.T) {
	out := []byte(`{
		"format": {"duration": "8.000000"},
		"streams": [
			{"codec_type": "audio", "codec_name": "aac"},
			{"codec_type": "video", "codec_name": "h264", "width": 1280, "height": 720, "r_frame_rate": "24/1", "nb_frames": "192", "duration": "8.0"}
		]
	}`)
	info, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.Width != 1280 || info.Height != 720 {
		t.Fatalf("size = %dx%d", info.Width, info.Height)
	}
	if info.FPS != 24 || info.Frames != 192 || info.Codec != "h264" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Duration != 8*time.Second {
		t.Fatalf("Duration = %s", info.Duration)
	}
}

func TestParseProbeFallsBackToFormatDuration(t *testing.T) {
	out := []byte(`{"format": {"duration": "2.5"}, "streams": [{"codec_type": "video", "width": 64, "height": 36, "r_frame_rate": "30/1"}]}`)
	info, err := parseProbe(out)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if info.Duration != 2500*time.Millisecond {
		t.Fatalf("Duration = %s", info.Duration)
	}
}

func TestParseProbeRejects(t *testing.T) {
	tests := map[string]string{
		"no video":  `{"streams": [{"codec_type": "audio"}]}`,
		"zero size": `{"streams": [{"codec_type": "video", "width": 0, "height": 0}]}`,
		"not json":  `nope`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := parseProbe([]byte(body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
