package infra

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// CompositorSettings tunes the recording pipeline. They are read from an
// optional YAML file; missing keys keep their defaults.
type CompositorSettings struct {
	FPS      int          `yaml:"fps"`
	Bitrate  int          `yaml:"bitrate"`
	Codec    string       `yaml:"codec"`
	TempDir  string       `yaml:"temp_dir"`
	FontPath string       `yaml:"font_path"`
	FFmpeg   FFmpegConfig `yaml:"ffmpeg"`
}

// FFmpegConfig locates the external decoder binaries.
type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ProbePath  string `yaml:"probe_path"`
	Threads    int    `yaml:"threads"`
}

// DefaultCompositorSettings matches the recorder defaults: 30 fps at
// roughly 5 Mbps.
func DefaultCompositorSettings() CompositorSettings {
	return CompositorSettings{
		FPS:     30,
		Bitrate: 5_000_000,
		Codec:   "mjpeg",
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			ProbePath:  "ffprobe",
		},
	}
}

// LoadCompositorSettings reads path when set and overlays it on the defaults.
func LoadCompositorSettings(path string) (CompositorSettings, error) {
	cfg := DefaultCompositorSettings()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read compositor config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse compositor config: %w", err)
	}
	if cfg.FPS <= 0 || cfg.FPS > 120 {
		return cfg, fmt.Errorf("compositor fps must be within 1..120, got %d", cfg.FPS)
	}
	if cfg.Bitrate <= 0 {
		return cfg, fmt.Errorf("compositor bitrate must be positive")
	}
	return cfg, nil
}
