package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PORT", "")
	t.Setenv("SYNTHETIC_VIDEOS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q", cfg.Port)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Fatalf("PollInterval = %s, want 10s", cfg.PollInterval)
	}
	if cfg.VeoModel != "veo-3.1-fast-generate-preview" {
		t.Fatalf("VeoModel = %q", cfg.VeoModel)
	}
	if cfg.SyntheticVideos {
		t.Fatal("synthetic videos enabled by default")
	}
}

func TestLoadConfigSyntheticVideos(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("SYNTHETIC_VIDEOS", "true")

	t.Setenv("APP_ENV", "development")
	cfg, err := LoadConfig()
	if err != nil || !cfg.SyntheticVideos {
		t.Fatalf("development: %+v, %v", cfg, err)
	}

	t.Setenv("APP_ENV", "production")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected synthetic videos to be rejected in production")
	}
}

func TestLoadConfigParsesOrigins(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %#v, want %#v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}

func TestLoadConfigRejectsZeroPollInterval(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("GENERATION_POLL_INTERVAL_SECONDS", "0")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for zero poll interval")
	}
}

func TestLoadCompositorSettingsDefaults(t *testing.T) {
	cfg, err := LoadCompositorSettings("")
	if err != nil {
		t.Fatalf("LoadCompositorSettings: %v", err)
	}
	if cfg.FPS != 30 || cfg.Codec != "mjpeg" || cfg.FFmpeg.BinaryPath != "ffmpeg" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadCompositorSettingsMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadCompositorSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadCompositorSettings: %v", err)
	}
	if cfg != DefaultCompositorSettings() {
		t.Fatalf("cfg = %+v, want defaults", cfg)
	}
}

func TestLoadCompositorSettingsOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compositor.yaml")
	body := "fps: 24\nfont_path: /fonts/bold.ttf\nffmpeg:\n  binary_path: /usr/local/bin/ffmpeg\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadCompositorSettings(path)
	if err != nil {
		t.Fatalf("LoadCompositorSettings: %v", err)
	}
	if cfg.FPS != 24 {
		t.Fatalf("FPS = %d, want 24", cfg.FPS)
	}
	if cfg.FontPath != "/fonts/bold.ttf" {
		t.Fatalf("FontPath = %q", cfg.FontPath)
	}
	if cfg.FFmpeg.BinaryPath != "/usr/local/bin/ffmpeg" || cfg.FFmpeg.ProbePath != "ffprobe" {
		t.Fatalf("FFmpeg = %+v", cfg.FFmpeg)
	}
	if cfg.Bitrate != 5_000_000 {
		t.Fatalf("Bitrate = %d, want default", cfg.Bitrate)
	}
}

func TestLoadCompositorSettingsRejectsBadFPS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compositor.yaml")
	if err := os.WriteFile(path, []byte("fps: 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadCompositorSettings(path); err == nil {
		t.Fatal("expected error for fps 0")
	}
}
