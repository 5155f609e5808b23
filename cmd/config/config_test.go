package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	testCases := []struct {
		name    string
		env     map[string]string
		wantErr bool
		wantCfg *Config
	}{
		{
			name: "defaults (no env set)",
			env:  map[string]string{},
			wantCfg: &Config{
				Port:           3000,
				StaticDir:      "public",
				FrameRate:      22,
				JPEGQuality:    60,
				CaptureTimeout: 8 * time.Second,
				StartURL:       "https://www.google.com",
				ViewportWidth:  1280,
				ViewportHeight: 720,
				IdleTimeout:    3 * time.Minute,
				ReapInterval:   30 * time.Second,
				DownloadDir:    "/tmp/browser-rooms-downloads",
				DownloadLinger: 2 * time.Second,
			},
		},
		{
			name: "custom valid env",
			env: map[string]string{
				"PORT":            "8080",
				"FRAME_RATE":      "15",
				"JPEG_QUALITY":    "80",
				"CAPTURE_TIMEOUT": "4s",
				"START_URL":       "https://example.com",
				"IDLE_TIMEOUT":    "1m",
				"REAP_INTERVAL":   "10s",
				"DOWNLOAD_DIR":    "/tmp/dl",
			},
			wantCfg: &Config{
				Port:           8080,
				StaticDir:      "public",
				FrameRate:      15,
				JPEGQuality:    80,
				CaptureTimeout: 4 * time.Second,
				StartURL:       "https://example.com",
				ViewportWidth:  1280,
				ViewportHeight: 720,
				IdleTimeout:    time.Minute,
				ReapInterval:   10 * time.Second,
				DownloadDir:    "/tmp/dl",
				DownloadLinger: 2 * time.Second,
			},
		},
		{
			name: "port out of range",
			env: map[string]string{
				"PORT": "70000",
			},
			wantErr: true,
		},
		{
			name: "frame rate too high",
			env: map[string]string{
				"FRAME_RATE": "61",
			},
			wantErr: true,
		},
		{
			name: "zero jpeg quality",
			env: map[string]string{
				"JPEG_QUALITY": "0",
			},
			wantErr: true,
		},
		{
			name: "missing start url (set to empty)",
			env: map[string]string{
				"START_URL": "",
			},
			wantErr: true,
		},
		{
			name: "negative viewport width",
			env: map[string]string{
				"VIEWPORT_WIDTH": "-1",
			},
			wantErr: true,
		},
		{
			name: "zero idle timeout",
			env: map[string]string{
				"IDLE_TIMEOUT": "0s",
			},
			wantErr: true,
		},
		{
			name: "missing download dir (set to empty)",
			env: map[string]string{
				"DOWNLOAD_DIR": "",
			},
			wantErr: true,
		},
	}

	for idx := range testCases {
		tc := testCases[idx]
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				require.Equal(t, tc.wantCfg, cfg)
			}
		})
	}
}

func TestFramePeriod(t *testing.T) {
	cfg := &Config{FrameRate: 22}
	require.Equal(t, time.Second/22, cfg.FramePeriod())
}
