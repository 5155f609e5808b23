package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the server
type Config struct {
	// Server configuration
	Port      int    `envconfig:"PORT" default:"3000"`
	StaticDir string `envconfig:"STATIC_DIR" default:"public"`

	// Frame streaming configuration
	FrameRate      int           `envconfig:"FRAME_RATE" default:"22"`
	JPEGQuality    int           `envconfig:"JPEG_QUALITY" default:"60"`
	CaptureTimeout time.Duration `envconfig:"CAPTURE_TIMEOUT" default:"8s"`

	// Browser page configuration
	StartURL       string `envconfig:"START_URL" default:"https://www.google.com"`
	ViewportWidth  int    `envconfig:"VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight int    `envconfig:"VIEWPORT_HEIGHT" default:"720"`

	// Idle room reaping
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"3m"`
	ReapInterval time.Duration `envconfig:"REAP_INTERVAL" default:"30s"`

	// Download relay staging
	DownloadDir    string        `envconfig:"DOWNLOAD_DIR" default:"/tmp/browser-rooms-downloads"`
	DownloadLinger time.Duration `envconfig:"DOWNLOAD_LINGER" default:"2s"`
}

// FramePeriod returns the interval between frame captures for one viewer.
func (c *Config) FramePeriod() time.Duration {
	return time.Second / time.Duration(c.FrameRate)
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, err
	}
	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(config *Config) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	if config.StaticDir == "" {
		return fmt.Errorf("STATIC_DIR is required")
	}
	if config.FrameRate < 1 || config.FrameRate > 60 {
		return fmt.Errorf("FRAME_RATE must be between 1 and 60")
	}
	if config.JPEGQuality < 1 || config.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100")
	}
	if config.CaptureTimeout <= 0 {
		return fmt.Errorf("CAPTURE_TIMEOUT must be greater than 0")
	}
	if config.StartURL == "" {
		return fmt.Errorf("START_URL is required")
	}
	if config.ViewportWidth <= 0 || config.ViewportHeight <= 0 {
		return fmt.Errorf("viewport dimensions must be greater than 0")
	}
	if config.IdleTimeout <= 0 {
		return fmt.Errorf("IDLE_TIMEOUT must be greater than 0")
	}
	if config.ReapInterval <= 0 {
		return fmt.Errorf("REAP_INTERVAL must be greater than 0")
	}
	if config.DownloadDir == "" {
		return fmt.Errorf("DOWNLOAD_DIR is required")
	}
	if config.DownloadLinger < 0 {
		return fmt.Errorf("DOWNLOAD_LINGER must not be negative")
	}

	return nil
}
