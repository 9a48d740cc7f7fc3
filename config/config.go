// Package config loads the yaml configuration file and fills defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Wake          WakeConfig          `yaml:"wake"`
	Capture       CaptureConfig       `yaml:"capture"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Store         StoreConfig         `yaml:"store"`
	Logging       LoggingConfig       `yaml:"logging"`
	UI            UIConfig            `yaml:"ui"`
}

type WakeConfig struct {
	Phrase string `yaml:"phrase"`
	// Locale is the hint for the always-on wake loop; the content after
	// the wake phrase still goes through the multi-language hint below.
	Locale string `yaml:"locale"`
}

type CaptureConfig struct {
	SampleRate     int    `yaml:"sample_rate"`
	Channels       int    `yaml:"channels"`
	CeilingSeconds int    `yaml:"ceiling_seconds"`
	Device         string `yaml:"device"` // empty means system default
	ClipDir        string `yaml:"clip_dir"`
	SilenceStop    bool   `yaml:"silence_stop"`
}

type TranscriptionConfig struct {
	Endpoint string `yaml:"endpoint"`
	// APIKey is taken from OPENAI_API_KEY when unset here; prefer the
	// environment so the key never lands in a config file.
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Languages      string `yaml:"languages"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type StoreConfig struct {
	Path  string `yaml:"path"`
	Owner string `yaml:"owner"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type UIConfig struct {
	CopyToClipboard bool `yaml:"copy_to_clipboard"`
}

// Dates with English month names are parsed day-first for the numeric
// form; there is no per-locale date handling.
func Default() Config {
	return Config{
		Wake: WakeConfig{
			Phrase: "har mahadev",
			Locale: "en-US",
		},
		Capture: CaptureConfig{
			SampleRate:     16000,
			Channels:       1,
			CeilingSeconds: 10,
		},
		Transcription: TranscriptionConfig{
			Endpoint:       "https://api.openai.com/v1/audio/transcriptions",
			Model:          "whisper-1",
			Languages:      "hi,en,gu",
			TimeoutSeconds: 30,
		},
		Store: StoreConfig{
			Owner: "default",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			CopyToClipboard: true,
		},
	}
}

// Load reads the file at path over the defaults. A missing file is not
// an error: the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.fillEnv()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.fillEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) fillEnv() {
	if c.Transcription.APIKey == "" {
		c.Transcription.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

func (c *Config) Validate() error {
	if err := c.Wake.Validate(); err != nil {
		return fmt.Errorf("wake config: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Transcription.Validate(); err != nil {
		return fmt.Errorf("transcription config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	return nil
}

func (w *WakeConfig) Validate() error {
	if w.Phrase == "" {
		return fmt.Errorf("phrase must not be empty")
	}
	return nil
}

func (a *CaptureConfig) Validate() error {
	if a.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", a.SampleRate)
	}
	if a.Channels != 1 {
		return fmt.Errorf("only mono capture is supported, got %d channels", a.Channels)
	}
	if a.CeilingSeconds <= 0 {
		return fmt.Errorf("ceiling_seconds must be positive, got %d", a.CeilingSeconds)
	}
	return nil
}

func (t *TranscriptionConfig) Validate() error {
	if t.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if t.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if t.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got %d", t.TimeoutSeconds)
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("unknown level %q", l.Level)
}

func (a *CaptureConfig) Ceiling() time.Duration {
	return time.Duration(a.CeilingSeconds) * time.Second
}

func (t *TranscriptionConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}
