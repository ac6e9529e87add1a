package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/transono/voicememo/internal/app/config"
)

// RawSettings represents the structure of the setting.yaml file.
// Pointer fields distinguish "absent" from "explicitly zero".
type RawSettings struct {
	Home              *string `yaml:"home"`
	BaseURL           *string `yaml:"base_url"`
	PageSize          *int    `yaml:"page_size"`
	RequestTimeoutSec *int    `yaml:"request_timeout_sec"`
	SampleRate        *int    `yaml:"sample_rate"`
	BandCount         *int    `yaml:"band_count"`
	ArchiveBucket     *string `yaml:"archive_bucket"`
	TranscriptionURL  *string `yaml:"transcription_url"`
	LogLevel          *string `yaml:"log_level"`
}

// LoadSettings loads configuration for the given home directory.
// Priority: setting.yaml > environment > defaults.
func LoadSettings(baseDir string) (*config.AppConfig, error) {
	settings := &RawSettings{}
	configSource := "default"
	settingPath := ""

	yamlPath := filepath.Join(baseDir, "setting.yaml")
	if data, err := os.ReadFile(yamlPath); err == nil {
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", yamlPath, err)
		}
		configSource = "yaml"
		settingPath = yamlPath
	}

	if applyEnvOverrides(settings) && configSource == "default" {
		configSource = "env"
	}

	applyDefaults(settings, baseDir)

	return buildAppConfig(settings, configSource, settingPath), nil
}

// applyEnvOverrides applies VOICEMEMO_* environment variables on top of any
// file-provided values. Returns true if at least one override was applied.
func applyEnvOverrides(settings *RawSettings) bool {
	applied := false

	setString := func(key string, dst **string) {
		if v := os.Getenv(key); v != "" {
			*dst = &v
			applied = true
		}
	}
	setInt := func(key string, dst **int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = &n
				applied = true
			}
		}
	}

	setString("VOICEMEMO_BASE_URL", &settings.BaseURL)
	setInt("VOICEMEMO_PAGE_SIZE", &settings.PageSize)
	setInt("VOICEMEMO_REQUEST_TIMEOUT_SEC", &settings.RequestTimeoutSec)
	setInt("VOICEMEMO_SAMPLE_RATE", &settings.SampleRate)
	setInt("VOICEMEMO_BAND_COUNT", &settings.BandCount)
	setString("VOICEMEMO_ARCHIVE_BUCKET", &settings.ArchiveBucket)
	setString("VOICEMEMO_TRANSCRIPTION_URL", &settings.TranscriptionURL)
	setString("VOICEMEMO_LOG_LEVEL", &settings.LogLevel)

	return applied
}

// applyDefaults fills in default values for any nil fields
func applyDefaults(settings *RawSettings, baseDir string) {
	if settings.Home == nil {
		v := baseDir
		settings.Home = &v
	}
	if settings.BaseURL == nil {
		v := "http://localhost:8888"
		settings.BaseURL = &v
	}
	if settings.PageSize == nil {
		v := 20
		settings.PageSize = &v
	}
	if settings.RequestTimeoutSec == nil {
		v := 30
		settings.RequestTimeoutSec = &v
	}
	if settings.SampleRate == nil {
		v := 44100
		settings.SampleRate = &v
	}
	if settings.BandCount == nil {
		v := 16
		settings.BandCount = &v
	}
	if settings.ArchiveBucket == nil {
		v := ""
		settings.ArchiveBucket = &v
	}
	if settings.TranscriptionURL == nil {
		v := ""
		settings.TranscriptionURL = &v
	}
	if settings.LogLevel == nil {
		v := "info"
		settings.LogLevel = &v
	}
}

func buildAppConfig(settings *RawSettings, configSource, settingPath string) *config.AppConfig {
	return config.NewAppConfig(
		*settings.Home,
		*settings.BaseURL,
		*settings.PageSize,
		time.Duration(*settings.RequestTimeoutSec)*time.Second,
		*settings.SampleRate,
		*settings.BandCount,
		*settings.ArchiveBucket,
		*settings.TranscriptionURL,
		*settings.LogLevel,
		configSource,
		settingPath,
	)
}
