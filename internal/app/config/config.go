package config

import "time"

// Config provides read-only access to application configuration.
// This interface abstracts the configuration source (YAML, ENV, defaults)
// and keeps the app layer free of infrastructure details.
type Config interface {
	// Core settings
	Home() string    // Base directory (VOICEMEMO_HOME)
	BaseURL() string // Record service base URL (VOICEMEMO_BASE_URL)

	// Sync settings
	PageSize() int                // Records per sync page (VOICEMEMO_PAGE_SIZE)
	RequestTimeout() time.Duration // HTTP request timeout

	// Audio settings
	SampleRate() int // Capture sample rate in Hz (VOICEMEMO_SAMPLE_RATE)
	BandCount() int  // Amplitude visualization bands (VOICEMEMO_BAND_COUNT)

	// Archive settings
	ArchiveBucket() string // S3 bucket for recording archive; empty disables it

	// Transcription settings
	TranscriptionURL() string // Websocket URL of the transcription feed; empty disables it

	// Logging
	LogLevel() string // zerolog level name (VOICEMEMO_LOG_LEVEL)

	// Metadata
	ConfigSource() string // Source of configuration: "yaml", "env", or "default"
	SettingPath() string  // Path to setting.yaml if loaded from file
}

// AppConfig is the concrete implementation of Config
type AppConfig struct {
	home             string
	baseURL          string
	pageSize         int
	requestTimeout   time.Duration
	sampleRate       int
	bandCount        int
	archiveBucket    string
	transcriptionURL string
	logLevel         string
	configSource     string
	settingPath      string
}

// NewAppConfig builds a configuration from already-resolved values
func NewAppConfig(
	home string,
	baseURL string,
	pageSize int,
	requestTimeout time.Duration,
	sampleRate int,
	bandCount int,
	archiveBucket string,
	transcriptionURL string,
	logLevel string,
	configSource string,
	settingPath string,
) *AppConfig {
	return &AppConfig{
		home:             home,
		baseURL:          baseURL,
		pageSize:         pageSize,
		requestTimeout:   requestTimeout,
		sampleRate:       sampleRate,
		bandCount:        bandCount,
		archiveBucket:    archiveBucket,
		transcriptionURL: transcriptionURL,
		logLevel:         logLevel,
		configSource:     configSource,
		settingPath:      settingPath,
	}
}

func (c *AppConfig) Home() string                  { return c.home }
func (c *AppConfig) BaseURL() string               { return c.baseURL }
func (c *AppConfig) PageSize() int                 { return c.pageSize }
func (c *AppConfig) RequestTimeout() time.Duration { return c.requestTimeout }
func (c *AppConfig) SampleRate() int               { return c.sampleRate }
func (c *AppConfig) BandCount() int                { return c.bandCount }
func (c *AppConfig) ArchiveBucket() string         { return c.archiveBucket }
func (c *AppConfig) TranscriptionURL() string      { return c.transcriptionURL }
func (c *AppConfig) LogLevel() string              { return c.logLevel }
func (c *AppConfig) ConfigSource() string          { return c.configSource }
func (c *AppConfig) SettingPath() string           { return c.settingPath }
