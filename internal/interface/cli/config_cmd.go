package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/infrastructure/config"
)

// effectiveConfig is the resolved configuration as shown to the user
type effectiveConfig struct {
	Source           string `yaml:"source"`
	SettingPath      string `yaml:"setting_path,omitempty"`
	Home             string `yaml:"home"`
	BaseURL          string `yaml:"base_url"`
	PageSize         int    `yaml:"page_size"`
	RequestTimeout   string `yaml:"request_timeout"`
	SampleRate       int    `yaml:"sample_rate"`
	BandCount        int    `yaml:"band_count"`
	ArchiveBucket    string `yaml:"archive_bucket,omitempty"`
	TranscriptionURL string `yaml:"transcription_url,omitempty"`
	LogLevel         string `yaml:"log_level"`
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long:  `Show the configuration after applying setting.yaml, environment overrides and defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := app.ResolvePaths()
			cfg, err := config.LoadSettings(paths.Home)
			if err != nil {
				return err
			}

			eff := effectiveConfig{
				Source:           cfg.ConfigSource(),
				SettingPath:      cfg.SettingPath(),
				Home:             cfg.Home(),
				BaseURL:          cfg.BaseURL(),
				PageSize:         cfg.PageSize(),
				RequestTimeout:   cfg.RequestTimeout().String(),
				SampleRate:       cfg.SampleRate(),
				BandCount:        cfg.BandCount(),
				ArchiveBucket:    cfg.ArchiveBucket(),
				TranscriptionURL: cfg.TranscriptionURL(),
				LogLevel:         cfg.LogLevel(),
			}
			out, err := yaml.Marshal(eff)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
