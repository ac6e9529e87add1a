// Package cli is the terminal front end. Commands build the dependency
// container lazily so that help and version never touch the database.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transono/voicememo/internal/app"
	"github.com/transono/voicememo/internal/infrastructure/config"
	"github.com/transono/voicememo/internal/infrastructure/di"
)

// NewRoot builds the voicememo command tree
func NewRoot(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "voicememo",
		Short:         "Record, sync and play voice memos",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(c *cobra.Command, _ []string) error { return c.Help() },
	}
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newRecordCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newPlayCmd())
	cmd.AddCommand(newRenameCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newTranscriptCmd())
	cmd.AddCommand(newProfileCmd())
	cmd.AddCommand(newConfigCmd())
	return cmd
}

// buildContainer loads configuration and assembles the dependency graph.
// Priority: setting.yaml > environment > defaults.
func buildContainer() (*di.Container, error) {
	paths := app.ResolvePaths()
	cfg, err := config.LoadSettings(paths.Home)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	return di.NewContainer(cfg, paths)
}
