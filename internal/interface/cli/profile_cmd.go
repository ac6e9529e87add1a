package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/transono/voicememo/internal/domain/repository"
)

func newProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			p, err := c.ProfileRepository().Load(cmd.Context())
			if errors.Is(err, repository.ErrNoProfile) {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Username: %s\n", p.Username())
			fmt.Fprintf(cmd.OutOrStdout(), "Email:    %s\n", p.Email())
			return nil
		},
	}
}
