package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/transono/voicememo/internal/domain/model/profile"
)

func newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the record service",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			reader := bufio.NewReader(cmd.InOrStdin())
			if email == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Email: ")
				line, err := reader.ReadString('\n')
				if err != nil {
					return err
				}
				email = strings.TrimSpace(line)
			}
			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			line, err := reader.ReadString('\n')
			if err != nil {
				return err
			}
			password := strings.TrimSpace(line)

			if err := c.Auth().Login(cmd.Context(), email, password); err != nil {
				return err
			}

			username := email
			if at := strings.Index(email, "@"); at > 0 {
				username = email[:at]
			}
			if err := c.ProfileRepository().Save(cmd.Context(), profile.NewProfile(username, email)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted when omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.Auth().Logout(); err != nil {
				return err
			}
			if err := c.ProfileRepository().Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
