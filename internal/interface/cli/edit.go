package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Rename a memo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := resolveNote(cmd, c, args[0])
			if err != nil {
				return err
			}
			renamed, err := c.MemoService().Rename(cmd.Context(), n.LocalID(), args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Renamed to %s\n", renamed.Title())
			return nil
		},
	}
}

func newRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove", "delete"},
		Short:   "Delete a memo and its audio",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := resolveNote(cmd, c, args[0])
			if err != nil {
				return err
			}
			if !yes {
				return fmt.Errorf("refusing to delete %q without --yes", n.Title())
			}
			if err := c.MemoService().Delete(cmd.Context(), n.LocalID()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", n.Title())
			return nil
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

func newTranscriptCmd() *cobra.Command {
	var pdf bool

	cmd := &cobra.Command{
		Use:   "transcript <id>",
		Short: "Show a memo's transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			n, err := resolveNote(cmd, c, args[0])
			if err != nil {
				return err
			}

			if pdf {
				path, err := c.MemoService().TranscriptPDF(cmd.Context(), n.LocalID())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			}

			if n.Transcription() == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No transcription yet")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), n.Transcription())
			return nil
		},
	}

	cmd.Flags().BoolVar(&pdf, "pdf", false, "Download the shareable PDF instead")
	return cmd
}
