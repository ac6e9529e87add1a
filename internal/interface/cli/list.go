package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
)

// listFlags holds the flags for the list command
type listFlags struct {
	search   string
	folder   string
	city     string
	located  bool
	limit    int
	offset   int
}

func newListCmd() *cobra.Command {
	flags := &listFlags{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored memos",
		Long: `List memos from the local store, newest first.

Examples:
  # All memos
  voicememo list

  # Memos mentioning a term in title or transcription
  voicememo list --search standup

  # Memos recorded in one folder
  voicememo list --folder work`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			q := note.Query{Search: flags.search, CityName: flags.city}
			if flags.folder != "" {
				q.FolderID = &flags.folder
			}
			if cmd.Flags().Changed("located") {
				q.HasLocation = &flags.located
			}

			notes, err := c.MemoService().List(cmd.Context(), repository.FetchOptions{
				Query:  q,
				Limit:  flags.limit,
				Offset: flags.offset,
			})
			if err != nil {
				return err
			}
			if len(notes) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No memos found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tRECORDED\tLENGTH\tSYNC")
			for _, n := range notes {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					n.LocalID(),
					n.Title(),
					n.CreatedAt().Local().Format("2006-01-02 15:04"),
					formatDuration(n.Duration()),
					syncState(n),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&flags.search, "search", "", "Match title or transcription")
	cmd.Flags().StringVar(&flags.folder, "folder", "", "Only memos in this folder")
	cmd.Flags().StringVar(&flags.city, "city", "", "Only memos recorded in this city")
	cmd.Flags().BoolVar(&flags.located, "located", false, "Only memos with (or without) a location")
	cmd.Flags().IntVar(&flags.limit, "limit", 50, "Maximum number of results")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "Number of results to skip")
	return cmd
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one memo in detail",
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

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Title:     %s\n", n.Title())
			fmt.Fprintf(out, "ID:        %s\n", n.LocalID())
			if !n.IsLocalOnly() {
				fmt.Fprintf(out, "Record:    %s\n", n.ServerID())
			}
			if n.FolderID() != "" {
				fmt.Fprintf(out, "Folder:    %s\n", n.FolderID())
			}
			fmt.Fprintf(out, "Recorded:  %s\n", n.CreatedAt().Local().Format(time.RFC1123))
			fmt.Fprintf(out, "Length:    %s\n", formatDuration(n.Duration()))
			if loc := n.Location(); loc != nil {
				fmt.Fprintf(out, "Location:  %s\n", formatLocation(loc))
			}
			if n.Transcription() != "" {
				fmt.Fprintf(out, "\n%s\n", n.Transcription())
			}
			return nil
		},
	}
}

func formatDuration(seconds int) string {
	if seconds == note.DurationUnknown {
		return "?"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func formatLocation(loc *note.Location) string {
	if loc.CityName() != "" && loc.StreetName() != "" {
		return fmt.Sprintf("%s, %s", loc.StreetName(), loc.CityName())
	}
	if loc.CityName() != "" {
		return loc.CityName()
	}
	return fmt.Sprintf("%.5f, %.5f", loc.Latitude(), loc.Longitude())
}

func syncState(n *note.Note) string {
	if n.IsLocalOnly() {
		return "local"
	}
	return "synced"
}
