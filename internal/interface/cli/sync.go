package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	syncusecase "github.com/transono/voicememo/internal/application/usecase/sync"
	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
)

// syncFlags holds the flags for the sync command
type syncFlags struct {
	search string
	folder string
	pages  int
	all    bool
}

func newSyncCmd() *cobra.Command {
	flags := &syncFlags{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local store with the record service",
		Long: `Pull the first page of records and reconcile it with the local store.

Records already known locally keep their local identity; fields edited on
the server win, while local-only fields such as a pending transcription
survive. Use --pages or --all to pull further pages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			filter := syncusecase.Filter{Search: flags.search}
			q := note.Query{Search: flags.search}
			if flags.folder != "" {
				filter.FolderID = &flags.folder
				q.FolderID = &flags.folder
			}

			engine := c.SyncEngine()
			if err := engine.Refresh(cmd.Context(), filter); err != nil {
				return err
			}

			current, total := engine.Cursor()
			want := flags.pages
			if flags.all {
				want = total
			}
			for i := 0; i < want && current+1 < total; i++ {
				last, err := lastOfView(cmd.Context(), c.MemoService(), q)
				if err != nil {
					return err
				}
				if last == nil {
					break
				}
				if err := engine.LoadMoreIfNeeded(cmd.Context(), last); err != nil {
					return err
				}
				current, total = engine.Cursor()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Synced page %d of %d\n", current+1, total)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.search, "search", "", "Server-side search term")
	cmd.Flags().StringVar(&flags.folder, "folder", "", "Only records in this folder")
	cmd.Flags().IntVar(&flags.pages, "pages", 0, "Extra pages to pull after the first")
	cmd.Flags().BoolVar(&flags.all, "all", false, "Pull every page")
	return cmd
}

// noteLister is the slice of the memo service the sync command reads from
type noteLister interface {
	List(ctx context.Context, opts repository.FetchOptions) ([]*note.Note, error)
}

// lastOfView returns the oldest memo of the currently filtered view, the one
// whose appearance on screen would trigger the next page load
func lastOfView(ctx context.Context, svc noteLister, q note.Query) (*note.Note, error) {
	notes, err := svc.List(ctx, repository.FetchOptions{
		Query: q,
		Sort:  []repository.SortOrder{{Field: repository.SortByCreatedAt, Ascending: true}},
		Limit: 1,
	})
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, nil
	}
	return notes[0], nil
}
