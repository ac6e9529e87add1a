package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
	"github.com/transono/voicememo/internal/infrastructure/di"
)

// resolveNote finds a memo by full local id or by unique id prefix
func resolveNote(cmd *cobra.Command, c *di.Container, ref string) (*note.Note, error) {
	if id, err := note.ParseLocalID(ref); err == nil {
		return c.MemoService().Get(cmd.Context(), id)
	}

	notes, err := c.MemoService().List(cmd.Context(), repository.FetchOptions{})
	if err != nil {
		return nil, err
	}

	upper := strings.ToUpper(ref)
	var match *note.Note
	for _, n := range notes {
		if strings.HasPrefix(n.LocalID().String(), upper) {
			if match != nil {
				return nil, fmt.Errorf("id prefix %q is ambiguous", ref)
			}
			match = n
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no memo matches %q", ref)
	}
	return match, nil
}
