package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/transono/voicememo/internal/application/usecase/memo"
)

func newRecordCmd() *cobra.Command {
	var title string
	var folder string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a new voice memo",
		Long: `Record from the default microphone until Enter is pressed.

The finished take is stored locally first and uploaded in the background;
a failed upload never discards the memo.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildContainer()
			if err != nil {
				return err
			}
			defer c.Close()

			capture := c.CaptureService()
			capture.OnAmplitude(func(bands []float32) {
				fmt.Fprintf(cmd.OutOrStdout(), "\r%s", renderBands(bands))
			})

			if err := capture.Start(cmd.Context()); err != nil {
				return err
			}
			startedAt := time.Now()
			fmt.Fprintln(cmd.OutOrStdout(), "Recording... press Enter to stop")

			reader := bufio.NewReader(cmd.InOrStdin())
			if _, err := reader.ReadString('\n'); err != nil {
				// stdin closed; stop and keep the take
				fmt.Fprintln(cmd.OutOrStdout())
			}

			if err := capture.Stop(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\rCaptured %.1f seconds\n", capture.ElapsedSeconds())

			if title == "" {
				title = "Memo " + startedAt.Format("2006-01-02 15:04")
			}
			saved, err := c.MemoService().SaveRecording(cmd.Context(), memo.SaveRecordingRequest{
				CaptureFile: capture.RecordedFile(),
				Title:       title,
				FolderID:    folder,
				RecordedAt:  startedAt,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", saved.Title(), saved.LocalID())
			c.SyncEngine().WaitForUploads()
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Memo title (defaults to the start time)")
	cmd.Flags().StringVar(&folder, "folder", "", "Folder to file the memo under")
	return cmd
}

// renderBands draws one amplitude frame as a bar per band
func renderBands(bands []float32) string {
	const glyphs = " .:-=+*#%@"
	var b strings.Builder
	for _, v := range bands {
		idx := int(v * float32(len(glyphs)-1))
		if idx >= len(glyphs) {
			idx = len(glyphs) - 1
		}
		if idx < 0 {
			idx = 0
		}
		b.WriteByte(glyphs[idx])
	}
	return b.String()
}
