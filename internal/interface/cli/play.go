package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/transono/voicememo/internal/audio/playback"
)

func newPlayCmd() *cobra.Command {
	var from float64

	cmd := &cobra.Command{
		Use:   "play <id>",
		Short: "Play a memo through the default output device",
		Long: `Play a memo. Audio missing locally is fetched from the record
service first.`,
		Args: cobra.ExactArgs(1),
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
			if _, err := c.MemoService().EnsureAudio(cmd.Context(), n.LocalID()); err != nil {
				return err
			}
			// re-read in case EnsureAudio patched the audio path
			n, err = c.MemoService().Get(cmd.Context(), n.LocalID())
			if err != nil {
				return err
			}

			fs := c.Fs()
			engine := playback.NewEngine(cmd.Context(), n, c.AudioStorage(),
				c.Config().BandCount(),
				func(path string) (playback.Transport, error) {
					return playback.OpenWAVTransport(fs, path)
				})
			defer engine.Close()

			// give the transport a moment to open
			deadline := time.Now().Add(2 * time.Second)
			for engine.IsLoading() && time.Now().Before(deadline) {
				time.Sleep(10 * time.Millisecond)
			}
			if err := engine.LoadError(); err != nil {
				return err
			}

			if from > 0 {
				engine.BeginScrub()
				engine.EndScrub(from / engine.Duration())
			}
			engine.TogglePlayback()
			fmt.Fprintf(cmd.OutOrStdout(), "Playing %s (%s)\n", n.Title(), formatDuration(n.Duration()))

			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for range ticker.C {
				state := engine.State()
				if state == playback.StateFinished || state == playback.StateReady {
					break
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\r%6.1fs %s",
					engine.CurrentTime(), renderBands(engine.Bands()))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "\rDone")
			return nil
		},
	}

	cmd.Flags().Float64Var(&from, "from", 0, "Start position in seconds")
	return cmd
}
