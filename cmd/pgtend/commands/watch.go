package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-render configuration files when the settings change",
		Long: `Watch the settings file and re-render every cluster's configuration
files into the output directory whenever it changes.

Editors replace files instead of writing them in place, so the watch
covers the containing directory and filters events for the settings
file. Rapid successive events are debounced.`,
		Example: `  # Keep ./out in sync with pgtend.yaml
  pgtend watch --out ./out`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				return fmt.Errorf("--out is required")
			}

			render := func() {
				f, registry, err := loadRegistry(settingsPath)
				if err != nil {
					log.Error().Err(err).Msg("settings reload failed")
					return
				}
				for _, name := range f.ClusterNames() {
					files, err := renderCluster(f, registry, name)
					if err != nil {
						log.Error().Err(err).Str("cluster", name).Msg("render failed")
						return
					}
					if err := writeRendered(outDir, name, files); err != nil {
						log.Error().Err(err).Str("cluster", name).Msg("write failed")
						return
					}
				}
				log.Info().Str("settings", settingsPath).Msg("configuration re-rendered")
			}

			// Initial render so the output directory is populated
			// before the first change.
			render()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer watcher.Close()

			watchTarget, err := filepath.Abs(settingsPath)
			if err != nil {
				return err
			}
			if err := watcher.Add(filepath.Dir(watchTarget)); err != nil {
				return fmt.Errorf("failed to watch %s: %w", filepath.Dir(watchTarget), err)
			}

			log.Info().Str("settings", watchTarget).Msg("watching for changes")

			// Debounce render events
			var renderTimer *time.Timer
			renderDelay := 500 * time.Millisecond

			ctx := cmd.Context()
			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					name, err := filepath.Abs(event.Name)
					if err != nil || name != watchTarget {
						continue
					}
					log.Debug().Str("op", event.Op.String()).Msg("settings file changed")
					if renderTimer != nil {
						renderTimer.Stop()
					}
					renderTimer = time.AfterFunc(renderDelay, render)

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					log.Warn().Err(err).Msg("watch error")
				}
			}
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "directory to write rendered files into")

	return cmd
}
