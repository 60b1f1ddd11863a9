package commands

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const watchDebounce = 500 * time.Millisecond

func newWatchCommand() *cobra.Command {
	var (
		dir          string
		outputDir    string
		targetFlag   string
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Recompile plan documents in a directory whenever they change",
		Long: `watch recursively watches dir for .json plan documents being
written or created, debounces bursts of changes, and recompiles the
changed plan through the same pipeline as compile. It runs until the
command's context is cancelled (e.g. by SIGINT/SIGTERM).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				return newArgError("--dir is required")
			}

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			if err := watchDirectory(watcher, dir); err != nil {
				return err
			}

			log.Info().Str("dir", dir).Msg("watching for plan changes")
			processWatchEvents(cmd.Context(), watcher, a, compileOptions{
				outputDir:    outputDir,
				targetFlag:   targetFlag,
				manifestPath: manifestPath,
				force:        false,
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "directory of plan documents to watch")
	cmd.Flags().StringVar(&outputDir, "output", "./dist", "directory to write compiled binaries and checksums to")
	cmd.Flags().StringVar(&targetFlag, "target", "", "override target triple (<arch>-<os>) for every deployment")
	cmd.Flags().StringVar(&manifestPath, "modules", "", "path to a JSON module manifest overriding module sources")

	return cmd
}

func watchDirectory(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// processWatchEvents mirrors the policy loader's debounced-reload
// pattern: bursts of writes to the same file collapse into a single
// recompile 500ms after the last event.
func processWatchEvents(ctx context.Context, watcher *fsnotify.Watcher, a *app, base compileOptions) {
	var timer *time.Timer
	var pending string

	trigger := func(path string) {
		opts := base
		opts.planPath = path
		log.Info().Str("plan", path).Msg("plan changed, recompiling")
		if err := runCompile(ctx, a, opts); err != nil {
			log.Error().Err(err).Str("plan", path).Msg("recompile failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			pending = event.Name
			if timer != nil {
				timer.Stop()
			}
			path := pending
			timer = time.AfterFunc(watchDebounce, func() { trigger(path) })

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("watcher error")
		}
	}
}
