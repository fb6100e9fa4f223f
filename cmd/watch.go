package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tidyops/organize/internal/config"
	"github.com/tidyops/organize/internal/engine"
	"github.com/tidyops/organize/internal/template"
	"github.com/tidyops/organize/internal/watcher"
)

var (
	watchRecursive      bool
	watchIgnorePatterns []string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch directories and organize files in real time",
	Long: `watch subscribes to filesystem changes under every enabled rule's
locations and runs the matching rules against each changed path.

Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchRecursive, "recursive", true, "Watch subdirectories recursively")
	watchCmd.Flags().StringSliceVar(&watchIgnorePatterns, "ignore", nil, "Glob patterns of paths to ignore")
}

func runWatch() error {
	log := newLogger()
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := outputForFormat(viper.GetString("format"))
	if err != nil {
		return err
	}

	tags := splitTags(viper.GetString("tags"))
	skipTags := splitTags(viper.GetString("skip-tags"))

	paths := watchPaths(cfg, tags, skipTags, log)
	if len(paths) == 0 {
		return fmt.Errorf("no directories to watch; check your configuration")
	}

	eng := engine.New(nil, log)
	opts := engine.RunOptions{
		Output:   out,
		Tags:     tags,
		SkipTags: skipTags,
	}

	w := watcher.New(log)
	token, err := w.Watch(paths, func(path string, event watcher.EventType) {
		log.Debug("event", zap.String("path", path), zap.String("type", string(event)))
		if err := eng.ExecuteForPath(cfg, path, opts); err != nil {
			log.Error("error processing path", zap.String("path", path), zap.Error(err))
		}
	}, watcher.Options{
		Recursive:      watchRecursive,
		IgnorePatterns: watchIgnorePatterns,
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}

	fmt.Printf("Watching %d directories:\n", len(paths))
	for _, p := range paths {
		fmt.Printf("  - %s\n", p)
	}
	fmt.Println("\nWatching for changes... Press Ctrl+C to stop.")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	fmt.Println("\nStopping watcher...")
	w.Unwatch(token)
	w.Stop()
	w.Join(5 * time.Second)
	return nil
}

// watchPaths collects the resolved location roots of every enabled rule
// that passes tag selection.
func watchPaths(cfg *config.Config, tags, skipTags []string, log *zap.Logger) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, rule := range cfg.Rules {
		if !rule.Enabled || !config.ShouldExecute(rule.Tags, tags, skipTags) {
			continue
		}
		for _, loc := range rule.Locations {
			root, err := template.Render(loc.Path)
			if err != nil {
				log.Warn("cannot resolve location", zap.String("location", loc.Path), zap.Error(err))
				continue
			}
			if !seen[root] {
				seen[root] = true
				paths = append(paths, root)
			}
		}
	}
	return paths
}
