package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tidyops/organize/internal/engine"
	"github.com/tidyops/organize/internal/index"
)

var (
	runParallel   bool
	runMaxWorkers int
	runUseIndex   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Organize your files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRules(false)
	},
}

var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Simulate organizing your files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRules(true)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(simCmd)

	for _, c := range []*cobra.Command{runCmd, simCmd} {
		c.Flags().BoolVarP(&runParallel, "parallel", "P", false, "Run rules on a worker pool")
		c.Flags().IntVar(&runMaxWorkers, "max-workers", 0, "Worker pool size (0 = number of CPUs)")
		c.Flags().BoolVar(&runUseIndex, "use-index", false, "Discover resources through the file index")
	}
}

func executeRules(simulate bool) error {
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

	var ix *index.FileIndex
	if runUseIndex {
		ix, err = index.Open(viper.GetString("index-path"), log)
		if err != nil {
			// The index is a best-effort accelerator; the walkers fall
			// back to scanning without it.
			log.Warn("file index unavailable", zap.Error(err))
			ix = nil
		} else {
			defer ix.Close()
		}
	}

	eng := engine.New(ix, log)
	opts := engine.RunOptions{
		Simulate:   simulate,
		Output:     out,
		Tags:       splitTags(viper.GetString("tags")),
		SkipTags:   splitTags(viper.GetString("skip-tags")),
		WorkingDir: viper.GetString("working-dir"),
		MaxWorkers: runMaxWorkers,
		UseIndex:   runUseIndex && ix != nil,
	}

	if runParallel {
		return eng.ExecuteParallel(cfg, opts)
	}
	return eng.Execute(cfg, opts)
}
