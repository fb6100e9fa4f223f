package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tidyops/organize/internal/index"
)

var (
	indexRecursive bool
	indexCleanAge  time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index [directory]...",
	Short: "Index directories for faster processing",
	Long: `index records file metadata into the persistent file index used by
the walker's --use-index mode. With --clean-older-than, stale entries are
pruned instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIndex(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().BoolVar(&indexRecursive, "recursive", true, "Index subdirectories recursively")
	indexCmd.Flags().DurationVar(&indexCleanAge, "clean-older-than", 0,
		"Prune entries not re-indexed within this duration (e.g. 720h)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.Sync()

	ix, err := index.Open(viper.GetString("index-path"), log)
	if err != nil {
		return err
	}
	defer ix.Close()

	if indexCleanAge > 0 {
		removed, err := ix.CleanIndex(indexCleanAge)
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d stale entries.\n", removed)
		if len(args) == 0 {
			return nil
		}
	}

	if len(args) == 0 {
		return fmt.Errorf("no directories given")
	}

	total := 0
	for _, dir := range args {
		path, err := filepath.Abs(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot resolve %s: %v\n", dir, err)
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Directory not found: %s\n", path)
			continue
		}
		if !info.IsDir() {
			fmt.Fprintf(os.Stderr, "Not a directory: %s\n", path)
			continue
		}

		fmt.Printf("Indexing %s...\n", path)
		count, err := ix.IndexDirectory(path, indexRecursive)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d files and directories.\n", count)
		total += count
	}
	fmt.Printf("Total: %d files and directories indexed.\n", total)
	return nil
}
