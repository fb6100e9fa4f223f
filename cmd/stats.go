package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tidyops/organize/internal/index"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show statistics about the file index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats() error {
	log := newLogger()
	defer log.Sync()

	ix, err := index.Open(viper.GetString("index-path"), log)
	if err != nil {
		return err
	}
	defer ix.Close()

	stats, err := ix.GetStatistics()
	if err != nil {
		return err
	}

	label := color.New(color.FgCyan).SprintFunc()
	value := color.New(color.FgGreen).SprintfFunc()

	fmt.Println("File Index Statistics")
	fmt.Printf("  %s %s\n", label("Files:"), value("%d", stats.FileCount))
	fmt.Printf("  %s %s\n", label("Directories:"), value("%d", stats.DirectoryCount))
	fmt.Printf("  %s %s\n", label("Total Size:"), value("%d bytes", stats.TotalSize))
	fmt.Printf("  %s %s\n", label("Tags:"), value("%d", stats.TagCount))
	lastUpdate := "never"
	if !stats.LastUpdate.IsZero() {
		lastUpdate = stats.LastUpdate.Format(time.RFC3339)
	}
	fmt.Printf("  %s %s\n", label("Last Update:"), value("%s", lastUpdate))
	fmt.Printf("  %s %s\n", label("Database Size:"), value("%d bytes", stats.DatabaseSize))
	return nil
}
