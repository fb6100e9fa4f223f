package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check config file validity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := cfg.Path
		if path == "" {
			path = viper.GetString("config")
		}
		fmt.Printf("No problems found in %q (%d rules).\n", path, len(cfg.Rules))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
