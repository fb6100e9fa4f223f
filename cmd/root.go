package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tidyops/organize/internal/config"
	"github.com/tidyops/organize/internal/logger"
	"github.com/tidyops/organize/internal/output"
)

var version = "0.1.0"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "organize",
	Short: "The file management automation tool",
	Long: `organize runs declarative rules against your directories: each rule
names locations to scan, filters to match and actions to apply, either
for real or in simulate mode.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config name or path to a config file")
	rootCmd.PersistentFlags().String("working-dir", "", "The working directory")
	rootCmd.PersistentFlags().StringP("format", "F", "default", "Output format (default|errorsonly|jsonl)")
	rootCmd.PersistentFlags().StringP("tags", "T", "", "Tags to run (comma-separated)")
	rootCmd.PersistentFlags().StringP("skip-tags", "S", "", "Tags to skip (comma-separated)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("index-path", "", "Path to the file index store")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("working-dir", rootCmd.PersistentFlags().Lookup("working-dir"))
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("tags", rootCmd.PersistentFlags().Lookup("tags"))
	viper.BindPFlag("skip-tags", rootCmd.PersistentFlags().Lookup("skip-tags"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("index-path", rootCmd.PersistentFlags().Lookup("index-path"))

	viper.SetEnvPrefix("ORGANIZE")
	viper.AutomaticEnv()
}

// newLogger builds the process logger from the verbose flag.
func newLogger() *zap.Logger {
	if viper.GetBool("verbose") {
		return logger.New(logger.LevelDebug)
	}
	return logger.New(logger.LevelWarn)
}

// loadConfig locates, reads and validates the rule config.
func loadConfig() (*config.Config, error) {
	path, err := findConfig(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	return config.FromFile(path)
}

// findConfig resolves a config name or path: an explicit existing path
// wins, then "<name>.yaml" in the user config directory, then
// "organize.yaml" in the working directory.
func findConfig(nameOrPath string) (string, error) {
	if nameOrPath != "" {
		if _, err := os.Stat(nameOrPath); err == nil {
			return nameOrPath, nil
		}
		if dir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(dir, "organize", nameOrPath+".yaml")
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
		return "", &config.Error{Path: nameOrPath, Err: fmt.Errorf("config not found")}
	}

	if _, err := os.Stat("organize.yaml"); err == nil {
		return "organize.yaml", nil
	}
	if dir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(dir, "organize", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", &config.Error{Err: fmt.Errorf("no config found; pass one with --config")}
}

// outputForFormat builds the configured run output.
func outputForFormat(format string) (output.Output, error) {
	switch strings.ToLower(format) {
	case "", "default":
		return &output.Default{}, nil
	case "errorsonly":
		return &output.Default{ErrorsOnly: true}, nil
	case "jsonl":
		return &output.JSONL{}, nil
	}
	return nil, fmt.Errorf("%q is not a valid output format", format)
}

func splitTags(val string) []string {
	if val == "" {
		return nil
	}
	var tags []string
	for _, t := range strings.Split(val, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
