package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tidyops/organize/cmd"
	"github.com/tidyops/organize/internal/config"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
