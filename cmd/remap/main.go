package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(rootCmd.ErrOrStderr(), err, OutputFormat(formatFlag))
		os.Exit(1)
	}
}
