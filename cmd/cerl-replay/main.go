package main

import (
	"os"

	"github.com/spf13/cobra"
)

var mainCommand = &cobra.Command{
	Use:   "cerl-replay",
	Short: "Replay congestion traces through Cerl and other strategies",
}

func main() {
	mainCommand.AddCommand(newRunCommand(), newListCommand())
	if err := mainCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
