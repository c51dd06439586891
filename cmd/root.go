package cmd

import (
	"fmt"
	"log"
	"os"

	"DuetFM/server"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "duetfm_server",
	Short: "DuetFM is a listen-together music room service.",
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("Starting DuetFM server...")
		server.Start()
	},
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
