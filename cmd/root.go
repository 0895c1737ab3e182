/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boxd",
	Short: "Letterboxd scrobbler for Plex",
	Long: `boxd is a Letterboxd scrobbler for Plex.

It runs a small webhook server that Plex posts watch events to. When a
movie finishes playing, boxd signs in to letterboxd.com with an automated
browser (Letterboxd has no public write API), finds the film, and files a
diary entry for it.

It also provides CLI commands to store credentials, scrobble a film
manually, and inspect the scrobble history.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags can be added here if needed
}
