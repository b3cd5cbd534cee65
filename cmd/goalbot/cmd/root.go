// Package cmd holds the goalbot command line.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/kamir/goalbot/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "goalbot",
	Short: "Telegram bot for listing and creating goals",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.toml (default ~/.goalbot/config.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printHeader(title string) {
	bold := color.New(color.FgCyan, color.Bold)
	bold.Println(title)
	fmt.Println()
}

func printError(format string, args ...any) {
	color.New(color.FgRed).Fprintf(os.Stderr, format+"\n", args...)
}

func dirOf(path string) string {
	return filepath.Dir(config.ExpandHome(path))
}
