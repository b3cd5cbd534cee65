package cmd

import (
	"fmt"
	"os"

	"github.com/kamir/goalbot/internal/config"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Write a default config file",
	Run:   runOnboard,
}

var onboardForce bool

func init() {
	onboardCmd.Flags().BoolVarP(&onboardForce, "force", "f", false, "Overwrite existing config.toml")
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) {
	printHeader("🚀 GoalBot Onboard")

	path := configPath
	if path == "" {
		p, err := config.ConfigPath()
		if err != nil {
			printError("Resolve config path: %v", err)
			os.Exit(1)
		}
		path = p
	}

	// If config already exists, do not overwrite unless -f/--force is set.
	if _, err := os.Stat(path); err == nil && !onboardForce {
		fmt.Printf("Config already exists at: %s\n", path)
		fmt.Println("Use --force (-f) to overwrite.")
		return
	}

	cfg := config.DefaultConfig()
	if err := config.Save(cfg, path); err != nil {
		printError("Error writing config: %v", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Config created at: %s\n", path)

	if err := config.EnsureDir(dirOf(cfg.Store.Path)); err != nil {
		printError("Create store directory: %v", err)
	}

	fmt.Println("\nNext steps:")
	fmt.Println("1. Put your bot token in telegram.token (or export TELEGRAM_TOKEN).")
	fmt.Println("2. Run 'goalbot bot' to start polling.")
}
