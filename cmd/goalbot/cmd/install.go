package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install goalbot to /usr/local/bin",
	Run:   runInstall,
}

var installDir string

func init() {
	installCmd.Flags().StringVar(&installDir, "dir", "/usr/local/bin", "Target directory")
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) {
	printHeader("📦 GoalBot Install")

	exe, err := os.Executable()
	if err != nil {
		printError("Failed to resolve executable: %v", err)
		return
	}

	targetPath := filepath.Join(installDir, "goalbot")
	cmdCopy := exec.Command("cp", exe, targetPath)
	cmdCopy.Stdout = os.Stdout
	cmdCopy.Stderr = os.Stderr
	if err := cmdCopy.Run(); err != nil {
		printError("Install failed (try with sudo): %v", err)
		return
	}
	fmt.Printf("Installed to %s\n", targetPath)
}
