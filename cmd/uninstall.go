package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/boxd/internal/webhook"
)

// uninstallCmd represents the uninstall command
var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the boxd systemd user service",
	Long: `Uninstall the boxd systemd user service and stop it from running automatically.

This command will:
  - Stop the running service (if any)
  - Disable the service in systemd
  - Remove the unit file from ~/.config/systemd/user/

After uninstalling, the server will no longer run automatically on login.
Credentials, sessions, and scrobble history are left in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get unit path
		unitPath, err := webhook.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		// Check if unit exists
		if _, err := os.Stat(unitPath); os.IsNotExist(err) {
			fmt.Println("Service is not installed (unit file not found)")
			return nil
		}

		// Stop and disable the service
		fmt.Println("Stopping service...")
		if err := stopService(); err != nil {
			fmt.Printf("Warning: failed to stop service: %v\n", err)
			fmt.Println("Continuing with unit removal...")
		} else {
			fmt.Println("✓ Service stopped")
		}

		// Remove unit file
		if err := os.Remove(unitPath); err != nil {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}

		if err := runSystemctl("daemon-reload"); err != nil {
			fmt.Printf("Warning: %v\n", err)
		}

		fmt.Printf("✓ Removed unit from %s\n", unitPath)
		fmt.Println("\nThe boxd service has been uninstalled successfully.")
		fmt.Println("It will no longer run automatically on login.")
		fmt.Println("\nTo reinstall, run:")
		fmt.Println("  boxd install")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
