package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/boxd/internal/webhook"
)

const serviceName = "boxd.service"

// installCmd represents the install command
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install boxd as a systemd user service",
	Long: `Install boxd as a systemd user service that runs automatically on login.

This command will:
  - Generate a systemd unit file for the boxd webhook server
  - Install it to ~/.config/systemd/user/
  - Enable and start the service with systemctl

The server will run in the background and scrobble films from Plex
webhooks to Letterboxd. Run 'boxd auth' first so the service has
credentials to sign in with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get the path to the current executable
		binaryPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		// Resolve symlinks to get the actual binary path
		binaryPath, err = filepath.EvalSymlinks(binaryPath)
		if err != nil {
			return fmt.Errorf("failed to resolve executable path: %w", err)
		}

		// Get the log path
		logPath, err := webhook.GetDefaultLogPath()
		if err != nil {
			return fmt.Errorf("failed to get log path: %w", err)
		}

		// Create log directory if it doesn't exist
		if err := os.MkdirAll(logPath, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		// Get home directory for working directory
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}

		// Generate unit file
		config := webhook.UnitConfig{
			BinaryPath:       binaryPath,
			LogPath:          logPath,
			WorkingDirectory: home,
		}

		unitContent, err := webhook.GenerateUnit(config)
		if err != nil {
			return fmt.Errorf("failed to generate unit file: %w", err)
		}

		// Get unit path
		unitPath, err := webhook.GetUnitPath()
		if err != nil {
			return fmt.Errorf("failed to get unit path: %w", err)
		}

		// Create the systemd user directory if it doesn't exist
		unitDir := filepath.Dir(unitPath)
		if err := os.MkdirAll(unitDir, 0755); err != nil {
			return fmt.Errorf("failed to create systemd user directory: %w", err)
		}

		// Check if unit already exists
		if _, err := os.Stat(unitPath); err == nil {
			fmt.Println("Service is already installed. Stopping it first...")
			if err := stopService(); err != nil {
				fmt.Printf("Warning: failed to stop existing service: %v\n", err)
			}
		}

		// Write unit file
		if err := os.WriteFile(unitPath, []byte(unitContent), 0644); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}

		fmt.Printf("✓ Installed unit to %s\n", unitPath)

		// Enable and start the service
		if err := startService(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}

		fmt.Println("✓ Service enabled and started successfully")
		fmt.Printf("✓ Logs will be written to %s\n", logPath)
		fmt.Println("\nThe boxd server is now running and will start automatically on login.")
		fmt.Println("\nYou can check the service status with:")
		fmt.Println("  systemctl --user status boxd")
		fmt.Println("\nTo uninstall, run:")
		fmt.Println("  boxd uninstall")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
}

// startService reloads systemd and enables the service
func startService() error {
	if err := runSystemctl("daemon-reload"); err != nil {
		return err
	}
	return runSystemctl("enable", "--now", serviceName)
}

// stopService disables the service, tolerating a unit that was never enabled
func stopService() error {
	if err := runSystemctl("disable", "--now", serviceName); err != nil {
		// Disable fails if the unit was never enabled, which is OK
		fmt.Printf("Warning: %v\n", err)
	}
	return nil
}

// runSystemctl runs a systemctl command in the user manager
func runSystemctl(args ...string) error {
	cmd := exec.Command("systemctl", append([]string{"--user"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			return fmt.Errorf("systemctl %s failed: %s", strings.Join(args, " "), strings.TrimSpace(string(output)))
		}
		return fmt.Errorf("failed to run systemctl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
