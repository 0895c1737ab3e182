package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/boxd/internal/config"
	"github.com/jfmyers9/boxd/internal/scrobbler"
	"github.com/jfmyers9/boxd/pkg/letterboxd"
)

var authShowBrowser bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Store and verify Letterboxd credentials",
	Long: `Store Letterboxd credentials and verify them with a real sign-in.

This command will:
1. Prompt for your letterboxd.com username and password
2. Sign in with an automated browser to verify they work
3. Save the credentials to your config file and the session for reuse

Letterboxd sits behind anti-bot protection, so the first sign-in can take
a minute. If it keeps failing, re-run with --show-browser to watch the
sign-in and clear any verification step by hand.`,
	RunE: runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)

	authCmd.Flags().BoolVar(&authShowBrowser, "show-browser", false, "Run the verification sign-in in a visible browser window")
}

func runAuth(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	// Load existing config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("Letterboxd Authentication")
	fmt.Println("=========================")
	fmt.Println()

	// Check if we already have credentials
	if cfg.Letterboxd.Username != "" && cfg.Letterboxd.Password != "" {
		fmt.Printf("Found existing credentials for %s.\n", cfg.Letterboxd.Username)
		fmt.Print("\nUse existing credentials? [Y/n]: ")
		response, err := reader.ReadString('\n')
		if err != nil {
			response = "y"
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "" && response != "y" && response != "yes" {
			// User wants to enter new credentials
			cfg.Letterboxd.Username = ""
			cfg.Letterboxd.Password = ""
		}
	}

	// Prompt for username if not set
	if cfg.Letterboxd.Username == "" {
		fmt.Print("Enter your Letterboxd username: ")
		username, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
		cfg.Letterboxd.Username = strings.TrimSpace(username)
	}

	// Prompt for password if not set
	if cfg.Letterboxd.Password == "" {
		fmt.Print("Enter your Letterboxd password: ")
		password, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		cfg.Letterboxd.Password = strings.TrimSpace(password)
	}

	// Validate inputs
	if cfg.Letterboxd.Username == "" || cfg.Letterboxd.Password == "" {
		return fmt.Errorf("username and password are required")
	}

	// Verify with a real sign-in
	fmt.Println("\nVerifying credentials with a sign-in (this can take a minute)...")

	client, err := letterboxd.NewClient(letterboxd.Config{
		Username:         cfg.Letterboxd.Username,
		Password:         cfg.Letterboxd.Password,
		ShowBrowser:      authShowBrowser || !cfg.Letterboxd.Headless,
		BrowserPath:      cfg.Letterboxd.BrowserPath,
		MaxLoginAttempts: cfg.Letterboxd.MaxLoginAttempts,
		Logger:           zerolog.New(os.Stderr).Level(zerolog.WarnLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to create letterboxd client: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	session, err := client.EnsureSession(ctx, nil)
	if err != nil {
		return fmt.Errorf("sign-in failed: %w", err)
	}

	// Save the verified session so the server skips the next sign-in
	sessions := scrobbler.NewSessionCache(
		filepath.Join(cfg.DataDir, "sessions"),
		time.Duration(cfg.SessionTTLHours)*time.Hour,
		zerolog.Nop(),
	)
	if err := sessions.Store(cfg.Letterboxd.Username, session); err != nil {
		fmt.Printf("Warning: failed to save session for reuse: %v\n", err)
	}

	// Save credentials to config
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	configPath := config.GetConfigDir()
	fmt.Printf("\n✓ Signed in as %s\n", cfg.Letterboxd.Username)
	fmt.Printf("✓ Credentials saved to %s/config.yaml\n", configPath)
	fmt.Println("\nYou can now use 'boxd serve' to start scrobbling.")

	return nil
}
