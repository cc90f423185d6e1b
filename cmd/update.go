package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/smazurov/procmux/internal/version"
)

// CreateUpdateCmd creates the self-update command.
func CreateUpdateCmd() *cobra.Command {
	var repository string
	var prerelease bool
	var checkOnly bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the binary to the latest release",
		Long:  `Checks GitHub for a newer release and replaces the running binary in place.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
			if err != nil {
				return fmt.Errorf("failed to create GitHub source: %w", err)
			}
			updater, err := selfupdate.NewUpdater(selfupdate.Config{
				Source:     source,
				Prerelease: prerelease,
			})
			if err != nil {
				return fmt.Errorf("failed to create updater: %w", err)
			}

			latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(repository))
			if err != nil {
				return fmt.Errorf("failed to check for updates: %w", err)
			}
			if !found {
				fmt.Println("No release found for", repository)
				return nil
			}

			current := version.String()
			if current != "dev" && latest.LessOrEqual(current) {
				fmt.Printf("Already up to date (current %s, latest %s)\n", current, latest.Version())
				return nil
			}
			fmt.Printf("Latest release: %s (current %s)\n", latest.Version(), current)
			if checkOnly {
				return nil
			}

			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("failed to locate executable: %w", err)
			}
			exe, err = filepath.EvalSymlinks(exe)
			if err != nil {
				return fmt.Errorf("failed to resolve executable path: %w", err)
			}

			if err := updater.UpdateTo(ctx, latest, exe); err != nil {
				return fmt.Errorf("update failed: %w", err)
			}
			fmt.Printf("Updated to %s\n", latest.Version())
			return nil
		},
	}

	cmd.Flags().StringVar(&repository, "repository", "smazurov/procmux", "GitHub repository slug")
	cmd.Flags().BoolVar(&prerelease, "prerelease", false, "Allow prerelease versions")
	cmd.Flags().BoolVar(&checkOnly, "check", false, "Only check, do not install")
	return cmd
}
