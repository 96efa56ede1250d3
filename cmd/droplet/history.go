package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Drop-OSS/droplet/pkg/droplet/config"
	"github.com/Drop-OSS/droplet/pkg/droplet/history"
	"github.com/Drop-OSS/droplet/pkg/droplet/output"
	"github.com/Drop-OSS/droplet/pkg/droplet/units"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View generation history",
	Long: `View the history of generated manifests.

Every successful generate run is recorded with its source, settings and the
manifest itself, unless history is disabled or --no-history is given.`,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show details of a generation",
	Long: `Display a recorded generation by its ID or a unique ID prefix.

With --manifest the stored manifest is printed in the given format.`,
	Args: cobra.ExactArgs(1),
	RunE: runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean up old history entries",
	Long:  `Remove history entries older than the retention period.`,
	RunE:  runHistoryClean,
}

var (
	historyLimit    int
	historyManifest string
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")
	historyShowCmd.Flags().StringVar(&historyManifest, "manifest", "", "print the stored manifest (json, yaml or pretty)")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// getHistory returns the history store at the configured directory.
func getHistory() (*history.History, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	h, err := history.New(cfg.HistoryPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize history: %w", err)
	}
	return h, cfg, nil
}

// runHistory lists recent generations.
func runHistory(cmd *cobra.Command, args []string) error {
	h, _, err := getHistory()
	if err != nil {
		return err
	}

	entries, err := h.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(entries) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'droplet generate <path>' to create a manifest.")
		return nil
	}

	fmt.Printf("\n%-28s  %-9s  %-7s  %-7s  %-10s  %s\n", "ID", "BACKEND", "CHUNKS", "FILES", "SIZE", "SOURCE")
	fmt.Println(strings.Repeat("-", 100))

	for _, entry := range entries {
		fmt.Printf("%-28s  %-9s  %-7d  %-7d  %-10s  %s\n",
			truncateString(entry.ID, 28),
			entry.Backend,
			entry.Summary.Chunks,
			entry.Summary.Files,
			units.FormatSize(entry.Summary.Bytes),
			truncateString(entry.Source, 40),
		)
	}

	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("\nShowing %d entries. Use --limit to see more.\n", len(entries))
	fmt.Println("Use 'droplet history show <id>' for details on a specific entry.")

	return nil
}

// runHistoryShow displays one generation.
func runHistoryShow(cmd *cobra.Command, args []string) error {
	h, _, err := getHistory()
	if err != nil {
		return err
	}

	entry, err := h.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	if historyManifest != "" {
		if entry.Manifest == nil {
			return fmt.Errorf("entry %s has no stored manifest", entry.ID)
		}
		data, err := output.Encode(entry.Manifest, historyManifest, output.CompressionNone)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	fmt.Println("\nGeneration Details")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("ID:         %s\n", entry.ID)
	fmt.Printf("Timestamp:  %s\n", entry.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Source:     %s\n", entry.Source)
	fmt.Printf("Backend:    %s\n", entry.Backend)
	fmt.Printf("Digest:     %s\n", entry.Digest)
	if entry.Output != "" {
		fmt.Printf("Output:     %s\n", entry.Output)
	}
	fmt.Printf("Duration:   %s\n", entry.Duration)
	fmt.Printf("Chunks:     %d\n", entry.Summary.Chunks)
	fmt.Printf("Files:      %d\n", entry.Summary.Files)
	fmt.Printf("Total Size: %s\n", units.FormatSize(entry.Summary.Bytes))

	return nil
}

// runHistoryClean removes old history entries.
func runHistoryClean(cmd *cobra.Command, args []string) error {
	h, cfg, err := getHistory()
	if err != nil {
		return err
	}

	retentionDays := cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := h.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
