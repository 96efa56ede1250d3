package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Drop-OSS/droplet/pkg/droplet/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the archive listing cache",
	Long: `Commands for managing the archive listing cache.

Listing an archive through 7-Zip is slow for large archives, so droplet keeps
each listing until the archive's size or modification time changes. Cache data
is stored in the XDG cache directory (typically ~/.cache/droplet).`,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear all cached listings",
	RunE: func(cmd *cobra.Command, args []string) error {
		cachePath, err := cacheLocation()
		if err != nil {
			return err
		}

		if _, err := os.Stat(cachePath); os.IsNotExist(err) {
			fmt.Println("Cache is already empty.")
			return nil
		}

		c, err := cache.Open(cachePath)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		if err := c.Clear(); err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		fmt.Println("Cache cleared.")
		return nil
	},
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cachePath, err := cacheLocation()
		if err != nil {
			return err
		}

		if _, err := os.Stat(cachePath); os.IsNotExist(err) {
			fmt.Println("Cache: empty (no cache directory)")
			fmt.Printf("Cache location: %s\n", cachePath)
			return nil
		}

		size, err := dirSize(cachePath)
		if err != nil {
			return fmt.Errorf("failed to calculate cache size: %w", err)
		}

		c, err := cache.Open(cachePath)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()

		entries, err := c.Entries()
		if err != nil {
			return err
		}

		fmt.Printf("Cache location: %s\n", cachePath)
		fmt.Printf("Cache size: %s\n", humanize.IBytes(uint64(size)))
		fmt.Printf("Cached archives: %d\n", len(entries))
		if getVerbose() {
			for _, e := range entries {
				fmt.Printf("  %s\n", e)
			}
		}
		return nil
	},
}

var cachePathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show cache location",
	RunE: func(cmd *cobra.Command, args []string) error {
		cachePath, err := cacheLocation()
		if err != nil {
			return err
		}
		fmt.Println(cachePath)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePathCmd)
	rootCmd.AddCommand(cacheCmd)
}

func cacheLocation() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.CachePath(), nil
}

func dirSize(dir string) (int64, error) {
	var size int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
