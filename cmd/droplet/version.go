package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
)

// Build-time variables set by go build -ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version, commit hash, and build date of droplet.`,
	Run:   runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// runVersion prints version information.
func runVersion(cmd *cobra.Command, args []string) {
	fmt.Printf("droplet %s\n", version)
	fmt.Printf("  manifest: v%s\n", manifest.Version)
	fmt.Printf("  commit:   %s\n", commit)
	fmt.Printf("  built:    %s\n", date)
	fmt.Printf("  go:       %s\n", runtime.Version())
	fmt.Printf("  os/arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
