package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Drop-OSS/droplet/pkg/droplet/generator"
	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
	"github.com/Drop-OSS/droplet/pkg/droplet/output"
	"github.com/Drop-OSS/droplet/pkg/droplet/units"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <manifest> <path>",
	Short: "Check a manifest against a game version",
	Long: `Verify checks that the chunks of a manifest cover every file of the
version exactly once, with no gaps, overlaps or unknown files.

With --deep every chunk is read back and its checksum compared. The digest
must match the one used to generate the manifest.`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

var (
	verifyDeep   bool
	verifyDigest string
)

func init() {
	verifyCmd.Flags().BoolVar(&verifyDeep, "deep", false, "re-read every chunk and compare checksums")
	verifyCmd.Flags().StringVar(&verifyDigest, "digest", "", "digest used by the manifest (default from config)")

	rootCmd.AddCommand(verifyCmd)
}

// runVerify validates a manifest file.
func runVerify(cmd *cobra.Command, args []string) error {
	manifestPath, path := args[0], args[1]
	log := logging.Get("cli")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := output.ReadFile(manifestPath)
	if err != nil {
		return err
	}

	src, _, closeSrc, err := openSource(path, cfg, true)
	if err != nil {
		return err
	}
	defer closeSrc()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	files, err := src.Enumerate(ctx)
	if err != nil {
		return err
	}
	if err := manifest.VerifyLayout(m, files); err != nil {
		log.Warn("manifest layout mismatch", "manifest", manifestPath, "error", err)
		return err
	}

	summary := m.Summarize()
	printInfo("Layout OK: %d chunks cover %d files (%s)",
		summary.Chunks, summary.Files, units.FormatSize(summary.Bytes))

	if !verifyDeep {
		return nil
	}

	digest := verifyDigest
	if digest == "" {
		digest = cfg.Digest
	}
	newHash, err := generator.NewHash(digest)
	if err != nil {
		return err
	}

	printVerbose("Re-reading %d chunks with %s", summary.Chunks, digest)
	if err := manifest.VerifyChecksums(ctx, src, m, newHash); err != nil {
		log.Warn("manifest checksum mismatch", "manifest", manifestPath, "error", err)
		return err
	}

	printInfo("Checksums OK")
	log.Info("manifest verified", "manifest", manifestPath, "deep", true)
	return nil
}
