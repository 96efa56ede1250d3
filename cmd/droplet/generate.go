package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Drop-OSS/droplet/cmd/droplet/tui"
	"github.com/Drop-OSS/droplet/pkg/droplet/cache"
	"github.com/Drop-OSS/droplet/pkg/droplet/config"
	"github.com/Drop-OSS/droplet/pkg/droplet/generator"
	"github.com/Drop-OSS/droplet/pkg/droplet/history"
	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
	"github.com/Drop-OSS/droplet/pkg/droplet/output"
	"github.com/Drop-OSS/droplet/pkg/droplet/source"
	"github.com/Drop-OSS/droplet/pkg/droplet/units"
)

var generateCmd = &cobra.Command{
	Use:   "generate <path>",
	Short: "Generate a manifest for a game version",
	Long: `Generate splits the files of a directory or archive into chunks and
writes a manifest with one checksum, IV and file list per chunk.

Directories are split at byte level. Archives are read through 7-Zip and
keep every file whole.

The manifest is written to stdout unless --out is given. With --out the
format and compression default to the file extension, e.g. manifest.cbor.zst.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

var (
	generateOut         string
	generateInteractive bool
	generateVerify      bool
	generateNoCache     bool
	generateNoHistory   bool
)

func init() {
	generateCmd.Flags().StringVarP(&generateOut, "out", "o", "", "write the manifest to a file instead of stdout")
	generateCmd.Flags().String("format", "", "manifest format: json, yaml, cbor or pretty")
	generateCmd.Flags().String("compress", "", "compression: none, zstd or lz4")
	generateCmd.Flags().String("chunk-size", "", "target chunk size (e.g. 64MiB)")
	generateCmd.Flags().String("tolerance", "", "how far a chunk may exceed the chunk size to keep a file whole")
	generateCmd.Flags().String("digest", "", "chunk digest: sha256 or blake3")
	generateCmd.Flags().BoolVarP(&generateInteractive, "interactive", "i", false, "show a progress view")
	generateCmd.Flags().BoolVar(&generateVerify, "verify", false, "check the manifest layout against the source before writing")
	generateCmd.Flags().BoolVar(&generateNoCache, "no-cache", false, "bypass the archive listing cache")
	generateCmd.Flags().BoolVar(&generateNoHistory, "no-history", false, "do not record this generation")

	_ = viper.BindPFlag("output.format", generateCmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("output.compression", generateCmd.Flags().Lookup("compress"))
	_ = viper.BindPFlag("chunk_size", generateCmd.Flags().Lookup("chunk-size"))
	_ = viper.BindPFlag("tolerance", generateCmd.Flags().Lookup("tolerance"))
	_ = viper.BindPFlag("digest", generateCmd.Flags().Lookup("digest"))

	rootCmd.AddCommand(generateCmd)
}

// runGenerate builds and writes a manifest.
func runGenerate(cmd *cobra.Command, args []string) error {
	path := args[0]
	log := logging.Get("cli")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	opts, err := generatorOptions(cfg)
	if err != nil {
		return err
	}

	format, compression, err := outputSettings(cmd, cfg, generateOut)
	if err != nil {
		return err
	}

	src, backend, closeSrc, err := openSource(path, cfg, !generateNoCache)
	if err != nil {
		return err
	}
	defer closeSrc()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	printVerbose("Generating %s manifest for %s (%s, chunk size %s)",
		format, path, backend, units.FormatSize(opts.ChunkSize))
	log.Info("generating manifest", "source", path, "backend", backend,
		"chunk_size", opts.ChunkSize, "digest", opts.Digest)

	start := time.Now()
	var m *manifest.Manifest
	if generateInteractive {
		err = tui.Run(ctx, path, func(ctx context.Context, onProgress func(float64), onLog func(string)) error {
			o := opts
			o.OnProgress = onProgress
			o.OnLog = func(line string) {
				log.Info(line)
				onLog(line)
			}
			var genErr error
			m, genErr = generator.Generate(ctx, src, o)
			return genErr
		})
	} else {
		opts.OnLog = func(line string) {
			log.Info(line)
			printVerbose("%s", line)
		}
		opts.OnProgress = newProgressPrinter()
		m, err = generator.Generate(ctx, src, opts)
	}
	if err != nil {
		log.Error("generation failed", "source", path, "error", err)
		return err
	}
	elapsed := time.Since(start)

	if generateVerify {
		files, err := src.Enumerate(ctx)
		if err != nil {
			return err
		}
		if err := manifest.VerifyLayout(m, files); err != nil {
			return err
		}
		printVerbose("Manifest layout verified against %d files", len(files))
	}

	if err := writeManifest(m, format, compression, generateOut); err != nil {
		return err
	}

	summary := m.Summarize()
	printInfo("Generated %d chunks from %d files (%s) in %s",
		summary.Chunks, summary.Files, units.FormatSize(summary.Bytes), elapsed.Round(time.Millisecond))
	log.Info("manifest generated", "chunks", summary.Chunks, "files", summary.Files,
		"bytes", summary.Bytes, "elapsed", elapsed)

	if cfg.History.Enabled && !generateNoHistory {
		recordGeneration(cfg, sourceLocation(src, path), backend, opts.Digest, elapsed, m)
	}
	return nil
}

// generatorOptions converts the configured sizes and digest.
func generatorOptions(cfg *config.Config) (generator.Options, error) {
	sizes, err := cfg.Sizes()
	if err != nil {
		return generator.Options{}, err
	}
	if _, err := generator.NewHash(cfg.Digest); err != nil {
		return generator.Options{}, err
	}

	return generator.Options{
		ChunkSize:  sizes.ChunkSize,
		Tolerance:  sizes.Tolerance,
		ReadBuffer: int(sizes.ReadBuffer),
		Digest:     cfg.Digest,
	}, nil
}

// outputSettings resolves the manifest format and compression. An explicit
// flag wins over the file extension of out, which wins over the config.
func outputSettings(cmd *cobra.Command, cfg *config.Config, out string) (string, output.Compression, error) {
	format := cfg.Output.Format
	if out != "" && !cmd.Flags().Changed("format") {
		if f := output.FormatFromPath(out); f != "" {
			format = f
		}
	}
	if _, err := output.Get(format); err != nil {
		return "", "", err
	}

	compression, err := output.ParseCompression(cfg.Output.Compression)
	if err != nil {
		return "", "", err
	}
	if out != "" && !cmd.Flags().Changed("compress") {
		if c := output.CompressionFromPath(out); c != output.CompressionNone {
			compression = c
		}
	}
	return format, compression, nil
}

// openSource selects the backend for path. Archive listings go through the
// badger cache when enabled; a cache that cannot be opened is skipped.
func openSource(path string, cfg *config.Config, useCache bool) (source.Source, string, func(), error) {
	noop := func() {}

	src, err := source.Open(path, source.Options{SevenZipBinary: cfg.SevenZip.Binary})
	if err != nil {
		return nil, "", noop, err
	}

	archive, ok := src.(*source.ArchiveSource)
	if !ok {
		return src, "directory", noop, nil
	}
	if !useCache || !cfg.Cache.Enabled {
		return archive, "archive", noop, nil
	}

	c, err := cache.Open(cfg.CachePath())
	if err != nil {
		logging.Get("cache").Warn("listing cache unavailable", "path", cfg.CachePath(), "error", err)
		printVerbose("Listing cache unavailable: %v", err)
		return archive, "archive", noop, nil
	}
	return source.Cached(archive, c, archive.Path()), "archive", func() { _ = c.Close() }, nil
}

// writeManifest writes m to out, or to stdout when out is empty.
func writeManifest(m *manifest.Manifest, format string, compression output.Compression, out string) error {
	if out != "" {
		if err := output.WriteFile(out, m, format, compression); err != nil {
			return err
		}
		printVerbose("Wrote %s manifest to %s", format, out)
		return nil
	}

	data, err := output.Encode(m, format, compression)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

// sourceLocation returns the absolute path src reads from.
func sourceLocation(src source.Source, path string) string {
	switch s := src.(type) {
	case *source.DirSource:
		return s.Root()
	case *source.CachedSource:
		return sourceLocation(s.Source, path)
	case *source.ArchiveSource:
		path = s.Path()
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// recordGeneration stores the generation in history. Failures only warn.
func recordGeneration(cfg *config.Config, location, backend, digest string, elapsed time.Duration, m *manifest.Manifest) {
	log := logging.Get("history")

	h, err := history.New(cfg.HistoryPath())
	if err != nil {
		log.Warn("history unavailable", "error", err)
		return
	}

	outPath := generateOut
	if outPath != "" {
		if p, err := filepath.Abs(outPath); err == nil {
			outPath = p
		}
	}
	if digest == "" {
		digest = generator.DigestSHA256
	}

	entry, err := h.Record(history.Record{
		Source:   location,
		Backend:  backend,
		Digest:   digest,
		Output:   outPath,
		Duration: elapsed,
		Manifest: m,
	})
	if err != nil {
		log.Warn("failed to record generation", "error", err)
		printVerbose("Failed to record history: %v", err)
		return
	}
	printVerbose("Recorded generation %s", entry.ID)
}

// newProgressPrinter reports progress in steps of ten percent.
func newProgressPrinter() func(float64) {
	next := 10.0
	return func(pct float64) {
		if pct < next {
			return
		}
		for next <= pct {
			next += 10
		}
		printInfo("Progress: %3.0f%%", pct)
	}
}
