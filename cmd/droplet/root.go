package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Drop-OSS/droplet/pkg/droplet/config"
	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "droplet",
		Short: "Generate chunked download manifests for game versions",
		Long: `Droplet splits a game version into chunks, hashes each chunk and writes
a manifest that download clients use to fetch and verify the version.

A version is either a directory or an archive readable by 7-Zip.

Examples:
  droplet generate ./game                 # Manifest as JSON on stdout
  droplet generate ./game -o game.json    # Write to a file
  droplet generate game.7z -o m.cbor.zst  # CBOR, zstd compressed
  droplet verify m.json ./game --deep     # Re-check layout and digests
  droplet list game.zip                   # Show what an archive contains
  droplet history                         # Past generations`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  initializeLogging,
		PersistentPostRunE: closeLogging,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/droplet/config.yaml)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().String("7z", "", "7-Zip binary used for archives")

	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("seven_zip.binary", rootCmd.PersistentFlags().Lookup("7z"))
}

// initConfig reads in config file and environment variables.
func initConfig() {
	config.Configure(viper.GetViper(), cfgFile)
	if err := config.Read(viper.GetViper()); err != nil {
		printError("%v", err)
	}
}

// loadConfig returns the configuration assembled by initConfig and the
// command line flags.
func loadConfig() (*config.Config, error) {
	return config.FromViper(viper.GetViper())
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError("%v", err)
	}
	return err
}

func closeLogging(cmd *cobra.Command, args []string) error {
	return logging.Close()
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr unless quiet mode is enabled.
// Stdout is reserved for manifests and listings.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// printError prints an error message to stderr.
func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
