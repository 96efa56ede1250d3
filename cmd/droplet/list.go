package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Drop-OSS/droplet/pkg/droplet/source"
)

var listCmd = &cobra.Command{
	Use:   "list <path> [file]",
	Short: "List the files of a game version",
	Long: `List prints every file droplet would include for a directory or archive,
with its permission bits and size.

Given a file name, only that file is looked up.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runList,
}

var listNoCache bool

func init() {
	listCmd.Flags().BoolVar(&listNoCache, "no-cache", false, "bypass the archive listing cache")

	rootCmd.AddCommand(listCmd)
}

// runList enumerates a source.
func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	src, backend, closeSrc, err := openSource(args[0], cfg, !listNoCache)
	if err != nil {
		return err
	}
	defer closeSrc()

	if len(args) == 2 {
		file, err := source.Peek(cmd.Context(), src, args[1])
		if err != nil {
			return err
		}
		printFiles([]source.SourceFile{file})
		return nil
	}

	files, err := src.Enumerate(cmd.Context())
	if err != nil {
		return err
	}

	if len(files) == 0 {
		printInfo("No files found in %s.", args[0])
		return nil
	}

	printFiles(files)
	printInfo("%s files, %s total (%s)",
		humanize.Comma(int64(len(files))), humanize.IBytes(source.TotalSize(files)), backend)
	return nil
}

func printFiles(files []source.SourceFile) {
	fmt.Printf("%-6s  %12s  %s\n", "PERMS", "SIZE", "PATH")
	fmt.Println(strings.Repeat("-", 60))
	for _, f := range files {
		fmt.Printf("%04o    %12s  %s\n", f.Permission, humanize.IBytes(f.Size), f.Path)
	}
}
