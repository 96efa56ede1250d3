package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Drop-OSS/droplet/pkg/droplet/manifest"
)

// checksumWidth is how many hex digits of a checksum the table shows.
const checksumWidth = 16

// PrettyFormatter renders a human-readable summary of a manifest for the
// terminal. Its output cannot be decoded.
type PrettyFormatter struct{}

// Format writes the summary to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, m *manifest.Manifest) error {
	w.WriteString(f.formatHeader(m))
	w.WriteString("\n")
	w.WriteString(f.formatTable(m))
	w.WriteString(f.formatFooter(m))
	w.WriteString("\n")
	return nil
}

func (f *PrettyFormatter) formatHeader(m *manifest.Manifest) string {
	summary := m.Summarize()

	lines := []string{
		TitleStyle.Render("Manifest") + " " + MutedStyle.Render("v"+m.Version),
		fmt.Sprintf("%s %s  %s %s  %s %s",
			LabelStyle.Render("Chunks:"), ValueStyle.Render(fmt.Sprintf("%d", summary.Chunks)),
			LabelStyle.Render("Files:"), ValueStyle.Render(fmt.Sprintf("%d", summary.Files)),
			LabelStyle.Render("Size:"), SizeStyle.Render(humanize.IBytes(m.Size))),
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatTable(m *manifest.Manifest) string {
	if len(m.Chunks) == 0 {
		return MutedStyle.Render("  No chunks") + "\n"
	}

	ids := m.ChunkIDs()
	sizes := make([]string, len(ids))
	sizeWidth := len("SIZE")
	for i, id := range ids {
		sizes[i] = humanize.IBytes(m.Chunks[id].Length())
		sizeWidth = max(sizeWidth, len(sizes[i]))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
		TableHeaderStyle.Render(padRight("CHUNK", 36)),
		TableHeaderStyle.Render(padLeft("SIZE", sizeWidth)),
		TableHeaderStyle.Render(padLeft("FILES", 5)),
		TableHeaderStyle.Render("CHECKSUM")))

	for i, id := range ids {
		record := m.Chunks[id]
		sb.WriteString(fmt.Sprintf("  %s  %s  %s  %s\n",
			PathStyle.Render(padRight(id, 36)),
			SizeStyle.Render(padLeft(sizes[i], sizeWidth)),
			ValueStyle.Render(padLeft(fmt.Sprintf("%d", len(record.Files)), 5)),
			MutedStyle.Render(shortChecksum(record.Checksum))))
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(m *manifest.Manifest) string {
	parts := []string{
		LabelStyle.Render("Total:") + " " + SizeStyle.Render(humanize.IBytes(m.Size)),
		MutedStyle.Render("Use --format json to write the manifest document"),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

func shortChecksum(sum string) string {
	if len(sum) <= checksumWidth {
		return sum
	}
	return sum[:checksumWidth] + "…"
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
