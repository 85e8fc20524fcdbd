package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/illarion/jarida/internal/core"
)

// List shows the entries of the journal without decrypting them
func List(ctx context.Context) {
	j, cfg := OpenJournal()

	infos, err := j.List(ctx)
	if err != nil {
		HandleError(err)
	}

	if len(infos) == 0 {
		fmt.Println("No entries yet")
		fmt.Println("Use 'jarida new' to write one")
		return
	}

	writeList(os.Stdout, infos, cfg.DateFormat)
}

func writeList(w io.Writer, infos []core.EntryInfo, dateFormat string) {
	for _, info := range infos {
		fmt.Fprintf(w, "[%s] %s (%s)\n", info.ID, info.ID.Time.Local().Format(dateFormat), formatSize(info.Size))
	}
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
