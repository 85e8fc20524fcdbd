package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/illarion/jarida/internal/core"
	"github.com/illarion/jarida/internal/keyring"
)

// Status shows the state of the journal (no password required)
func Status(ctx context.Context) {
	j, cfg := OpenJournal()

	status, err := j.Status(ctx)
	if err != nil {
		HandleError(err)
	}

	writeStatus(os.Stdout, status, cfg.DateFormat)

	if cfg.User != "" {
		stored := "not stored"
		if keyring.HasPassword(status.JournalID, cfg.User) {
			stored = "stored in keyring"
		}
		fmt.Printf("Password:   %s\n", stored)
	}
}

func writeStatus(w io.Writer, status *core.StatusInfo, dateFormat string) {
	fmt.Fprintf(w, "Journal:    %s\n", status.Root)
	fmt.Fprintf(w, "ID:         %s\n", status.JournalID)
	if !status.Created.IsZero() {
		fmt.Fprintf(w, "Created:    %s\n", status.Created.Local().Format(time.RFC3339))
	}
	if !status.Modified.IsZero() {
		fmt.Fprintf(w, "Modified:   %s\n", status.Modified.Local().Format(time.RFC3339))
	}
	fmt.Fprintf(w, "Encryption: %s, %s\n", status.Algorithm, status.KDF)
	fmt.Fprintf(w, "Entries:    %d (%s)\n", status.EntryCount, formatSize(status.TotalSize))
	if status.First != nil {
		fmt.Fprintf(w, "First:      %s\n", status.First.Time.Local().Format(dateFormat))
		fmt.Fprintf(w, "Last:       %s\n", status.Last.Time.Local().Format(dateFormat))
	}
	if status.Unindexed > 0 || status.Stale > 0 {
		fmt.Fprintf(w, "\nIndex is out of date (%d unindexed, %d stale)\n", status.Unindexed, status.Stale)
		fmt.Fprintf(w, "Run 'jarida index' to rebuild it\n")
	}
}
