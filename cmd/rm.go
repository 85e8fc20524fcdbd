package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/illarion/jarida/internal/core"
	"github.com/illarion/jarida/internal/entries"
)

// Remove deletes entries from the journal
func Remove(ctx context.Context, args []string, force bool) {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "Error: rm requires at least one entry id\n")
		fmt.Fprintf(os.Stderr, "Usage: jarida rm [-force] <id> [id...]\n")
		os.Exit(1)
	}

	j, cfg := OpenJournal()

	ids := make([]entries.ID, 0, len(args))
	for _, arg := range args {
		ids = append(ids, ResolveOrExit(j, arg))
	}

	if !force {
		if !core.IsTerminal() {
			fmt.Fprintf(os.Stderr, "Error: refusing to remove without confirmation, use -force\n")
			os.Exit(1)
		}
		if !confirm(fmt.Sprintf("Remove %d entries permanently? [y/N] ", len(ids))) {
			fmt.Println("Aborted")
			return
		}
	}

	// Removing proves ownership of the journal like any other change
	session := Unlock(j, cfg)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			session.Close()
			HandleError(err)
		}
		if err := session.RemoveEntry(id); err != nil {
			session.Close()
			HandleError(err)
		}
		fmt.Printf("removed: %s\n", id)
	}
	session.Close()

	// Compact database to reclaim space
	if err := j.Compact(); err != nil {
		Logger.Warnf("compaction failed: %s", err)
	}
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
