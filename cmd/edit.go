package cmd

import (
	"bytes"
	"context"
	"fmt"

	"github.com/illarion/jarida/internal/crypto"
	"github.com/illarion/jarida/internal/editor"
)

// Edit opens an existing entry in the editor and saves the result
func Edit(_ context.Context, idArg string, showDiff bool) {
	j, cfg := OpenJournal()
	id := ResolveOrExit(j, idArg)

	session := Unlock(j, cfg)
	defer session.Close()

	before, err := session.ShowEntry(id)
	if err != nil {
		session.Close()
		HandleError(err)
	}
	defer crypto.ClearBytes(before)

	after, err := editor.New(cfg.Editor, cfg.TempDir).Edit(before)
	if err != nil {
		session.Close()
		HandleError(err)
	}
	defer crypto.ClearBytes(after)

	if bytes.Equal(before, after) {
		fmt.Printf("No changes to %s\n", id)
		return
	}

	if err := session.EditEntry(id, after); err != nil {
		session.Close()
		HandleError(err)
	}

	if showDiff {
		fmt.Print(editor.UnifiedDiff(id.String(), before, after))
	}
	fmt.Printf("✓ Updated entry %s: %s\n", id, editor.LineSummary(before, after))
}
