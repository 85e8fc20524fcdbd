package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/jarida/internal/crypto"
	"github.com/illarion/jarida/internal/editor"
)

// New writes a new entry, from message if given, otherwise in the editor
func New(_ context.Context, message string) {
	j, cfg := OpenJournal()

	// Unlock before editing so a typo in the password does not cost the entry
	session := Unlock(j, cfg)
	defer session.Close()

	var content []byte
	if message != "" {
		content = []byte(message)
	} else {
		var err error
		content, err = editor.New(cfg.Editor, cfg.TempDir).Edit(nil)
		if err != nil {
			session.Close()
			HandleError(err)
		}
	}
	defer crypto.ClearBytes(content)

	if !editor.IsText(content) {
		Logger.Warnf("entry does not look like text")
	}

	id, err := session.NewEntry(content)
	if err != nil {
		session.Close()
		HandleError(err)
	}

	fmt.Printf("✓ Saved entry %s\n", id)
}
