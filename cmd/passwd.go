package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/jarida/internal/crypto"
	"github.com/illarion/jarida/internal/keyring"
)

// Passwd changes the password, and optionally the username, of the journal.
// Every entry is re-encrypted.
func Passwd(ctx context.Context, newUser string) {
	j, cfg := OpenJournal()

	// Get journal ID for keyring lookup
	journalID, _ := j.ID()

	session := Unlock(j, cfg)
	defer session.Close()
	oldUser := session.Username()
	if newUser == "" {
		newUser = oldUser
	}

	fmt.Println("Enter the new password")
	newPassword, err := GetPasswordForInit()
	if err != nil {
		session.Close()
		HandleError(err)
	}

	var cached []byte
	hadKeyring := journalID != "" && keyring.HasPassword(journalID, oldUser)
	if hadKeyring {
		cached = append([]byte(nil), newPassword...)
		defer crypto.ClearBytes(cached)
	}

	if err := session.ChangeCredentials(ctx, crypto.NewCredentials(newUser, newPassword), crypto.DefaultKDFParams); err != nil {
		session.Close()
		HandleError(err)
	}
	session.Close()

	// Keep the keyring in step with the new credentials
	if hadKeyring {
		_ = keyring.DeletePassword(journalID, oldUser)
		if err := keyring.SavePassword(journalID, newUser, cached); err == nil {
			fmt.Println("Keyring updated with new password")
		}
	}

	// Compact database after rewriting the index
	if err := j.Compact(); err != nil {
		Logger.Warnf("compaction failed: %s", err)
	}

	if newUser != oldUser {
		fmt.Printf("Credentials changed, username is now %q\n", newUser)
		return
	}
	fmt.Println("Password changed successfully")
}
