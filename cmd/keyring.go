package cmd

import (
	"fmt"

	"github.com/illarion/jarida/internal/crypto"
	"github.com/illarion/jarida/internal/keyring"
)

// KeyringSave saves the password to the OS keyring
func KeyringSave() {
	j, cfg := OpenJournal()

	username, err := GetUsername(cfg)
	if err != nil {
		HandleError(err)
	}

	// Prompt for password
	password, err := GetPassword("Password: ")
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	// Verify credentials are correct; Unlock clears what it is given
	check := append([]byte(nil), password...)
	if err := j.VerifyCredentials(crypto.NewCredentials(username, check)); err != nil {
		HandleError(err)
	}

	journalID, err := j.ID()
	if err != nil {
		HandleError(err)
	}

	// Save to keyring
	if err := keyring.SavePassword(journalID, username, password); err != nil {
		HandleError(fmt.Errorf("failed to save to keyring: %w", err))
	}

	fmt.Println("Password saved to keyring")
}

// KeyringDelete removes the password from the OS keyring
func KeyringDelete() {
	j, cfg := OpenJournal()

	username, err := GetUsername(cfg)
	if err != nil {
		HandleError(err)
	}

	journalID, err := j.ID()
	if err != nil || !keyring.HasPassword(journalID, username) {
		fmt.Println("No password stored in keyring")
		return
	}

	if err := keyring.DeletePassword(journalID, username); err != nil {
		HandleError(fmt.Errorf("failed to remove from keyring: %w", err))
	}

	fmt.Println("Password removed from keyring")
}

// KeyringStatus checks if a password is stored in the keyring
func KeyringStatus() {
	j, cfg := OpenJournal()

	username, err := GetUsername(cfg)
	if err != nil {
		HandleError(err)
	}

	journalID, err := j.ID()
	if err != nil {
		fmt.Println("Password: not stored")
		return
	}

	if keyring.HasPassword(journalID, username) {
		fmt.Println("Password: stored in keyring")
	} else {
		fmt.Println("Password: not stored")
	}
}
