package core

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/illarion/jarida/internal/crypto"
	"golang.org/x/term"
)

const (
	EnvPassword = "JARIDA_PASSWORD"

	// MaxAttempts is how often the user may retry a prompt
	MaxAttempts = 3
)

var ErrPasswordMismatch = errors.New("passwords do not match")

// ReadPassword reads a password from the terminal without echoing.
// Prompts go to stderr so they never mix with entry output.
func ReadPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read password without echo
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // New line after password

	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}

	return password, nil
}

// ReadPasswordConfirm reads a password twice and ensures they match
func ReadPasswordConfirm() ([]byte, error) {
	password1, err := ReadPassword("Enter password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password1)

	password2, err := ReadPassword("Confirm password: ")
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(password2)

	if !crypto.ConstantTimeCompare(password1, password2) {
		return nil, ErrPasswordMismatch
	}

	// Return a copy of the password
	result := make([]byte, len(password1))
	copy(result, password1)
	return result, nil
}

// ReadPasswordConfirmRetry asks for a new password until both entries
// match, at most MaxAttempts times
func ReadPasswordConfirmRetry() ([]byte, error) {
	var err error
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		var password []byte
		password, err = ReadPasswordConfirm()
		if err == nil {
			return password, nil
		}
		if !errors.Is(err, ErrPasswordMismatch) {
			return nil, err
		}
		if attempt < MaxAttempts {
			fmt.Fprintln(os.Stderr, "Passwords do not match. Try again.")
		}
	}
	return nil, err
}

// GetPasswordFromEnv reads password from JARIDA_PASSWORD environment variable
func GetPasswordFromEnv() []byte {
	password := os.Getenv(EnvPassword)
	if password == "" {
		return nil
	}
	// Return a copy to avoid issues when clearing the bytes
	result := make([]byte, len(password))
	copy(result, []byte(password))
	return result
}

// ReadUsername prints prompt to stderr and reads one line from r
func ReadUsername(r io.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read username: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// IsTerminal reports whether stdin is interactive
func IsTerminal() bool {
	return term.IsTerminal(int(syscall.Stdin))
}
