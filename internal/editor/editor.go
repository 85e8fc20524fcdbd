// Package editor runs the user's text editor on a private temp file and
// reports what changed.
package editor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"
)

const (
	BinarySampleSize   = 8192 // Bytes to sample for text/binary detection
	BinaryThresholdPct = 10   // Max % non-printable chars for text

	tempPattern = "jarida-entry-*.txt"
)

// Editor launches an external editor. Command may carry arguments, such as
// "code --wait".
type Editor struct {
	Command string
	TempDir string // empty means os.TempDir
}

// New returns an editor using the configured command, or the environment's
// choice if configured is empty
func New(configured, tempDir string) *Editor {
	return &Editor{Command: Resolve(configured), TempDir: tempDir}
}

// Resolve picks the editor command: configured, then VISUAL, then EDITOR,
// then a platform default
func Resolve(configured string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	// Check VISUAL first (modern best practice)
	if editor := os.Getenv("VISUAL"); editor != "" {
		return editor
	}
	// Fall back to EDITOR
	if editor := os.Getenv("EDITOR"); editor != "" {
		return editor
	}
	// Platform-specific defaults
	if runtime.GOOS == "windows" {
		return "notepad"
	}
	return "vi"
}

// Edit writes initial to a temp file readable only by the owner, opens it
// in the editor and returns the saved content. The temp file is
// overwritten and removed before returning.
func (e *Editor) Edit(initial []byte) ([]byte, error) {
	tmpFile, err := os.CreateTemp(e.TempDir, tempPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmpFile.Name()
	defer wipe(name)

	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to set temp file permissions: %w", err)
	}
	if _, err := tmpFile.Write(initial); err != nil {
		tmpFile.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := e.invoke(name); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read temp file: %w", err)
	}
	return content, nil
}

// invoke opens the editor and waits for the user to finish
func (e *Editor) invoke(filename string) error {
	args := strings.Fields(e.Command)
	if len(args) == 0 {
		return fmt.Errorf("no editor configured")
	}

	// Check if editor is available
	if _, err := exec.LookPath(args[0]); err != nil {
		return fmt.Errorf("editor '%s' not found: %w\nPlease set editor in config.toml, VISUAL or EDITOR", args[0], err)
	}

	cmd := exec.Command(args[0], append(args[1:], filename)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("editor exited with code %d", exitErr.ExitCode())
	}
	return err
}

// wipe overwrites a file with zeros before removing it
func wipe(name string) {
	if info, err := os.Stat(name); err == nil && info.Size() > 0 {
		if f, err := os.OpenFile(name, os.O_WRONLY, 0); err == nil {
			f.Write(make([]byte, info.Size()))
			f.Sync()
			f.Close()
		}
	}
	os.Remove(name)
}

// IsText reports whether data is likely text.
//
// Detection heuristic (in order):
//  1. Null bytes present → binary
//  2. Invalid UTF-8 → binary
//  3. >10% non-printable control chars → binary
func IsText(data []byte) bool {
	if len(data) == 0 {
		return true
	}

	// Check for null bytes (strong indicator of binary)
	if bytes.IndexByte(data, 0) != -1 {
		return false
	}

	// Sample first portion for analysis
	sample := data[:min(len(data), BinarySampleSize)]

	if len(data) > BinarySampleSize {
		// Drop a rune cut in half by the sample boundary
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(sample); i++ {
			sample = sample[:len(sample)-1]
		}
	}
	if !utf8.Valid(sample) {
		return false
	}

	// Count non-printable characters
	nonPrintable := 0
	for _, b := range sample {
		// Allow common whitespace: space, tab, newline, carriage return
		if b < 32 && b != 9 && b != 10 && b != 13 {
			nonPrintable++
		}
		if b == 127 { // DEL character
			nonPrintable++
		}
	}

	// If more than threshold % non-printable, likely binary
	threshold := len(sample) * BinaryThresholdPct / 100
	return nonPrintable <= threshold
}
