package editor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Summary counts changed lines between two versions of an entry
type Summary struct {
	Added   int
	Removed int
}

// Changed reports whether any line differs
func (s Summary) Changed() bool {
	return s.Added > 0 || s.Removed > 0
}

func (s Summary) String() string {
	if !s.Changed() {
		return "no changes"
	}
	return fmt.Sprintf("%d line(s) added, %d line(s) removed", s.Added, s.Removed)
}

// lineDiffs runs a line-mode diff
func lineDiffs(oldText, newText string) []diffmatchpatch.Diff {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	return dmp.DiffCharsToLines(diffs, lineArray)
}

// LineSummary counts added and removed lines from before to after
func LineSummary(before, after []byte) Summary {
	var s Summary
	if bytes.Equal(before, after) {
		return s
	}
	for _, d := range lineDiffs(string(before), string(after)) {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Added += n
		case diffmatchpatch.DiffDelete:
			s.Removed += n
		}
	}
	return s
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}

// UnifiedDiff renders the change from before to after as patch text with
// file headers, or "" if nothing changed
func UnifiedDiff(name string, before, after []byte) string {
	if bytes.Equal(before, after) {
		return ""
	}

	// Check if binary
	if !IsText(before) || !IsText(after) {
		return fmt.Sprintf("Binary entry %s has changed\n", name)
	}

	dmp := diffmatchpatch.New()
	beforeStr := string(before)
	patches := dmp.PatchMake(beforeStr, lineDiffs(beforeStr, string(after)))
	if len(patches) == 0 {
		return ""
	}

	// Add headers and format output
	var result strings.Builder
	result.WriteString(fmt.Sprintf("--- a/%s\n", name))
	result.WriteString(fmt.Sprintf("+++ b/%s\n", name))
	result.WriteString(dmp.PatchToText(patches))

	return result.String()
}
