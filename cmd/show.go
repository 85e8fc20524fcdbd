package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/illarion/jarida/internal/core"
	"github.com/illarion/jarida/internal/entries"
)

const ruleWidth = 80

// Show decrypts and prints one entry, or every entry when idArg is empty
func Show(ctx context.Context, idArg string, asTOML bool) {
	j, cfg := OpenJournal()

	var ids []entries.ID
	if idArg != "" {
		ids = append(ids, ResolveOrExit(j, idArg))
	}

	session := Unlock(j, cfg)
	defer session.Close()

	var records []*core.Entry
	collect := func(e *core.Entry) error {
		if asTOML {
			records = append(records, &core.Entry{ID: e.ID, Author: e.Author, Content: append([]byte(nil), e.Content...), Index: e.Index})
			return nil
		}
		writeEntry(os.Stdout, e, cfg.DateFormat)
		fmt.Println()
		return nil
	}

	var err error
	if len(ids) == 0 {
		err = session.EachEntry(ctx, collect)
	} else {
		var e *core.Entry
		if e, err = session.EntryDetails(ids[0]); err == nil {
			err = collect(e)
		}
	}
	if err != nil {
		session.Close()
		HandleError(err)
	}

	if asTOML {
		if err := writeTOML(os.Stdout, records); err != nil {
			session.Close()
			HandleError(err)
		}
	}
}

// writeEntry prints the header and content of one entry. The author line
// is left out for entries written without one.
func writeEntry(w io.Writer, e *core.Entry, dateFormat string) {
	title := "=== " + e.ID.String() + " "
	fmt.Fprintln(w, title+strings.Repeat("=", max(0, ruleWidth-len(title))))
	if e.Author != "" {
		fmt.Fprintf(w, "Author:   %s\n", e.Author)
	}
	fmt.Fprintf(w, "Written:  %s\n", e.ID.Time.Local().Format(dateFormat))
	if modified, ok := modifiedAfterWrite(e); ok {
		fmt.Fprintf(w, "Modified: %s\n", modified.Local().Format(dateFormat))
	}
	fmt.Fprintln(w, strings.Repeat("=", ruleWidth))
	fmt.Fprint(w, string(e.Content))
	if len(e.Content) > 0 && e.Content[len(e.Content)-1] != '\n' {
		fmt.Fprintln(w)
	}
}

// modifiedAfterWrite returns the last edit time if the entry was edited
// after the second it was written in
func modifiedAfterWrite(e *core.Entry) (time.Time, bool) {
	if e.Index == nil {
		return time.Time{}, false
	}
	modified := e.Index.Modified.Truncate(time.Second)
	if !modified.After(e.ID.Time) {
		return time.Time{}, false
	}
	return e.Index.Modified, true
}

type tomlEntry struct {
	Author   string     `toml:"author,omitempty"`
	Written  time.Time  `toml:"written"`
	Modified *time.Time `toml:"modified,omitempty"`
	Content  string     `toml:"content"`
}

// writeTOML prints entries as a TOML table keyed by entry id
func writeTOML(w io.Writer, records []*core.Entry) error {
	doc := make(map[string]tomlEntry, len(records))
	for _, e := range records {
		te := tomlEntry{
			Author:  e.Author,
			Written: e.ID.Time,
			Content: string(e.Content),
		}
		if modified, ok := modifiedAfterWrite(e); ok {
			utc := modified.UTC()
			te.Modified = &utc
		}
		doc[e.ID.String()] = te
	}
	return toml.NewEncoder(w).Encode(doc)
}
