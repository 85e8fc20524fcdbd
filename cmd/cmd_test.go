package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illarion/jarida/internal/config"
	"github.com/illarion/jarida/internal/core"
	"github.com/illarion/jarida/internal/entries"
	"github.com/illarion/jarida/internal/journal"
	"github.com/illarion/jarida/internal/storage"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 bytes"},
		{1023, "1023 bytes"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatSize(tt.size))
	}
}

func TestWriteList(t *testing.T) {
	written := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	infos := []core.EntryInfo{
		{ID: entries.NewID(written), Size: 40},
		{ID: entries.NewID(written).Next(), Size: 2048},
	}

	var buf bytes.Buffer
	writeList(&buf, infos, "2006")

	assert.Equal(t,
		"[20240301T093000Z] 2024 (40 bytes)\n[20240301T093000Z-1] 2024 (2.0 KB)\n",
		buf.String())
}

func TestWriteEntry(t *testing.T) {
	written := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	e := &core.Entry{
		ID:      entries.NewID(written),
		Author:  "alice",
		Content: []byte("dear diary"),
		Index:   &storage.IndexEntry{Created: written, Modified: written},
	}

	var buf bytes.Buffer
	writeEntry(&buf, e, time.RFC3339)
	out := buf.String()

	assert.Contains(t, out, "=== 20240301T093000Z ")
	assert.Contains(t, out, "Author:   alice\n")
	assert.Contains(t, out, "Written:  "+written.Local().Format(time.RFC3339))
	assert.NotContains(t, out, "Modified:")
	assert.Contains(t, out, "dear diary\n")
}

func TestWriteEntryShowsLaterEdit(t *testing.T) {
	written := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	edited := written.Add(2 * time.Hour)
	e := &core.Entry{
		ID:      entries.NewID(written),
		Content: []byte("line\n"),
		Index:   &storage.IndexEntry{Created: written, Modified: edited},
	}

	var buf bytes.Buffer
	writeEntry(&buf, e, time.RFC3339)

	assert.NotContains(t, buf.String(), "Author:")
	assert.Contains(t, buf.String(), "Modified: "+edited.Local().Format(time.RFC3339))
	assert.NotContains(t, buf.String(), "line\n\n")
}

func TestModifiedAfterWriteIgnoresSameSecond(t *testing.T) {
	written := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	e := &core.Entry{
		ID:    entries.NewID(written),
		Index: &storage.IndexEntry{Modified: written.Add(400 * time.Millisecond)},
	}

	_, ok := modifiedAfterWrite(e)
	assert.False(t, ok)

	e.Index = nil
	_, ok = modifiedAfterWrite(e)
	assert.False(t, ok)
}

func TestWriteTOML(t *testing.T) {
	written := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	edited := written.Add(time.Hour)
	records := []*core.Entry{
		{ID: entries.NewID(written), Author: "alice", Content: []byte("first"), Index: &storage.IndexEntry{Modified: written}},
		{ID: entries.NewID(written).Next(), Author: "bob", Content: []byte("second\nline"), Index: &storage.IndexEntry{Modified: edited}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeTOML(&buf, records))

	var doc map[string]tomlEntry
	_, err := toml.Decode(buf.String(), &doc)
	require.NoError(t, err)
	require.Len(t, doc, 2)

	first := doc["20240301T093000Z"]
	assert.Equal(t, "alice", first.Author)
	assert.Equal(t, "first", first.Content)
	assert.True(t, first.Written.Equal(written))
	assert.Nil(t, first.Modified)

	second := doc["20240301T093000Z-1"]
	assert.Equal(t, "bob", second.Author)
	assert.Equal(t, "second\nline", second.Content)
	require.NotNil(t, second.Modified)
	assert.True(t, second.Modified.Equal(edited))
}

func TestWriteStatusReportsDrift(t *testing.T) {
	first := entries.NewID(time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC))
	status := &core.StatusInfo{
		Root:       "/tmp/journal",
		JournalID:  "id",
		Algorithm:  core.Algorithm,
		KDF:        "argon2id",
		EntryCount: 1,
		TotalSize:  10,
		First:      &first,
		Last:       &first,
		Unindexed:  1,
	}

	var buf bytes.Buffer
	writeStatus(&buf, status, "2006-01")

	assert.Contains(t, buf.String(), "Entries:    1 (10 bytes)")
	assert.Contains(t, buf.String(), "First:      2024-06")
	assert.Contains(t, buf.String(), "jarida index")
}

// setHome points the home and user config directories at a fresh temp dir
func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("AppData", filepath.Join(home, "AppData"))
	return home
}

func writeUserConfig(t *testing.T, content string) {
	t.Helper()
	path, err := config.UserPath()
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
}

func TestLocatorFallsBackToJournalDir(t *testing.T) {
	home := setHome(t)
	journalDir := t.TempDir()
	writeUserConfig(t, "journal_dir = '"+journalDir+"'\n")

	_, err := journal.Init(journalDir)
	require.NoError(t, err)

	notes := filepath.Join(home, "notes")
	require.NoError(t, os.Mkdir(notes, 0700))

	root, err := Locator().Locate(notes)
	require.NoError(t, err)
	assert.Equal(t, journal.Root(journalDir), root)

	// The user config does not turn the home directory into a journal
	_, err = os.Stat(filepath.Join(home, journal.MarkerDir))
	assert.True(t, os.IsNotExist(err))
	homeRoot, err := journal.Init(home)
	require.NoError(t, err)
	assert.Equal(t, journal.Root(home), homeRoot)
}

func TestLocatorFindsHomeJournal(t *testing.T) {
	home := setHome(t)
	writeUserConfig(t, "editor = 'vi'\n")

	_, err := journal.Init(home)
	require.NoError(t, err)
	notes := filepath.Join(home, "notes")
	require.NoError(t, os.Mkdir(notes, 0700))

	root, err := Locator().Locate(notes)
	require.NoError(t, err)
	assert.Equal(t, journal.Root(home), root)
}
