package cmd

import (
	"context"
	"fmt"
)

// Index rebuilds the entry index from the entry files
func Index(ctx context.Context) {
	j, _ := OpenJournal()

	res, err := j.Reindex(ctx)
	if err != nil {
		HandleError(err)
	}

	if res.TempsRemoved > 0 {
		fmt.Printf("Removed %d abandoned temp file(s)\n", res.TempsRemoved)
	}
	fmt.Printf("Indexed %d entries\n", res.Indexed)
}
