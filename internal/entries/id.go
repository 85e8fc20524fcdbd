package entries

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	jerrors "github.com/illarion/jarida/internal/errors"
)

// IDLayout is the time layout of the id's timestamp part
const IDLayout = "20060102T150405Z"

// ID identifies an entry by its creation second plus a sequence number
// that disambiguates entries created within the same second.
type ID struct {
	Time time.Time
	Seq  int
}

// NewID returns the first id for t
func NewID(t time.Time) ID {
	return ID{Time: t.UTC().Truncate(time.Second)}
}

// Next returns the id following id within the same second
func (id ID) Next() ID {
	return ID{Time: id.Time, Seq: id.Seq + 1}
}

func (id ID) String() string {
	s := id.Time.UTC().Format(IDLayout)
	if id.Seq > 0 {
		s += "-" + strconv.Itoa(id.Seq)
	}
	return s
}

// Compare orders ids by time, then sequence
func (id ID) Compare(other ID) int {
	if c := id.Time.Compare(other.Time); c != 0 {
		return c
	}
	switch {
	case id.Seq < other.Seq:
		return -1
	case id.Seq > other.Seq:
		return 1
	}
	return 0
}

// ParseID parses the canonical textual form produced by String.
func ParseID(s string) (ID, error) {
	ts, seqStr, hasSeq := strings.Cut(s, "-")

	t, err := time.Parse(IDLayout, ts)
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", jerrors.ErrInvalidEntryID, s)
	}

	id := ID{Time: t.UTC()}
	if hasSeq {
		seq, err := strconv.Atoi(seqStr)
		if err != nil || seq < 1 {
			return ID{}, fmt.Errorf("%w: %q", jerrors.ErrInvalidEntryID, s)
		}
		id.Seq = seq
	}

	// Reject non-canonical spellings such as "-01" so one entry has one name
	if id.String() != s {
		return ID{}, fmt.Errorf("%w: %q", jerrors.ErrInvalidEntryID, s)
	}
	return id, nil
}
