package ledger

import "strings"

// Destination is a target category for a completed download.
type Destination string

const (
	DestinationMovies Destination = "movies"
	DestinationShows  Destination = "shows"
)

// Destinations lists all destinations in probe priority order.
var Destinations = []Destination{DestinationMovies, DestinationShows}

func (d Destination) Valid() bool {
	return d == DestinationMovies || d == DestinationShows
}

func (d Destination) Label() string {
	switch d {
	case DestinationMovies:
		return "Movies"
	case DestinationShows:
		return "Shows"
	}

	return string(d)
}

// CopyState tracks how far an entry's files have made it to their destination.
type CopyState string

const (
	StateNotCopied CopyState = "not_copied"
	StateCopying   CopyState = "copying"
	StateCopied    CopyState = "copied"
	StateFailed    CopyState = "failed"
)

// Entry is one tracked download.
type Entry struct {
	Hash        string      `json:"hash"`
	Name        string      `json:"name"`
	Destination Destination `json:"destination"`
	CopyState   CopyState   `json:"copy_state"`
}

// NeedsCopy reports whether the entry is a candidate for the copy engine.
// Failed entries are retried on every cycle, same as never-copied ones.
func (e Entry) NeedsCopy() bool {
	return e.CopyState == StateNotCopied || e.CopyState == StateFailed
}

// Find returns the index of the entry with the given hash. Hashes compare
// case-insensitively.
func Find(entries []Entry, hash string) (int, bool) {
	for i := range entries {
		if strings.EqualFold(entries[i].Hash, hash) {
			return i, true
		}
	}

	return 0, false
}
