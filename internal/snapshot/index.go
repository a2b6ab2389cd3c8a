package snapshot

import (
	"strings"

	"github.com/sakif/github-users/internal/model"
)

// Index is an immutable, in-memory view of a filtered snapshot. It is built
// once at startup and then shared by concurrent request handlers without
// locking.
type Index struct {
	records []model.UserRecord
	folded  []string       // lowercased logins, parallel to records
	byLogin map[string]int // lowercased login -> first record with that login
}

// NewIndex copies records into a new Index.
func NewIndex(records []model.UserRecord) *Index {
	ix := &Index{
		records: make([]model.UserRecord, len(records)),
		folded:  make([]string, len(records)),
		byLogin: make(map[string]int, len(records)),
	}
	copy(ix.records, records)
	for i, r := range ix.records {
		key := fold(r.Login)
		ix.folded[i] = key
		if _, dup := ix.byLogin[key]; !dup {
			ix.byLogin[key] = i
		}
	}
	return ix
}

// Len returns the number of records in the index.
func (ix *Index) Len() int {
	return len(ix.records)
}

// Search returns every record whose login contains q, ignoring case, in
// snapshot order. The result is never nil.
func (ix *Index) Search(q string) []model.UserRecord {
	needle := fold(q)
	out := []model.UserRecord{}
	for i, login := range ix.folded {
		if strings.Contains(login, needle) {
			out = append(out, ix.records[i])
		}
	}
	return out
}

// Lookup finds the record whose login equals login, ignoring case.
func (ix *Index) Lookup(login string) (model.UserRecord, bool) {
	i, ok := ix.byLogin[fold(login)]
	if !ok {
		return model.UserRecord{}, false
	}
	return ix.records[i], true
}

// fold lowercases rune by rune. Full Unicode case folding is avoided: it
// maps "ß" to "ss", which would let "ß" match "boss".
func fold(s string) string {
	return strings.ToLower(s)
}
