// Package snapshot persists pipeline snapshots as JSON files and builds the
// read-only in-memory index the query service serves from.
//
// A snapshot is a JSON array of user objects, pretty-printed, fully rewritten
// by every producing run. Files are addressed by name inside a data
// directory, the store treats them as opaque blobs otherwise.
package snapshot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sakif/github-users/internal/apperror"
	"github.com/sakif/github-users/internal/model"
)

// requiredFields are the keys every stored record must carry. bio may be
// null but the key itself has to be present.
var requiredFields = []string{"login", "id", "created_at", "avatar_url", "bio"}

// Store reads and writes snapshot files under a single directory.
type Store struct {
	dataDirectory string
}

// NewStore returns a Store rooted at dataDirectory.
func NewStore(dataDirectory string) *Store {
	return &Store{dataDirectory: dataDirectory}
}

// Path returns the file path backing the named snapshot.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dataDirectory, name)
}

// Load reads the named snapshot and validates every record against the
// schema. A missing file is an apperror.ErrNotFound; a single malformed
// record invalidates the whole file with apperror.ErrSchema.
func (s *Store) Load(name string) ([]model.UserRecord, error) {
	path := s.Path(name)
	elems, err := s.readArray(path)
	if err != nil {
		return nil, err
	}

	records := make([]model.UserRecord, 0, len(elems))
	for i, elem := range elems {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(elem, &fields); err != nil || fields == nil {
			return nil, apperror.SchemaViolation(path, "", fmt.Sprintf("record %d is not a JSON object", i))
		}
		for _, key := range requiredFields {
			if _, ok := fields[key]; !ok {
				return nil, apperror.SchemaViolation(path, key, fmt.Sprintf("record %d is missing %q", i, key))
			}
		}

		var r model.UserRecord
		if err := json.Unmarshal(elem, &r); err != nil {
			return nil, apperror.SchemaViolation(path, "", fmt.Sprintf("record %d: %v", i, err))
		}
		records = append(records, r)
	}
	return records, nil
}

// LoadRaw returns the named snapshot's elements verbatim, without schema
// checks. It backs the public list endpoint.
func (s *Store) LoadRaw(name string) ([]json.RawMessage, error) {
	return s.readArray(s.Path(name))
}

// Save atomically replaces the named snapshot with records. The directory is
// created when missing.
func (s *Store) Save(name string, records []model.UserRecord) error {
	if records == nil {
		records = []model.UserRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("snapshot: encoding %s: %w", name, err)
	}

	if err := os.MkdirAll(s.dataDirectory, 0755); err != nil {
		return fmt.Errorf("snapshot: creating %s: %w", s.dataDirectory, err)
	}

	tmp, err := os.CreateTemp(s.dataDirectory, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("snapshot: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: replacing %s: %w", s.Path(name), err)
	}
	return nil
}

func (s *Store) readArray(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperror.NotFound("snapshot", path)
		}
		return nil, fmt.Errorf("snapshot: reading %s: %w", path, err)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, apperror.SchemaViolation(path, "", "not a JSON array: "+err.Error())
	}
	if elems == nil {
		// a literal null decodes without error
		return nil, apperror.SchemaViolation(path, "", "not a JSON array")
	}
	return elems, nil
}
