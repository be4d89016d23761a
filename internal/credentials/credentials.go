// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package credentials stores login secrets in a directory of plain-text
// files. Each file holds one secret: the filename is the key and the file
// contents (trimmed) are the value. The store is injected into whatever
// component needs it; there is no ambient global.
//
// Known keys: xwiki-username, xwiki-password, evernote-token.
package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Known credential keys.
const (
	KeyWikiUsername  = "xwiki-username"
	KeyWikiPassword  = "xwiki-password"
	KeyEvernoteToken = "evernote-token"
)

// Store reads and writes secrets under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir. The directory is created lazily on
// the first Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads all secrets in the directory. A missing directory is not an
// error; Load returns an empty map. Unreadable files produce a warning on
// stderr but do not abort.
func (s *Store) Load() (map[string]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading credentials directory %s: %w", s.dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read credential %s: %v\n", entry.Name(), err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			secrets[entry.Name()] = value
		}
	}

	return secrets, nil
}

// Get returns one secret, or "" when absent.
func (s *Store) Get(key string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading credential %s: %w", key, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes one secret, creating the directory with owner-only
// permissions if needed.
func (s *Store) Save(key, value string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating credentials directory %s: %w", s.dir, err)
	}
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, []byte(value+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing credential %s: %w", key, err)
	}
	return nil
}

// Delete removes one secret. Deleting an absent secret is a no-op.
func (s *Store) Delete(key string) error {
	err := os.Remove(filepath.Join(s.dir, key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting credential %s: %w", key, err)
	}
	return nil
}
