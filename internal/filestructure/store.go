package filestructure

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store keeps a local copy of migrated attachment bodies under
// <root>/<sourceParentId>/<sourceId>_<name>.
type Store struct {
	root string
	mu   sync.Mutex
}

func NewStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("store root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("error creating store directory: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string {
	return s.root
}

// Save writes content and returns the path relative to the store root.
func (s *Store) Save(parentID, attachmentID, name string, content []byte) (string, error) {
	rel := filepath.Join(sanitize(parentID), sanitize(attachmentID)+"_"+sanitize(name))
	full := filepath.Join(s.root, rel)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("error creating directory for %s: %w", attachmentID, err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		return "", fmt.Errorf("error saving %s: %w", attachmentID, err)
	}
	return rel, nil
}

// Walk lists saved files relative to the store root, skipping hidden entries.
func (s *Store) Walk() ([]string, error) {
	var files []string
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// sanitize flattens a Salesforce name into a single safe path element.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
