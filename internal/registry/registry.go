// Package registry keeps the catalog of configured county data sources in a
// small JSON file. The catalog is tiny and changes rarely, so a file beats a
// table: it survives database rebuilds, which matters because ingestion drops
// and recreates the parcel table wholesale.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// ErrSourceNotFound is returned for lookups and mutations of unknown ids.
var ErrSourceNotFound = errors.New("data source not found")

// DataSource is one configured provider dataset.
type DataSource struct {
	ID     string `json:"id"`
	Name   string `json:"name" binding:"required"`
	URL    string `json:"url" binding:"required,url"`
	Active bool   `json:"active"`
}

// Store owns the registry file. All access goes through one Store instance;
// the mutex serializes readers and writers within the process.
type Store struct {
	path string

	mu      sync.Mutex
	sources []DataSource
}

// Open loads the registry from path, creating an empty registry if the file
// does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read registry %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &s.sources); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return s, nil
}

// List returns all registered sources.
func (s *Store) List() []DataSource {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DataSource, len(s.sources))
	copy(out, s.sources)
	return out
}

// Get returns one source by id.
func (s *Store) Get(id string) (DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, src := range s.sources {
		if src.ID == id {
			return src, nil
		}
	}
	return DataSource{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
}

// Add registers a new source, assigning it an id, and persists the registry.
func (s *Store) Add(source DataSource) (DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	source.ID = uuid.New().String()
	s.sources = append(s.sources, source)

	if err := s.save(); err != nil {
		s.sources = s.sources[:len(s.sources)-1]
		return DataSource{}, err
	}
	return source, nil
}

// Update replaces the named source's mutable fields and persists.
func (s *Store) Update(id string, source DataSource) (DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.sources {
		if existing.ID != id {
			continue
		}

		source.ID = id
		s.sources[i] = source
		if err := s.save(); err != nil {
			s.sources[i] = existing
			return DataSource{}, err
		}
		return source, nil
	}
	return DataSource{}, fmt.Errorf("%w: %s", ErrSourceNotFound, id)
}

// Delete removes a source and persists.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.sources {
		if existing.ID != id {
			continue
		}

		s.sources = append(s.sources[:i], s.sources[i+1:]...)
		if err := s.save(); err != nil {
			return err
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSourceNotFound, id)
}

// save writes through a temp file and rename so a crash mid-write can never
// truncate the registry.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.sources, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".registry-*")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close registry file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace registry %s: %w", s.path, err)
	}
	return nil
}
