// Package store persists chunks as one pretty-printed JSON file per chunk
// id under a configurable root directory. The layout is deliberately
// human-readable for debugging index/store drift.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dkeller/facetidx/pkg/types"
)

// Errors returned by store operations
var (
	ErrNotFound = errors.New("chunk not found")
)

// ChunkStore is a durable id -> chunk mapping. A chunk is written once per
// ingestion and overwritten when its file is re-ingested.
type ChunkStore struct {
	dir string
}

// Open creates the store directory if needed and returns a store over it.
func Open(root string) (*ChunkStore, error) {
	dir := filepath.Join(root, "chunks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk store dir: %w", err)
	}
	return &ChunkStore{dir: dir}, nil
}

// Put writes the chunk, replacing any previous version under the same id.
func (s *ChunkStore) Put(chunk *types.Chunk) error {
	if err := chunk.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(chunk, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chunk %s: %w", chunk.ID, err)
	}
	path := s.pathFor(chunk.ID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write chunk %s: %w", chunk.ID, err)
	}
	return nil
}

// Get reads a chunk by id.
func (s *ChunkStore) Get(id string) (*types.Chunk, error) {
	data, err := os.ReadFile(s.pathFor(id))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var chunk types.Chunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, fmt.Errorf("parse chunk %s: %w", id, err)
	}
	return &chunk, nil
}

// Delete removes a chunk. Missing chunks are not an error.
func (s *ChunkStore) Delete(id string) error {
	err := os.Remove(s.pathFor(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IDs lists the ids of every stored chunk.
func (s *ChunkStore) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var chunk types.Chunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			continue
		}
		ids = append(ids, chunk.ID)
	}
	return ids, nil
}

// Clear removes every stored chunk.
func (s *ChunkStore) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// pathFor maps a chunk id to a filesystem path. Ids contain path separators
// and arbitrary symbol names, so the filename is a readable sanitized prefix
// plus a hash of the full id for uniqueness.
func (s *ChunkStore) pathFor(id string) string {
	sum := sha256.Sum256([]byte(id))
	name := sanitize(id)
	const maxPrefix = 80
	if len(name) > maxPrefix {
		name = name[:maxPrefix]
	}
	return filepath.Join(s.dir, fmt.Sprintf("%s-%s.json", name, hex.EncodeToString(sum[:8])))
}

func sanitize(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}
