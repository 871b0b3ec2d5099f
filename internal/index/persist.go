package index

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	manifestFile = "manifest.json"
	entriesFile  = "entries.jsonl"
	vectorsFile  = "vectors.f32"

	indexVersion = 1
)

// manifest describes a persisted index and how to interpret its vector file.
type manifest struct {
	IndexVersion int    `json:"index_version"`
	CreatedAt    string `json:"created_at"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	Dim          int    `json:"dim"`
	Entries      int    `json:"entries"`
}

// load reads persisted state from idx.dir. A missing manifest means a fresh
// index; partial or inconsistent files are an error rather than silent data
// loss.
func (idx *Index) load() error {
	data, err := os.ReadFile(filepath.Join(idx.dir, manifestFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}
	if m.Dim != idx.dim {
		return fmt.Errorf("%w: persisted dim %d, embedder dim %d", ErrDimensionMismatch, m.Dim, idx.dim)
	}

	ef, err := os.Open(filepath.Join(idx.dir, entriesFile))
	if err != nil {
		return err
	}
	defer func() { _ = ef.Close() }()

	scanner := bufio.NewScanner(ef)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var block TextBlock
		if err := json.Unmarshal(line, &block); err != nil {
			return fmt.Errorf("parse entry %d: %w", len(idx.entries), err)
		}
		idx.byValue[block.Value] = len(idx.entries)
		idx.entries = append(idx.entries, block)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(idx.entries) != m.Entries {
		return fmt.Errorf("entry count mismatch: manifest %d, file %d", m.Entries, len(idx.entries))
	}

	flat := make([]float32, len(idx.entries)*idx.dim)
	vf, err := os.Open(filepath.Join(idx.dir, vectorsFile))
	if err != nil {
		return err
	}
	defer func() { _ = vf.Close() }()
	if err := binary.Read(bufio.NewReader(vf), binary.LittleEndian, flat); err != nil {
		return fmt.Errorf("read vectors: %w", err)
	}

	idx.vectors = make([][]float32, len(idx.entries))
	for i := range idx.entries {
		idx.vectors[i] = flat[i*idx.dim : (i+1)*idx.dim]
	}
	return nil
}

// Flush writes the index to disk when it has unflushed mutations.
func (idx *Index) Flush() error {
	if !idx.dirty {
		return nil
	}

	if err := os.MkdirAll(idx.dir, 0o755); err != nil {
		return fmt.Errorf("create index dir %s: %w", idx.dir, err)
	}

	m := manifest{
		IndexVersion: indexVersion,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		Provider:     idx.embedder.Provider(),
		Model:        idx.embedder.Model(),
		Dim:          idx.dim,
		Entries:      len(idx.entries),
	}
	mb, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(idx.dir, manifestFile), mb, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	ef, err := os.Create(filepath.Join(idx.dir, entriesFile))
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(ef)
	for i := range idx.entries {
		line, err := json.Marshal(idx.entries[i])
		if err != nil {
			_ = ef.Close()
			return err
		}
		if _, err := bw.Write(line); err != nil {
			_ = ef.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = ef.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = ef.Close()
		return err
	}
	if err := ef.Close(); err != nil {
		return err
	}

	vf, err := os.Create(filepath.Join(idx.dir, vectorsFile))
	if err != nil {
		return err
	}
	vw := bufio.NewWriter(vf)
	for i := range idx.vectors {
		if err := binary.Write(vw, binary.LittleEndian, idx.vectors[i]); err != nil {
			_ = vf.Close()
			return fmt.Errorf("write vectors: %w", err)
		}
	}
	if err := vw.Flush(); err != nil {
		_ = vf.Close()
		return err
	}
	if err := vf.Close(); err != nil {
		return err
	}

	idx.dirty = false
	return nil
}

func (idx *Index) removePersisted() error {
	for _, name := range []string{manifestFile, entriesFile, vectorsFile} {
		if err := os.Remove(filepath.Join(idx.dir, name)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}
