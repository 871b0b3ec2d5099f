package pipeline

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dkeller/facetidx/internal/chunker"
	"github.com/dkeller/facetidx/internal/documenter"
	"github.com/dkeller/facetidx/internal/index"
	"github.com/dkeller/facetidx/internal/store"
	"github.com/dkeller/facetidx/pkg/types"
)

// Pipeline orchestrates the write path: chunk -> document -> embed -> index.
type Pipeline struct {
	chunker    chunker.Chunker
	documenter documenter.Documenter
	store      *store.ChunkStore
	indices    *index.Set

	// Index mutation is not safe under concurrency, so all chunk writes
	// run under a weight-1 semaphore. This is a correctness invariant of
	// the indices, not a tuning knob.
	writers *semaphore.Weighted

	// The first chunk of a run is embedded alone before any concurrent
	// work starts, amortizing provider cold-start and auth latency.
	warmed bool
}

// FileStats is the per-file ingestion report.
type FileStats struct {
	Filename string
	Lines    int
	Blobs    int
	Chunks   int
	Errors   int
	Elapsed  time.Duration
}

// Statistics summarizes one ImportFiles run.
type Statistics struct {
	Files         []FileStats
	FilesImported int
	FilesSkipped  int
	ChunksWritten int
	Duration      time.Duration
}

// New creates a Pipeline over the given collaborators.
func New(ch chunker.Chunker, doc documenter.Documenter, st *store.ChunkStore, indices *index.Set) *Pipeline {
	return &Pipeline{
		chunker:    ch,
		documenter: doc,
		store:      st,
		indices:    indices,
		writers:    semaphore.NewWeighted(1),
	}
}

// ImportFiles ingests the given files. A chunker or documenter failure skips
// that file and the batch continues; embedding/index failures propagate only
// after the retry schedule is exhausted. Indices are flushed after every
// file so an aborted run leaves valid partial state.
func (p *Pipeline) ImportFiles(ctx context.Context, paths []string) (*Statistics, error) {
	start := time.Now()
	stats := &Statistics{}

	for _, path := range paths {
		fs, err := p.importFile(ctx, path)
		if fs != nil {
			stats.Files = append(stats.Files, *fs)
			stats.ChunksWritten += fs.Chunks
		}
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.FilesSkipped++
			log.Printf("skipping %s: %v", path, err)
			continue
		}
		stats.FilesImported++
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

func (p *Pipeline) importFile(ctx context.Context, path string) (*FileStats, error) {
	start := time.Now()

	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		canonical, err = filepath.Abs(path)
		if err != nil {
			canonical = path
		}
	}

	file, err := p.chunker.Chunkify(ctx, canonical)
	if err != nil {
		return nil, err
	}
	if len(file.Chunks) == 0 {
		log.Printf("%s: no chunks produced", canonical)
		return &FileStats{Filename: canonical, Elapsed: time.Since(start)}, nil
	}

	// One documenter call per file so documentation has cross-chunk
	// context. A failure here persists nothing for the file.
	docs, err := p.documenter.Document(ctx, file)
	if err != nil {
		return nil, err
	}

	attachDocs(file.Chunks, docs)

	fs := &FileStats{Filename: file.Filename, Chunks: len(file.Chunks)}
	for _, chunk := range file.Chunks {
		fs.Blobs += len(chunk.Blobs)
		fs.Lines += chunk.LineCount()
	}

	if err := p.writeChunks(ctx, file.Chunks); err != nil {
		fs.Errors++
		fs.Elapsed = time.Since(start)
		return fs, err
	}

	if err := p.indices.Flush(); err != nil {
		fs.Errors++
		fs.Elapsed = time.Since(start)
		return fs, err
	}

	fs.Elapsed = time.Since(start)
	log.Printf("imported %s: %d lines, %d blobs, %d chunks in %s",
		fs.Filename, fs.Lines, fs.Blobs, fs.Chunks, fs.Elapsed.Round(time.Millisecond))
	return fs, nil
}

// writeChunks persists and indexes all chunks of one file. The first chunk
// of the run goes synchronously; the rest run as goroutines serialized by
// the weight-1 writer semaphore.
func (p *Pipeline) writeChunks(ctx context.Context, chunks []*types.Chunk) error {
	rest := chunks
	if !p.warmed {
		if err := p.writeChunk(ctx, chunks[0]); err != nil {
			return err
		}
		p.warmed = true
		rest = chunks[1:]
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, chunk := range rest {
		g.Go(func() error {
			if err := p.writers.Acquire(gctx, 1); err != nil {
				return err
			}
			defer p.writers.Release(1)
			return p.writeChunk(gctx, chunk)
		})
	}
	return g.Wait()
}

// writeChunk stores one chunk and feeds every index. Each embedding-backed
// write is individually wrapped in the backoff schedule.
func (p *Pipeline) writeChunk(ctx context.Context, chunk *types.Chunk) error {
	if err := p.store.Put(chunk); err != nil {
		return fmt.Errorf("store chunk %s: %w", chunk.ID, err)
	}

	ids := []string{chunk.ID}

	if code := chunk.Code(); code != "" {
		err := withBackoff(ctx, func() error {
			return p.indices.Code().Put(ctx, code, ids)
		})
		if err != nil {
			return fmt.Errorf("index code for chunk %s (%s): %w", chunk.ID, chunk.Filename, err)
		}
	}

	if chunk.Docs == nil {
		return nil
	}

	for _, f := range index.Facets {
		idx := p.indices.Facet(f)
		for i := range chunk.Docs.Comments {
			for _, phrase := range f.Extract(&chunk.Docs.Comments[i]) {
				if phrase == "" {
					continue
				}
				err := withBackoff(ctx, func() error {
					return idx.Put(ctx, phrase, ids)
				})
				if err != nil {
					return fmt.Errorf("index %s %q for chunk %s (%s): %w", f, phrase, chunk.ID, chunk.Filename, err)
				}
			}
		}
	}
	return nil
}

// attachDocs assigns each LineDoc to every chunk with a non-breadcrumb blob
// spanning its line, then prepends a synthetic comment naming the chunk's
// tree-node type when the documenter said nothing about the chunk's first
// content line.
func attachDocs(chunks []*types.Chunk, docs []types.LineDoc) {
	for _, chunk := range chunks {
		var comments []types.LineDoc
		for i := range docs {
			if chunk.ContainsLine(docs[i].LineNumber) {
				comments = append(comments, docs[i])
			}
		}

		first := chunk.FirstContentLine()
		if first > 0 && !hasDocAt(comments, first) {
			synthetic := types.LineDoc{
				LineNumber: first,
				Comment:    chunk.TreeName,
			}
			comments = append([]types.LineDoc{synthetic}, comments...)
		}

		if len(comments) > 0 {
			chunk.Docs = &types.CodeDocumentation{Comments: comments}
		}
	}
}

func hasDocAt(docs []types.LineDoc, line int) bool {
	for i := range docs {
		if docs[i].LineNumber == line {
			return true
		}
	}
	return false
}
