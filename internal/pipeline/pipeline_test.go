package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeller/facetidx/internal/embedder"
	"github.com/dkeller/facetidx/internal/fusion"
	"github.com/dkeller/facetidx/internal/index"
	"github.com/dkeller/facetidx/internal/store"
	"github.com/dkeller/facetidx/pkg/types"
)

// mockChunker serves canned results keyed by path suffix match.
type mockChunker struct {
	files map[string]*types.ChunkedFile
	errs  map[string]error
}

func (m *mockChunker) Chunkify(ctx context.Context, path string) (*types.ChunkedFile, error) {
	for key, err := range m.errs {
		if pathHasSuffix(path, key) {
			return nil, err
		}
	}
	for key, file := range m.files {
		if pathHasSuffix(path, key) {
			return file, nil
		}
	}
	return &types.ChunkedFile{Filename: path}, nil
}

func pathHasSuffix(path, suffix string) bool {
	return len(path) >= len(suffix) && path[len(path)-len(suffix):] == suffix
}

// mockDocumenter returns fixed docs, or fails.
type mockDocumenter struct {
	docs []types.LineDoc
	err  error
}

func (m *mockDocumenter) Document(ctx context.Context, file *types.ChunkedFile) ([]types.LineDoc, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.docs, nil
}

// serialEmbedder is deterministic and asserts it is never called
// concurrently, which pins the single-writer invariant: every index
// mutation embeds through here.
type serialEmbedder struct {
	dim        int
	vectors    map[string][]float32
	next       int32
	active     int32
	violations int32
}

func newSerialEmbedder(dim int) *serialEmbedder {
	return &serialEmbedder{dim: dim, vectors: make(map[string][]float32)}
}

func (m *serialEmbedder) set(text string, vector []float32) {
	m.vectors[text] = vector
}

func (m *serialEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	if atomic.AddInt32(&m.active, 1) > 1 {
		atomic.AddInt32(&m.violations, 1)
	}
	defer atomic.AddInt32(&m.active, -1)
	time.Sleep(time.Millisecond)

	if req.Text == "" {
		return nil, embedder.ErrEmptyText
	}
	v, ok := m.vectors[req.Text]
	if !ok {
		v = make([]float32, m.dim)
		// Reserve the last dimension for preset vectors.
		v[int(atomic.AddInt32(&m.next, 1))%(m.dim-1)] = 1
		m.vectors[req.Text] = v
	}
	out := make([]float32, m.dim)
	copy(out, v)
	return &embedder.Embedding{Vector: out, Dimension: m.dim, Provider: "serial", Model: "serial-v1"}, nil
}

func (m *serialEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	embs := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		e, err := m.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: text})
		if err != nil {
			return nil, err
		}
		embs[i] = e
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embs, Provider: "serial", Model: "serial-v1"}, nil
}

func (m *serialEmbedder) Dimension() int   { return m.dim }
func (m *serialEmbedder) Provider() string { return "serial" }
func (m *serialEmbedder) Model() string    { return "serial-v1" }
func (m *serialEmbedder) Close() error     { return nil }

func newTestPipeline(t *testing.T, ch *mockChunker, doc *mockDocumenter, emb embedder.Embedder) (*Pipeline, *index.Set, *store.ChunkStore) {
	t.Helper()
	root := t.TempDir()
	indices, err := index.OpenSet(root, emb)
	require.NoError(t, err)
	chunks, err := store.Open(root)
	require.NoError(t, err)
	return New(ch, doc, chunks, indices), indices, chunks
}

func chunk(id, tree string, start int, lines ...string) *types.Chunk {
	return &types.Chunk{
		ID:       id,
		Filename: "src/math.ts",
		TreeName: tree,
		Blobs:    []types.Blob{{Start: start, Lines: lines}},
	}
}

func TestDocAttachment(t *testing.T) {
	// One LineDoc at blob.start+3 attaches to every chunk spanning that
	// line through a non-breadcrumb blob, and to none that only has
	// breadcrumbs there.
	outer := &types.Chunk{
		ID: "f#outer", Filename: "f", TreeName: "class_declaration",
		Blobs: []types.Blob{{Start: 0, Lines: []string{"class C {", "  m() {", "    x;", "  }", "}"}}},
	}
	inner := &types.Chunk{
		ID: "f#inner", Filename: "f", TreeName: "method_definition",
		Blobs: []types.Blob{
			{Start: 0, Lines: []string{"class C {"}, Breadcrumb: true},
			{Start: 1, Lines: []string{"  m() {", "    x;", "  }"}},
		},
	}
	crumbsOnly := &types.Chunk{
		ID: "f#crumb", Filename: "f", TreeName: "marker",
		Blobs: []types.Blob{{Start: 0, Lines: []string{"class C {", "  m() {", "    x;"}, Breadcrumb: true}},
	}

	docs := []types.LineDoc{{LineNumber: 3, Comment: "assigns x", Keywords: []string{"assignment"}}}
	attachDocs([]*types.Chunk{outer, inner, crumbsOnly}, docs)

	require.NotNil(t, outer.Docs)
	require.NotNil(t, inner.Docs)
	assert.Nil(t, crumbsOnly.Docs, "breadcrumb-only chunks receive nothing")

	assert.Equal(t, "assigns x", lastComment(outer))
	assert.Equal(t, "assigns x", lastComment(inner))
}

func lastComment(c *types.Chunk) string {
	return c.Docs.Comments[len(c.Docs.Comments)-1].Comment
}

func TestSyntheticFirstComment(t *testing.T) {
	c := chunk("f#fn", "function_declaration", 10, "function f() {", "}")

	// Nothing documented at the first content line: the tree-node type is
	// prepended as the chunk's own first comment.
	attachDocs([]*types.Chunk{c}, []types.LineDoc{{LineNumber: 12, Comment: "closes"}})
	require.NotNil(t, c.Docs)
	require.Len(t, c.Docs.Comments, 2)
	assert.Equal(t, "function_declaration", c.Docs.Comments[0].Comment)
	assert.Equal(t, 11, c.Docs.Comments[0].LineNumber)

	// A documenter comment at the first content line suppresses the
	// synthetic one.
	c2 := chunk("f#fn2", "function_declaration", 10, "function g() {", "}")
	attachDocs([]*types.Chunk{c2}, []types.LineDoc{{LineNumber: 11, Comment: "declares g"}})
	require.Len(t, c2.Docs.Comments, 1)
	assert.Equal(t, "declares g", c2.Docs.Comments[0].Comment)
}

func TestImportSkipsFailedFiles(t *testing.T) {
	ch := &mockChunker{
		files: map[string]*types.ChunkedFile{
			"good.ts": {Filename: "good.ts", Chunks: []*types.Chunk{chunk("good.ts#a", "function_declaration", 0, "fn")}},
		},
		errs: map[string]error{"bad.ts": errors.New("chunker exploded")},
	}
	doc := &mockDocumenter{docs: []types.LineDoc{{LineNumber: 1, Comment: "fn", Keywords: []string{"k"}}}}
	p, _, chunks := newTestPipeline(t, ch, doc, newSerialEmbedder(8))

	stats, err := p.ImportFiles(context.Background(), []string{"bad.ts", "good.ts"})
	require.NoError(t, err, "a failed file is skipped, not fatal to the batch")
	assert.Equal(t, 1, stats.FilesImported)
	assert.Equal(t, 1, stats.FilesSkipped)

	got, err := chunks.Get("good.ts#a")
	require.NoError(t, err)
	assert.Equal(t, "good.ts#a", got.ID)
}

func TestDocumenterFailureSkipsWholeFile(t *testing.T) {
	ch := &mockChunker{
		files: map[string]*types.ChunkedFile{
			"f.ts": {Filename: "f.ts", Chunks: []*types.Chunk{chunk("f.ts#a", "function_declaration", 0, "fn")}},
		},
	}
	doc := &mockDocumenter{err: errors.New("model refused")}
	p, indices, chunks := newTestPipeline(t, ch, doc, newSerialEmbedder(8))

	stats, err := p.ImportFiles(context.Background(), []string{"f.ts"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesSkipped)

	// No partial documentation, no stored chunk.
	_, err = chunks.Get("f.ts#a")
	assert.Error(t, err)
	assert.Equal(t, 0, indices.Code().Len())
}

func TestSingleWriterInvariant(t *testing.T) {
	many := make([]*types.Chunk, 0, 8)
	for i := 0; i < 8; i++ {
		many = append(many, chunk(
			"f.ts#c"+string(rune('a'+i)), "function_declaration", i*10, "line one", "line two"))
	}
	ch := &mockChunker{files: map[string]*types.ChunkedFile{"f.ts": {Filename: "f.ts", Chunks: many}}}
	doc := &mockDocumenter{docs: []types.LineDoc{
		{LineNumber: 1, Comment: "first", Keywords: []string{"alpha", "beta"}, Topics: []string{"t"}},
		{LineNumber: 11, Comment: "second", Goals: []string{"g"}, Dependencies: []string{"d"}},
	}}
	emb := newSerialEmbedder(8)
	p, _, _ := newTestPipeline(t, ch, doc, emb)

	_, err := p.ImportFiles(context.Background(), []string{"f.ts"})
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt32(&emb.violations), "index writes must never interleave")
}

func TestEndToEndQuery(t *testing.T) {
	emb := newSerialEmbedder(8)
	// "math" is both the indexed keyword and the query text; everything
	// else (code text, other phrases) gets an orthogonal basis vector.
	emb.set("math", []float32{0, 0, 0, 0, 0, 0, 0, 1})

	foo := chunk("f.ts#fn foo", "function_declaration", 0, "function foo() {", "  return 1 + 1;", "}")
	bar := chunk("f.ts#fn bar", "function_declaration", 10, "function bar() {", "  return greet();", "}")
	ch := &mockChunker{files: map[string]*types.ChunkedFile{"f.ts": {Filename: "f.ts", Chunks: []*types.Chunk{foo, bar}}}}
	doc := &mockDocumenter{docs: []types.LineDoc{
		{LineNumber: 2, Comment: "adds numbers", Keywords: []string{"math"}},
		{LineNumber: 12, Comment: "greets", Keywords: []string{"greeting"}},
	}}
	p, indices, chunks := newTestPipeline(t, ch, doc, emb)

	_, err := p.ImportFiles(context.Background(), []string{"f.ts"})
	require.NoError(t, err)

	engine := fusion.New(indices, chunks)
	result, err := engine.Query(context.Background(), "math", 10, 0.1)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)

	assert.Equal(t, "f.ts#fn foo", result.Hits[0].Item)
	for _, hit := range result.Hits[1:] {
		assert.NotEqual(t, "f.ts#fn bar", hit.Item, "bar's only score source is below minScore")
	}
}

func TestWarmupThenConcurrent(t *testing.T) {
	// The first chunk of a run is written synchronously before any
	// goroutines start; subsequent files reuse the warmed pipeline.
	ch := &mockChunker{files: map[string]*types.ChunkedFile{
		"a.ts": {Filename: "a.ts", Chunks: []*types.Chunk{chunk("a.ts#1", "function_declaration", 0, "x")}},
		"b.ts": {Filename: "b.ts", Chunks: []*types.Chunk{chunk("b.ts#1", "function_declaration", 0, "y"), chunk("b.ts#2", "function_declaration", 5, "z")}},
	}}
	doc := &mockDocumenter{docs: []types.LineDoc{{LineNumber: 1, Comment: "c"}}}
	p, _, chunks := newTestPipeline(t, ch, doc, newSerialEmbedder(8))

	assert.False(t, p.warmed)
	_, err := p.ImportFiles(context.Background(), []string{"a.ts"})
	require.NoError(t, err)
	assert.True(t, p.warmed)

	_, err = p.ImportFiles(context.Background(), []string{"b.ts"})
	require.NoError(t, err)

	ids, err := chunks.IDs()
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}
