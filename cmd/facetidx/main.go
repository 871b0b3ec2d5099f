package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dkeller/facetidx/internal/chunker"
	"github.com/dkeller/facetidx/internal/config"
	"github.com/dkeller/facetidx/internal/documenter"
	"github.com/dkeller/facetidx/internal/embedder"
	"github.com/dkeller/facetidx/internal/fusion"
	"github.com/dkeller/facetidx/internal/index"
	"github.com/dkeller/facetidx/internal/mcp"
	"github.com/dkeller/facetidx/internal/pipeline"
	"github.com/dkeller/facetidx/internal/store"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      *config.Config
	cache    *embedder.Cache
	pipeline *pipeline.Pipeline
	engine   *fusion.Engine
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	for _, warning := range cfg.Validate() {
		log.Printf("config: %s", warning)
	}

	cache := embedder.NewCache(cfg.Embedding.CacheSize)
	emb, err := embedder.New(embedder.Config{
		Provider: cfg.Embedding.Provider,
		APIKey:   cfg.Embedding.APIKey,
		Cache:    cache,
	})
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}

	indices, err := index.OpenSet(cfg.Root, emb)
	if err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}
	chunks, err := store.Open(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("chunk store: %w", err)
	}

	var doc documenter.Documenter
	doc, err = documenter.NewLLM(cfg.Documenter.APIKey, cfg.Documenter.Model, cfg.Documenter.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("documenter: %w", err)
	}

	ch := chunker.NewExec(cfg.Chunker.Command, cfg.Chunker.Args...)

	return &app{
		cfg:      cfg,
		cache:    cache,
		pipeline: pipeline.New(ch, doc, chunks, indices),
		engine:   fusion.New(indices, chunks),
	}, nil
}

func main() {
	// Log to stderr; stdout is reserved for command output and, under
	// serve, the MCP protocol.
	log.SetOutput(os.Stderr)
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:   "facetidx",
		Short: "Chunk-level semantic code index",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path")

	ingestCmd := &cobra.Command{
		Use:   "ingest <paths...>",
		Short: "Chunk, document and index source files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			stats, err := a.pipeline.ImportFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, fs := range stats.Files {
				fmt.Printf("%s: %d lines, %d blobs, %d chunks, %d errors (%s)\n",
					fs.Filename, fs.Lines, fs.Blobs, fs.Chunks, fs.Errors, fs.Elapsed.Round(time.Millisecond))
			}
			fmt.Printf("imported %d files (%d skipped), %d chunks in %s\n",
				stats.FilesImported, stats.FilesSkipped, stats.ChunksWritten, stats.Duration.Round(time.Millisecond))
			cs := a.cache.Stats()
			log.Printf("embedding cache: %d entries, %d hits, %d misses", cs.Entries, cs.Hits, cs.Misses)
			return nil
		},
	}

	var (
		maxHits  int
		minScore float64
		verbose  bool
	)
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Query the index with natural language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("max-hits") {
				maxHits = a.cfg.Search.MaxHits
			}
			if !cmd.Flags().Changed("min-score") {
				minScore = a.cfg.Search.MinScore
			}

			var result *fusion.Result
			if verbose {
				result, err = a.engine.QueryVerbose(cmd.Context(), args[0], maxHits, minScore)
			} else {
				result, err = a.engine.Query(cmd.Context(), args[0], maxHits, minScore)
			}
			if err != nil {
				return err
			}

			if verbose {
				for _, per := range result.PerIndex {
					fmt.Printf("[%s] %d hits\n", per.Index, len(per.Hits))
					for _, hit := range per.Hits {
						fmt.Printf("  %.3f %q -> %v\n", hit.Score, hit.Block.Value, hit.Block.SourceIDs)
					}
				}
			}
			for _, deg := range result.Degraded {
				log.Printf("warning: %s index unavailable, results degraded", deg)
			}

			if len(result.Hits) == 0 {
				fmt.Println("no hits")
				return nil
			}
			fmt.Printf("%d hits\n", len(result.Hits))
			for _, rendered := range a.engine.Render(result.Hits) {
				if rendered.Err != nil {
					fmt.Printf("%.3f %s (unavailable: %v)\n", rendered.Hit.Score, rendered.Hit.Item, rendered.Err)
					continue
				}
				fmt.Printf("%.3f %s (%s)\n", rendered.Hit.Score, rendered.Hit.Item, rendered.Chunk.Filename)
				if rendered.Chunk.Docs != nil && len(rendered.Chunk.Docs.Comments) > 0 {
					fmt.Printf("  %s\n", rendered.Chunk.Docs.Comments[0].Comment)
				}
				if verbose {
					fmt.Println(rendered.Chunk.Code())
				}
			}
			return nil
		},
	}
	searchCmd.Flags().IntVar(&maxHits, "max-hits", 5, "Maximum number of hits")
	searchCmd.Flags().Float64Var(&minScore, "min-score", 0.7, "Minimum similarity score")
	searchCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print per-index intermediate scores and chunk code")

	var filter string
	facetsCmd := &cobra.Command{
		Use:   "facets <facet>",
		Short: "Browse entries of one facet index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			facet, err := index.ParseFacet(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			entries := a.engine.Browse(facet, filter)
			for _, entry := range entries {
				fmt.Printf("%q -> %v\n", entry.Value, entry.SourceIDs)
			}
			fmt.Printf("%d entries\n", len(entries))
			return nil
		},
	}
	facetsCmd.Flags().StringVar(&filter, "filter", "", "All-words-present filter over facet text")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP stdio server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			log.Printf("facetidx MCP server v%s listening on stdio", version)
			srv := mcp.NewServer(a.pipeline, a.engine, a.cfg.Search.MaxHits, a.cfg.Search.MinScore)
			return srv.Serve(cmd.Context())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("facetidx %s (built %s)\n", version, buildTime)
		},
	}

	rootCmd.AddCommand(ingestCmd, searchCmd, facetsCmd, serveCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}
