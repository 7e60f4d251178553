// Package main is the Kotae CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cache"
	"github.com/hyperjump/kotae/internal/classify"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/pipeline"
	"github.com/hyperjump/kotae/internal/retriever"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/synthesize"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. A missing default config falls back to built-in defaults so the
// CLI works with no setup at all.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return config.Default(), "(defaults)", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (classification, similarity scores, backend fallback)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(components.Pipeline, &cfg.Server, cfg.Pipeline.RunTimeout()+10*time.Second, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	components.SaveIndex(cfg.Storage.VectorIndexPath, logger)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// askArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func askArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printAskUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kotae ask [flags] <question>\n\n")
	fmt.Fprintf(fs.Output(), "Question is all remaining arguments joined by spaces. Multi-word questions work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kotae ask what is the capital of france
  kotae ask "how do solar panels work"
  kotae ask --output json "query"          # structured JSON for other apps
  kotae ask --server "" what is go         # run the pipeline in-process
  kotae ask -i                             # interactive session
`)
}

func runAsk() {
	askArgs := askArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run the pipeline in-process)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	interactive := fs.Bool("i", false, "interactive session: read questions from stdin until EOF")
	fs.Usage = func() { printAskUsage(fs) }
	_ = fs.Parse(askArgs)

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
		format = cli.OutputText
	default:
		fmt.Printf("Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}

	resolve, cleanup, err := buildResolver(*serverURL, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if *interactive {
		runInteractive(resolve, format)
		return
	}

	if fs.NArg() < 1 {
		printAskUsage(fs)
		os.Exit(1)
	}
	queryStr := buildQuery(fs.Args())
	if queryStr == "" {
		printAskUsage(fs)
		os.Exit(1)
	}

	result, err := resolve(queryStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if result.Outcome == models.OutcomeFailed {
		os.Exit(1)
	}
}

// resolverFunc resolves one query, either via a running server or in-process.
type resolverFunc func(query string) (*models.PipelineResult, error)

// buildResolver returns a resolver backed by the HTTP API when serverURL is
// set, otherwise a full in-process pipeline.
func buildResolver(serverURL, configPath string) (resolverFunc, func(), error) {
	if serverURL != "" {
		return func(query string) (*models.PipelineResult, error) {
			return askViaHTTP(serverURL, query)
		}, func() {}, nil
	}

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, nil, err
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		components.SaveIndex(cfg.Storage.VectorIndexPath, logger)
		components.Close()
		_ = logger.Sync()
	}
	return func(query string) (*models.PipelineResult, error) {
		result := components.Pipeline.Resolve(context.Background(), query)
		return &result, nil
	}, cleanup, nil
}

func runInteractive(resolve resolverFunc, format cli.OutputFormat) {
	fmt.Println("kotae interactive session. Type a question, or Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)
	for {
		fmt.Print("\n? ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		result, err := resolve(query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			continue
		}
		if err := cli.WriteResult(os.Stdout, result, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		}
	}
}

func askViaHTTP(serverURL, query string) (*models.PipelineResult, error) {
	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Rejections and stage failures come back as non-200 but still carry a
	// full result body.
	switch resp.StatusCode {
	case http.StatusOK, http.StatusUnprocessableEntity, http.StatusBadGateway:
	default:
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var result models.PipelineResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &result, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = inspect local components directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := cli.OutputText
	if *outputFormat == "json" {
		format = cli.OutputJSON
	}

	var st pipeline.Status
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		st = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		st = components.Pipeline.Status(context.Background())
	}

	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*pipeline.Status, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var st pipeline.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &st, nil
}

// Components holds initialized services.
type Components struct {
	Store       cache.Store
	Embedder    embedding.Embedder
	VectorIndex vector.Index
	Pipeline    *pipeline.Pipeline
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
}

// SaveIndex persists the query vector index if a path is configured.
func (c *Components) SaveIndex(path string, logger *zap.Logger) {
	if path == "" || c.VectorIndex == nil {
		return
	}
	if err := c.VectorIndex.Save(path); err != nil && logger != nil {
		logger.Warn("vector index save failed", zap.String("path", path), zap.Error(err))
	}
}

// initializeComponents builds the full pipeline. Every remote collaborator
// has a local fallback so the binary stays usable without API keys or
// external services: memory cache for sqlite/redis, mock embedder, rule
// classifier, and extractive synthesis.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store := initStore(cfg, logger)
	embedder := initEmbedder(cfg, logger)

	index, err := vector.NewMemoryIndex(embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := index.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Warn("vector index load skipped",
				zap.String("path", cfg.Storage.VectorIndexPath),
				zap.Error(loadErr))
		}
	}

	var classifier classify.Classifier
	var synthesizer synthesize.Synthesizer
	chat, err := llm.New(llm.Config{
		APIKey:  cfg.LLM.APIKey(),
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout(),
	})
	if err != nil {
		logger.Warn("chat model unavailable, using rule classifier and extractive synthesis", zap.Error(err))
		classifier = classify.NewRuleClassifier()
		synthesizer = synthesize.NewExtractive()
	} else {
		classifier = classify.NewLLMClassifier(chat, logger)
		synthesizer = synthesize.NewLLMSynthesizer(chat, logger)
	}

	ret := initRetriever(cfg, logger)

	p := pipeline.New(classifier, embedder, index, store, ret, synthesizer, pipeline.Options{
		SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
		MaxSources:          cfg.Pipeline.MaxSources,
		TTL:                 cfg.Cache.TTL(),
		RunTimeout:          cfg.Pipeline.RunTimeout(),
	}, logger)

	return &Components{
		Store:       store,
		Embedder:    embedder,
		VectorIndex: index,
		Pipeline:    p,
	}, nil
}

func initStore(cfg *config.Config, logger *zap.Logger) cache.Store {
	switch cfg.Cache.Backend {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		store, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err == nil {
			return store
		}
		logger.Warn("redis unavailable, falling back to memory cache", zap.Error(err))
	case "memory":
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0o755); err == nil {
			store, err := cache.NewSQLiteStore(cfg.Storage.DatabasePath)
			if err == nil {
				return store
			}
			logger.Warn("sqlite unavailable, falling back to memory cache", zap.Error(err))
		}
	}
	return cache.NewMemoryStore()
}

func initEmbedder(cfg *config.Config, logger *zap.Logger) embedding.Embedder {
	remote, err := embedding.NewRemoteEmbedder(embedding.RemoteConfig{
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey(),
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		CacheSize:  cfg.Embedding.CacheSize,
	})
	if err != nil {
		logger.Warn("remote embedder unavailable, using mock embedder", zap.Error(err))
		return embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	}
	return remote
}

func initRetriever(cfg *config.Config, logger *zap.Logger) retriever.Retriever {
	fetcher := retriever.NewFetcher(retriever.FetcherConfig{
		Timeout:     cfg.Retrieval.FetchTimeout(),
		Concurrency: cfg.Retrieval.FetchConcurrency,
		UserAgent:   cfg.Retrieval.UserAgent,
	}, logger)

	var backends []retriever.SearchBackend
	for _, name := range cfg.Retrieval.Backends {
		switch name {
		case "duckduckgo":
			backends = append(backends, retriever.NewDuckDuckGo(cfg.Retrieval.BackendTimeout(), cfg.Retrieval.UserAgent))
		case "bing":
			backends = append(backends, retriever.NewBing(cfg.Retrieval.BingEndpoint, cfg.Retrieval.BingAPIKey(), cfg.Retrieval.BackendTimeout()))
		default:
			logger.Warn("unknown search backend skipped", zap.String("backend", name))
		}
	}
	return retriever.NewChain(backends, fetcher, cfg.Retrieval.BackendTimeout(), logger)
}

func printUsage() {
	fmt.Println(`kotae - Web research pipeline: classify, retrieve, synthesize, cache

Usage:
  kotae server [flags]            Start the HTTP server
  kotae ask [flags] <question>    Resolve a question into a cited answer
  kotae status [flags]            Show cache/index status
  kotae version                   Show version
  kotae help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging (classification, similarity scores, backend fallback)

Ask Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") to run in-process.
  --output string    Output format: text or json (default: text)
  -i                 Interactive session: read questions from stdin until EOF

Status Flags:
  --config string    Config file path (for in-process mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for in-process.
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ask what is the capital of france
  kotae ask --output json "how do solar panels work"
  kotae ask --server "" what is go
  kotae ask -i
  kotae status
  kotae status --output json`)
}
