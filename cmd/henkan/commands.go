package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/cli"
	"github.com/hyperjump/henkan/internal/dataset"
	"github.com/hyperjump/henkan/internal/keyword"
	"github.com/hyperjump/henkan/internal/models"
	"github.com/hyperjump/henkan/internal/predict"
	"github.com/hyperjump/henkan/internal/seqmodel"
	"github.com/hyperjump/henkan/internal/server"
	"github.com/hyperjump/henkan/internal/vocab"
	"github.com/hyperjump/henkan/internal/watcher"
)

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func runPrepare() {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	file := fs.String("file", "", "corpus file (default: corpus.path from config)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := outputFormat(*output)

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()
	if *file != "" {
		cfg.Corpus.Path = *file
	}

	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	corpus, err := components.prepareCorpus(context.Background())
	if err != nil {
		fail("Preparation failed: %v", err)
	}
	if err := cli.WriteCorpus(os.Stdout, corpus, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runVocab() {
	fs := flag.NewFlagSet("vocab", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	fresh := fs.Bool("fresh", false, "re-prepare the corpus file before training")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	var corpus *models.PreparedCorpus
	if *fresh {
		corpus, err = components.prepareCorpus(ctx)
	} else {
		corpus, err = components.latestCorpus(ctx)
	}
	if err != nil {
		fail("Corpus unavailable: %v", err)
	}
	v, err := components.buildVocabulary(ctx, corpus)
	if err != nil {
		fail("Vocabulary training failed: %v", err)
	}
	fmt.Printf("tokens:      %d\n", v.Size())
	fmt.Printf("dimensions:  %d\n", v.Dimensions())
	fmt.Printf("table:       %s\n", cfg.Vocabulary.Path)
	if cfg.Vocabulary.ListingPath != "" {
		fmt.Printf("listing:     %s\n", cfg.Vocabulary.ListingPath)
	}
	if cfg.Vocabulary.NeighborsPath != "" {
		fmt.Printf("neighbors:   %s\n", cfg.Vocabulary.NeighborsPath)
	}
}

func runEncode() {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	limit := fs.Int("limit", -1, "encode only the first n pairs (default: encoding.limit, 0 = all)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := outputFormat(*output)

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()
	if *limit >= 0 {
		cfg.Encoding.Limit = *limit
	}

	tracker := cli.NewProgressTracker(os.Stderr, 0, 100)
	components, err := initializeComponents(cfg, logger, tracker.Func())
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	corpus, err := components.latestCorpus(ctx)
	if err != nil {
		fail("Corpus unavailable: %v", err)
	}
	v, err := components.loadVocabulary(ctx, corpus)
	if err != nil {
		fail("Vocabulary unavailable: %v", err)
	}
	result, err := components.encodeCorpus(ctx, corpus, v)
	tracker.Finish()
	if err != nil {
		fail("Encoding failed: %v", err)
	}
	if err := cli.WriteEncodeResult(os.Stdout, result, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// localPredictor loads the stored corpus and vocabulary into a predictor without a model.
func localPredictor(ctx context.Context, components *Components) *predict.Predictor {
	corpus, err := components.latestCorpus(ctx)
	if err != nil {
		fail("Corpus unavailable: %v", err)
	}
	v, err := components.loadVocabulary(ctx, corpus)
	if err != nil {
		fail("Vocabulary unavailable: %v", err)
	}
	p, err := predict.NewPredictor(v, corpus.Length, predict.WithFillerMode(components.Codec.FillerMode()))
	if err != nil {
		fail("Predictor unavailable: %v", err)
	}
	return p
}

func runQuestion() {
	fs := flag.NewFlagSet("question", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	encode := fs.Bool("encode", false, "print vectors instead of framed tokens")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := outputFormat(*output)

	text := joinArgs(fs.Args())
	if text == "" {
		fmt.Println("Usage: henkan question [flags] <text>")
		os.Exit(1)
	}

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if !*encode {
		corpus, err := components.latestCorpus(ctx)
		if err != nil {
			fail("Corpus unavailable: %v", err)
		}
		tokens, err := dataset.PrepareQuestion(text, corpus.Length)
		if err != nil {
			fail("Question rejected: %v", err)
		}
		if err := cli.WriteFramed(os.Stdout, models.FramedResponse{Tokens: tokens, Length: corpus.Length}, format); err != nil {
			fail("Output failed: %v", err)
		}
		return
	}

	resp, err := localPredictor(ctx, components).Encode(text)
	if err != nil {
		fail("Question rejected: %v", err)
	}
	if err := cli.WriteEncoded(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runPredict() {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	serverURL := fs.String("server", "", "server URL (empty = answer from local artifacts)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := outputFormat(*output)

	text := joinArgs(fs.Args())
	if text == "" {
		fmt.Println("Usage: henkan predict [flags] <text>")
		os.Exit(1)
	}

	var resp models.TextResponse
	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids SQLite/Badger/Bleve lock conflicts).
		r, err := newAPIClient(*serverURL, *configPath).predict(text)
		if err != nil {
			fail("Predict failed: %v", err)
		}
		resp = *r
	} else {
		cfg, logger, _ := setup(*configPath, *debug)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, nil)
		if err != nil {
			logger.Fatal("Failed to initialize components", zap.Error(err))
		}
		defer components.Close()

		ctx := context.Background()
		rt, err := components.loadRuntime(ctx)
		if err != nil {
			fail("Runtime unavailable: %v", err)
		}
		resp, err = rt.Predictor.Answer(ctx, text)
		if errors.Is(err, seqmodel.ErrNoModel) {
			fail("No sequence model configured (model.kind is %q)", cfg.Model.Kind)
		}
		if err != nil {
			fail("Predict failed: %v", err)
		}
	}
	if err := cli.WriteText(os.Stdout, resp, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// readDecodeRequest reads a {"vectors": ...} document from path, or stdin when path is "-".
func readDecodeRequest(path string) (*models.DecodeRequest, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var req models.DecodeRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid vectors document: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

func runDecode() {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	file := fs.String("file", "-", `JSON file with {"vectors": [[...], ...]}; "-" reads stdin`)
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := outputFormat(*output)

	req, err := readDecodeRequest(*file)
	if err != nil {
		fail("Decode failed: %v", err)
	}

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	text, lost := localPredictor(context.Background(), components).TextFromVectors(req.Vectors)
	if err := cli.WriteText(os.Stdout, models.TextResponse{Text: text, Lost: lost}, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runQuestions() {
	fs := flag.NewFlagSet("questions", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	query := fs.String("search", "", "full-text query over known questions")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	limit := fs.Int("limit", 0, "maximum questions listed or hits returned")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := outputFormat(*output)
	if *query == "" && fs.NArg() > 0 {
		*query = joinArgs(fs.Args())
	}

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	if *query == "" {
		n := cfg.Corpus.QuestionLimit
		if *limit > 0 {
			n = *limit
		}
		codec, err := dataset.NewCodec(dataset.WithLogger(logger))
		if err != nil {
			fail("Codec unavailable: %v", err)
		}
		questions, err := codec.KnownQuestionsFile(cfg.Corpus.Path, n)
		if err != nil {
			fail("Listing failed: %v", err)
		}
		if err := cli.WriteQuestions(os.Stdout, questions, format); err != nil {
			fail("Output failed: %v", err)
		}
		return
	}

	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	if _, err := components.indexQuestions(ctx); err != nil {
		fail("Indexing failed: %v", err)
	}
	hits, err := components.Questions.Search(ctx, *query, *limit, *fuzzy)
	if err != nil {
		fail("Search failed: %v", err)
	}
	if len(hits) == 0 {
		correction, err := keyword.NewSpeller(components.Questions).Check(*query)
		if err == nil && correction.Changed() {
			fmt.Fprintf(os.Stderr, "No matches. Did you mean: %s\n", correction.Suggested)
		}
	}
	if err := cli.WriteQuestionHits(os.Stdout, hits, format); err != nil {
		fail("Output failed: %v", err)
	}
}

func runNeighbors() {
	fs := flag.NewFlagSet("neighbors", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	k := fs.Int("k", 10, "number of neighbours")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))
	format := outputFormat(*output)

	token := joinArgs(fs.Args())
	if token == "" {
		fmt.Println("Usage: henkan neighbors [flags] <token>")
		os.Exit(1)
	}

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	v, err := vocab.Load(cfg.Vocabulary.Path)
	if err != nil {
		fail("Vocabulary unavailable: %v", err)
	}
	neighbors, ok := v.MostSimilar(token, *k)
	if !ok {
		fail("Token %q is not in the vocabulary", token)
	}
	if err := cli.WriteNeighbors(os.Stdout, token, neighbors, format); err != nil {
		fail("Output failed: %v", err)
	}
}

// newCorpusWatcher returns a watcher that runs the full rebuild on every corpus change
// and hands the result to apply. initial is the fingerprint of the corpus already loaded.
func newCorpusWatcher(components *Components, initial string, apply func(*server.Runtime)) (*watcher.CorpusWatcher, error) {
	cfg := components.Config
	return watcher.NewCorpusWatcher(
		cfg.Corpus.Path,
		func(ctx context.Context, path string) error {
			rt, err := components.rebuild(ctx)
			if err != nil {
				components.logger.Warn("corpus rebuild failed", zap.String("path", path), zap.Error(err))
				return err
			}
			apply(rt)
			return nil
		},
		watcher.WithLogger(components.logger),
		watcher.WithDebounce(cfg.Watch.Debounce()),
		watcher.WithFingerprint(components.Codec.Fingerprint, initial),
	)
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (corpus changes, rebuilds, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, resolvedConfigPath := setup(*configPath, *debug)
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug),
	)

	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	rt, err := components.loadRuntime(context.Background())
	if err != nil {
		logger.Fatal("Failed to load runtime", zap.Error(err))
	}
	srv := server.NewServer(rt, components.Questions, components.Corpora, cfg, logger)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.EnabledOrDefault() {
		w, err := newCorpusWatcher(components, rt.Corpus.Fingerprint, srv.SetRuntime)
		if err != nil {
			logger.Fatal("Failed to create watcher", zap.Error(err))
		}
		if err := w.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer w.Stop()
	}

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	waitForSignal()

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", configPathDefault(), "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, _ := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, nil)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	initial := ""
	if corpus, err := components.Corpora.LatestCorpus(context.Background()); err == nil {
		initial = corpus.Fingerprint
	}
	w, err := newCorpusWatcher(components, initial, func(rt *server.Runtime) {
		fmt.Printf("Rebuilt %s: %d pairs, %d tokens, %d questions\n",
			rt.Corpus.Source, rt.Corpus.Size(), rt.Predictor.Vocabulary().Size(), len(rt.Questions))
	})
	if err != nil {
		logger.Fatal("Failed to create watcher", zap.Error(err))
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer w.Stop()

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", w.Path())
	waitForSignal()
}
