// Package main is the henkan CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/henkan/internal/cli"
	"github.com/hyperjump/henkan/internal/config"
	"github.com/hyperjump/henkan/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/henkan/config.yaml"

// configPathDefault returns HENKAN_CONFIG when set, else defaultConfigPath.
func configPathDefault() string {
	if p := os.Getenv("HENKAN_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

// envDebug reports whether HENKAN_DEBUG is set to a true value.
func envDebug() bool {
	v, err := strconv.ParseBool(os.Getenv("HENKAN_DEBUG"))
	return err == nil && v
}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "henkan server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded.
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// setup loads the config and creates the logger, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, string) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Debug = cfg.Debug || debug || envDebug()
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger, resolved
}

// outputFormat parses an --output value, exiting on an unknown format.
func outputFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// joinArgs joins all positional args with spaces so multi-word text
// works the same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the text
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "henkan predict как дела -output json"
// would otherwise leave -output unparsed.
func argsReorder(args []string) []string {
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

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "prepare":
		runPrepare()
	case "vocab":
		runVocab()
	case "encode":
		runEncode()
	case "question":
		runQuestion()
	case "predict":
		runPredict()
	case "decode":
		runDecode()
	case "questions":
		runQuestions()
	case "neighbors":
		runNeighbors()
	case "server":
		runServer()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("henkan version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`henkan - question/answer corpus preparation and vector codec

Usage:
  henkan prepare [flags]              Prepare the corpus file into framed pairs
  henkan vocab [flags]                Train the vocabulary and write its reports
  henkan encode [flags]               Encode the prepared corpus into vector arrays
  henkan question [flags] <text>      Frame (or encode) a single question
  henkan predict [flags] <text>       Answer a question through the sequence model
  henkan decode [flags]               Turn a JSON vector array back into text
  henkan questions [flags]            List or search known questions
  henkan neighbors [flags] <token>    Show the nearest vocabulary tokens
  henkan server [flags]               Start the HTTP server
  henkan watch [flags]                Rebuild whenever the corpus file changes
  henkan status [flags]               Show corpus/vocabulary/index status
  henkan version                      Show version
  henkan help                         Show this help

Common Flags:
  --config string    Config file path (default: $HENKAN_CONFIG or /usr/local/etc/henkan/config.yaml)
  --debug            Enable debug logging (also HENKAN_DEBUG=1)
  --output string    Output format: text or json (default: text)

Prepare Flags:
  --file string      Corpus file (default: corpus.path from config)

Vocab Flags:
  --fresh            Re-prepare the corpus file before training

Encode Flags:
  --limit int        Encode only the first n pairs (default: encoding.limit, 0 = all)

Question Flags:
  --encode           Print vectors instead of framed tokens

Predict Flags:
  --server string    Server URL; empty uses local artifacts (default: "")

Decode Flags:
  --file string      JSON file with {"vectors": [[...], ...]}; "-" reads stdin (default: -)

Questions Flags:
  --search string    Full-text query over known questions
  --fuzzy            Typo-tolerant search
  --limit int        Maximum questions listed or hits returned

Neighbors Flags:
  --k int            Number of neighbours (default: 10)

Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for local artifacts.

Examples:
  henkan prepare
  henkan vocab --fresh
  henkan encode --limit 1000
  henkan question --encode "Как дела?"
  henkan predict Как дела
  henkan questions --search погода --fuzzy
  henkan neighbors привет
  henkan server
  henkan status --output json`)
}
