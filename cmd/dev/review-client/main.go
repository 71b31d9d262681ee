package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/garnizeh/devcompanion/internal/ai"
	"github.com/garnizeh/devcompanion/internal/config"
)

func main() {
	configPath := flag.String("config", "", "Path to config YAML file")
	provider := flag.String("provider", "", "Override the engine provider (stub, ollama, openai, bedrock)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: review-client [flags] <file|->\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *provider != "" {
		cfg.EngineConfig.Provider = *provider
	}

	code, err := readSource(flag.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	gateway, err := ai.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("create gateway: %v", err)
	}
	if c, ok := gateway.(io.Closer); ok {
		defer c.Close()
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.EngineConfig.Timeout)
	defer cancel()

	review, err := gateway.Analyze(ctx, code)
	if err != nil {
		if review == nil {
			log.Fatalf("analyze: %v", err)
		}
		logger.Warn("review degraded", "kind", ai.Kind(err), "err", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(review); err != nil {
		log.Fatal(err)
	}
}

// readSource reads path, or stdin when path is "-".
func readSource(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}
