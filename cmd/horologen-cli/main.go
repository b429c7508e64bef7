// Command horologen-cli generates one article from a JSON payload file,
// for local testing and one-off runs without the HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/isaomisk/HoroloGen/internal/fetcher"
	"github.com/isaomisk/HoroloGen/internal/generation"
	"github.com/isaomisk/HoroloGen/internal/pipeline"
	"github.com/isaomisk/HoroloGen/internal/policy"
	"github.com/isaomisk/HoroloGen/internal/trust"
	"github.com/isaomisk/HoroloGen/pkg/article"
	"github.com/isaomisk/HoroloGen/pkg/logging"
)

type output struct {
	IntroText string          `json:"intro_text"`
	SpecsText string          `json:"specs_text"`
	RefMeta   article.RefMeta `json:"ref_meta"`
}

func main() {
	payloadPath := flag.String("payload", "-", "payload JSON file, or - for stdin")
	rewriteMode := flag.String("rewrite", "none", "rewrite mode: none, auto or force")
	timeout := flag.Duration("timeout", 3*time.Minute, "overall generation timeout")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	_ = godotenv.Load()

	logConfig := logging.DefaultLogConfig()
	logConfig.Level = *logLevel
	if err := logging.Setup(logConfig); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	payload, err := readPayload(*payloadPath)
	if err != nil {
		log.Fatalf("Failed to read payload: %v", err)
	}

	mode, err := article.ParseRewriteMode(*rewriteMode)
	if err != nil {
		log.Fatalf("Invalid rewrite mode: %v", err)
	}

	backend, err := generation.NewAnthropicClientFromEnv()
	if err != nil {
		log.Fatalf("Failed to configure generation backend: %v", err)
	}

	registry := trust.DefaultRegistry()
	f := fetcher.New(fetcher.DefaultConfig(), registry, fetcher.NewStrategyTable(), fetcher.NewDenoiser(fetcher.DefaultDenoiseConfig()))
	p := pipeline.New(registry, f.Fetch, backend, policy.NewFilter())

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	draft, meta, err := p.Generate(ctx, payload, mode)
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(output{IntroText: draft.IntroText, SpecsText: draft.SpecsText, RefMeta: meta}); err != nil {
		log.Fatalf("Failed to encode result: %v", err)
	}
}

func readPayload(path string) (*article.GenerationPayload, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var payload article.GenerationPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("parse payload JSON: %w", err)
	}
	return &payload, nil
}
