package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/config/file"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/embedding/ollama"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/extraction/donut"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/extraction/gvision"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/extraction/pix2struct"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/extraction/tesseract"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/index/boltbm25"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/index/boltvec"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/render/mupdf"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driven/storage/sqlite"
	"github.com/vidhik-labs/vidhik-cli/internal/adapters/driving/cli"
	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
	"github.com/vidhik-labs/vidhik-cli/internal/core/services"
	"github.com/vidhik-labs/vidhik-cli/internal/postprocessors/chunker"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore(os.Getenv("VIDHIK_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	settings := configStore.Settings()

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}
	defer store.Close()

	embedder := ollama.NewEmbeddingService(ollama.Config{
		BaseURL: settings.OllamaURL,
		Model:   settings.EmbedModel,
	})
	defer embedder.Close()

	vectors, err := boltvec.Open(settings.DataDir, embedder.Dimensions())
	if err != nil {
		if errors.Is(err, domain.ErrIndexCorrupt) {
			return fmt.Errorf("%w (run 'vidhik rebuild' after removing the file)", err)
		}
		return fmt.Errorf("open vector index: %w", err)
	}
	defer vectors.Close()

	sparse, err := boltbm25.Open(settings.DataDir)
	if err != nil {
		if errors.Is(err, domain.ErrIndexCorrupt) {
			return fmt.Errorf("%w (run 'vidhik rebuild' after removing the file)", err)
		}
		return fmt.Errorf("open keyword index: %w", err)
	}
	defer sparse.Close()

	extractors := buildExtractors(settings)
	defer func() {
		for _, e := range extractors {
			_ = e.Close()
		}
	}()

	renderer := mupdf.New(settings.RenderDPI)
	processor := chunker.New(
		chunker.WithWindow(settings.ChunkWindow),
		chunker.WithOverlap(settings.ChunkOverlap),
	)

	ingest := services.NewIngestOrchestrator(
		renderer, extractors, embedder, vectors, sparse, store, processor, settings)
	search := services.NewSearchOrchestrator(embedder, vectors, sparse, store, settings)
	admin := services.NewRebuilder(embedder, vectors, sparse, store)

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Ingest:   ingest,
		Search:   search,
		Admin:    admin,
		Store:    store,
		Vectors:  vectors,
		Sparse:   sparse,
		Settings: settings,
	})

	return cli.Execute()
}

// buildExtractors instantiates the configured backends in priority order.
// An unknown name is warned about and skipped.
func buildExtractors(settings domain.Settings) []driven.Extractor {
	var out []driven.Extractor
	for _, name := range settings.Backends {
		switch name {
		case "donut":
			out = append(out, donut.New(donut.Config{
				BaseURL: settings.DonutURL,
				Timeout: settings.BackendTimeout,
			}))
		case "pix2struct":
			out = append(out, pix2struct.New(pix2struct.Config{
				BaseURL: settings.Pix2StructURL,
				Timeout: settings.BackendTimeout,
			}))
		case "gvision":
			out = append(out, gvision.New(gvision.Config{
				CredentialsFile:   settings.VisionCredentialsFile,
				AccessToken:       settings.VisionAccessToken,
				RequestsPerMinute: settings.VisionRequestsPerMinute,
			}))
		case "tesseract":
			out = append(out, tesseract.New(tesseract.Config{}))
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown extractor backend %q ignored\n", name)
		}
	}
	return out
}
