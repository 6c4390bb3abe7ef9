// Package cli implements the cobra command tree. Commands talk to the
// core exclusively through the driving ports; wiring happens in main.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/vidhik-labs/vidhik-cli/internal/core/domain"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driven"
	"github.com/vidhik-labs/vidhik-cli/internal/core/ports/driving"
	"github.com/vidhik-labs/vidhik-cli/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Services injected by main before Execute.
var (
	ingestService driving.IngestService
	searchService driving.SearchService
	indexAdmin    driving.IndexAdmin
	documentStore driven.DocumentStore
	vectorIndex   driven.VectorIndex
	searchEngine  driven.SearchEngine
	settings      domain.Settings
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "vidhik",
	Short: "Legal document search over scanned PDFs",
	Long: `vidhik ingests scanned legal PDFs through a chain of vision and OCR
backends, indexes the extracted text for hybrid dense and sparse
retrieval, and answers queries in mixed Hindi and English.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetVerbose(verbose)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Services carries everything the commands need.
type Services struct {
	Ingest   driving.IngestService
	Search   driving.SearchService
	Admin    driving.IndexAdmin
	Store    driven.DocumentStore
	Vectors  driven.VectorIndex
	Sparse   driven.SearchEngine
	Settings domain.Settings
}

// SetServices injects the wired services. Must run before Execute.
func SetServices(s Services) {
	ingestService = s.Ingest
	searchService = s.Search
	indexAdmin = s.Admin
	documentStore = s.Store
	vectorIndex = s.Vectors
	searchEngine = s.Sparse
	settings = s.Settings
}

// SetVersion overrides the reported version.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
