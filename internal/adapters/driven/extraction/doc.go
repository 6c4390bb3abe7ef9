// Package extraction groups the extractor backend adapters. Each backend
// wraps one vision-language or OCR inference engine behind the
// driven.Extractor port; the ingest orchestrator tries them in configured
// priority order.
package extraction
