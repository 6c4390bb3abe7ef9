// Package services implements the core use cases: document ingestion with
// confidence-ranked extractor fallback, hybrid retrieval with score
// fusion, and index rebuild from the chunk store.
package services
