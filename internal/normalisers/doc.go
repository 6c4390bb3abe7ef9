// Package normalisers contains text normalisation for extracted page text
// and incoming queries. Both must pass through the same normaliser so that
// identical legal terms produce identical token sequences.
package normalisers
