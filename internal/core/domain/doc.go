// Package domain contains the core entities and business rules for vidhik.
// It has no dependencies on adapters or infrastructure.
package domain
