// Package bindgen drives an external binding generator over an ordered list of C headers.
// A run brackets the per-header generation calls between a prepare and a finalize step, tolerates
// failures of individual headers and reports the size of the resulting artifact.
package bindgen
