// Package chunk splits extracted article text into overlapping word windows
// sized for the embedding model.
package chunk
