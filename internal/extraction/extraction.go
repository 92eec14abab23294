package extraction

import (
	"context"

	"github.com/datallboy/gorom/internal/storage"
)

// Extractor defines the behavior for expanding archives into the document tree
type Extractor interface {
	// Expand materializes every entry of archive under dest, in stored order.
	// Returns the number of files written. On failure nothing it created is left behind.
	Expand(ctx context.Context, archive storage.Node, dest storage.Node) (int, error)

	// CanExtract checks if this extractor can handle the given file.
	CanExtract(archive storage.Node) (bool, error)

	// Returns the human-readable name of this extractor (e.g. "ZIP")
	Name() string
}
