package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/datallboy/gorom/internal/domain"
)

const DefaultChunkSize = 64 * 1024

// UnknownTotal is passed as total when the source declared no length.
const UnknownTotal int64 = -1

type ProgressFunc func(domain.TransferProgress)

// Copy streams src into dst through a single chunkSize buffer. onProgress runs after
// every chunk written, unthrottled. Cancellation is checked between chunks; a chunk
// in flight is always finished. Partial output is left for the caller to clean up.
//
// Read failures wrap domain.ErrNetwork unless the source already classified them as
// domain.ErrArchiveCorrupt. Write failures wrap domain.ErrStorage.
func Copy(ctx context.Context, src io.Reader, dst io.Writer, total int64, chunkSize int, onProgress ProgressFunc) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	buf := make([]byte, chunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("transfer stopped after %d bytes: %w", written, domain.ErrCancelled)
		}

		n, rerr := fill(src, buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr == nil && w < n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return written, fmt.Errorf("write after %d bytes: %w: %w", written, domain.ErrStorage, werr)
			}

			if onProgress != nil {
				onProgress(domain.TransferProgress{Transferred: written, Total: total})
			}
		}

		switch {
		case rerr == nil:
			continue
		case rerr == io.EOF:
			return written, nil
		case errors.Is(rerr, context.Canceled):
			return written, fmt.Errorf("transfer stopped after %d bytes: %w", written, domain.ErrCancelled)
		case errors.Is(rerr, domain.ErrArchiveCorrupt):
			return written, fmt.Errorf("read after %d bytes: %w", written, rerr)
		default:
			return written, fmt.Errorf("read after %d bytes: %w: %w", written, domain.ErrNetwork, rerr)
		}
	}
}

// fill reads until buf is full. Unlike io.ReadFull it passes io.ErrUnexpectedEOF from
// the source through, so a truncated body is never mistaken for a clean end.
func fill(src io.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := src.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
