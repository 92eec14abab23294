package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/infra/logger"
	"github.com/datallboy/gorom/internal/storage"
	"github.com/datallboy/gorom/internal/transfer"
)

// ZIP file signatures (magic bytes)
var zipSignatures = [][]byte{
	{0x50, 0x4B, 0x03, 0x04}, // Standard ZIP
	{0x50, 0x4B, 0x05, 0x06}, // Empty ZIP
	{0x50, 0x4B, 0x07, 0x08}, // Spanned ZIP
}

// Zip expands zip archives through the document provider, one entry at a time,
// with the same bounded chunk buffer the network transfer uses.
type Zip struct {
	prov      *storage.Provisioner
	chunkSize int
	log       *logger.Logger
}

func NewZip(prov *storage.Provisioner, chunkSize int, log *logger.Logger) *Zip {
	if chunkSize <= 0 {
		chunkSize = transfer.DefaultChunkSize
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Zip{prov: prov, chunkSize: chunkSize, log: log}
}

// Name returns the extractor name
func (z *Zip) Name() string {
	return "ZIP"
}

// CanExtract checks if the file is a ZIP archive
func (z *Zip) CanExtract(archive storage.Node) (bool, error) {
	// Extension check
	if !strings.HasSuffix(strings.ToLower(archive.Name), ".zip") {
		return false, nil
	}

	r, size, err := z.prov.Docs().OpenReader(archive)
	if err != nil {
		return false, fmt.Errorf("failed to verify ZIP signature: %w", err)
	}
	defer r.Close()

	return IsZip(r, size), nil
}

// IsZip checks the leading magic bytes against the known ZIP signatures
func IsZip(r io.ReaderAt, size int64) bool {
	if size < 4 {
		return false
	}

	header := make([]byte, 4)
	if _, err := r.ReadAt(header, 0); err != nil {
		return false
	}

	for _, sig := range zipSignatures {
		if bytes.Equal(header, sig) {
			return true
		}
	}
	return false
}

// Expand walks the archive in stored order. If any entry fails, every file and
// directory created by this call is removed before returning.
func (z *Zip) Expand(ctx context.Context, archive storage.Node, dest storage.Node) (int, error) {
	docs := z.prov.Docs()

	r, size, err := docs.OpenReader(archive)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	zr, err := zip.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w: %w", archive.Name, domain.ErrArchiveCorrupt, err)
	}

	x := &expansion{zip: z, dest: dest}
	count := 0

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("expansion of %s stopped: %w", archive.Name, domain.ErrCancelled)
			return 0, x.rollback(err)
		}

		written, err := x.entry(ctx, f)
		if err != nil {
			return 0, x.rollback(err)
		}
		if written {
			count++
		}
	}

	z.log.Debug("Expanded %d files from %s into %s", count, archive.Name, dest.Path)
	return count, nil
}

// expansion tracks what a single Expand call has created so it can be undone.
type expansion struct {
	zip     *Zip
	dest    storage.Node
	created []storage.Node
}

func (x *expansion) entry(ctx context.Context, f *zip.File) (bool, error) {
	name, err := entryPath(f.Name)
	if err != nil {
		return false, err
	}

	isDir := f.FileInfo().IsDir()
	dirParts := strings.Split(name, "/")
	fileName := ""
	if !isDir {
		fileName = dirParts[len(dirParts)-1]
		dirParts = dirParts[:len(dirParts)-1]
	}

	parent := x.dest
	for _, part := range dirParts {
		if part == "" || part == "." {
			continue
		}
		if parent, err = x.dir(parent, part); err != nil {
			return false, err
		}
	}
	if isDir {
		return false, nil
	}

	rc, err := f.Open()
	if err != nil {
		return false, fmt.Errorf("entry %s: %w: %w", f.Name, domain.ErrArchiveCorrupt, err)
	}
	defer rc.Close()

	out, err := x.zip.prov.Docs().CreateChildFile(parent.Path, fileName)
	if err != nil {
		return false, err
	}
	x.created = append(x.created, out)

	w, err := x.zip.prov.Docs().OpenOutputStream(out)
	if err != nil {
		return false, err
	}

	_, err = transfer.Copy(ctx, corruptOnError{rc}, w, int64(f.UncompressedSize64), x.zip.chunkSize, nil)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close %s: %w: %w", out.Path, domain.ErrStorage, cerr)
	}
	if err != nil {
		return false, fmt.Errorf("entry %s: %w", f.Name, err)
	}

	return true, nil
}

// dir provisions name under parent, remembering it when this expansion created it.
func (x *expansion) dir(parent storage.Node, name string) (storage.Node, error) {
	existing, ok, err := x.zip.prov.Find(parent.Path, name)
	if err != nil {
		return storage.Node{}, err
	}
	if ok {
		return existing, nil
	}

	d, err := x.zip.prov.Acquire(parent.Path, name)
	if err != nil {
		return storage.Node{}, err
	}
	x.created = append(x.created, d)
	return d, nil
}

func (x *expansion) rollback(cause error) error {
	docs := x.zip.prov.Docs()
	for i := len(x.created) - 1; i >= 0; i-- {
		if err := docs.Delete(x.created[i]); err != nil {
			x.zip.log.Warn("Failed to remove %s after failed expansion: %v", x.created[i].Path, err)
		}
	}
	x.created = nil
	return cause
}

// entryPath normalizes an entry name and rejects names escaping the destination.
func entryPath(name string) (string, error) {
	clean := path.Clean(strings.ReplaceAll(name, "\\", "/"))
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("entry %s escapes destination: %w", name, domain.ErrArchiveCorrupt)
	}
	return clean, nil
}

// corruptOnError marks read failures of an entry as archive corruption.
type corruptOnError struct {
	r io.Reader
}

func (c corruptOnError) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = fmt.Errorf("%w: %w", domain.ErrArchiveCorrupt, err)
	}
	return n, err
}
