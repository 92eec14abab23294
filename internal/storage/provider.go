package storage

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Node is a file or directory inside the document tree.
type Node struct {
	Path  string
	Name  string
	IsDir bool
}

type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// DocumentProvider is the abstraction over the destination tree. It mirrors the
// operations a document provider offers: no rename, no recursive mkdir.
type DocumentProvider interface {
	ListChildren(dir string) ([]Node, error)
	// CreateChildDirectory returns domain.ErrDirectoryRace when name already exists.
	CreateChildDirectory(dir, name string) (Node, error)
	CreateChildFile(dir, name string) (Node, error)
	OpenOutputStream(file Node) (io.WriteCloser, error)
	OpenReader(file Node) (ReaderAtCloser, int64, error)
	Delete(node Node) error
	Exists(path string) bool
}

// BillyProvider implements DocumentProvider on any go-billy filesystem.
type BillyProvider struct {
	fs billy.Filesystem
}

func NewBillyProvider(fs billy.Filesystem) *BillyProvider {
	return &BillyProvider{fs: fs}
}

// NewOSProvider returns a provider over the host filesystem rooted at root.
func NewOSProvider(root string) *BillyProvider {
	return NewBillyProvider(osfs.New(root))
}

func (b *BillyProvider) ListChildren(dir string) ([]Node, error) {
	infos, err := b.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, storageErr("list", dir, err)
	}

	nodes := make([]Node, 0, len(infos))
	for _, info := range infos {
		nodes = append(nodes, Node{
			Path:  b.fs.Join(dir, info.Name()),
			Name:  info.Name(),
			IsDir: info.IsDir(),
		})
	}
	return nodes, nil
}

func (b *BillyProvider) CreateChildDirectory(dir, name string) (Node, error) {
	path := b.fs.Join(dir, name)

	if _, err := b.fs.Stat(path); err == nil {
		return Node{}, fmt.Errorf("mkdir %s: %w", path, domain.ErrDirectoryRace)
	}

	if err := b.fs.MkdirAll(path, 0755); err != nil {
		return Node{}, storageErr("mkdir", path, err)
	}

	return Node{Path: path, Name: name, IsDir: true}, nil
}

func (b *BillyProvider) CreateChildFile(dir, name string) (Node, error) {
	path := b.fs.Join(dir, name)

	f, err := b.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return Node{}, storageErr("create", path, err)
	}
	if err := f.Close(); err != nil {
		return Node{}, storageErr("create", path, err)
	}

	return Node{Path: path, Name: name}, nil
}

func (b *BillyProvider) OpenOutputStream(file Node) (io.WriteCloser, error) {
	f, err := b.fs.OpenFile(file.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, storageErr("open", file.Path, err)
	}
	return f, nil
}

func (b *BillyProvider) OpenReader(file Node) (ReaderAtCloser, int64, error) {
	info, err := b.fs.Stat(file.Path)
	if err != nil {
		return nil, 0, storageErr("stat", file.Path, err)
	}

	f, err := b.fs.Open(file.Path)
	if err != nil {
		return nil, 0, storageErr("open", file.Path, err)
	}
	return f, info.Size(), nil
}

func (b *BillyProvider) Delete(node Node) error {
	var err error
	if node.IsDir {
		err = util.RemoveAll(b.fs, node.Path)
	} else {
		err = b.fs.Remove(node.Path)
	}

	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return storageErr("delete", node.Path, err)
	}
	return nil
}

func (b *BillyProvider) Exists(path string) bool {
	_, err := b.fs.Stat(path)
	return err == nil
}

func storageErr(op, path string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, path, domain.ErrStorage, err)
}
