package extraction

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/datallboy/gorom/internal/storage"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	data []byte
}

func buildZip(t *testing.T, entries []entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Store})
		require.NoError(t, err)
		if e.data != nil {
			_, err = w.Write(e.data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// corruptEntry flips the first data byte of entry idx so its CRC no longer matches.
func corruptEntry(t *testing.T, archive []byte, idx int) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(t, err)
	off, err := zr.File[idx].DataOffset()
	require.NoError(t, err)

	out := bytes.Clone(archive)
	out[off] ^= 0xFF
	return out
}

type fixture struct {
	prov *storage.Provisioner
	docs *storage.BillyProvider
	zip  *Zip
	dest storage.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs := storage.NewBillyProvider(memfs.New())
	prov := storage.NewProvisioner(docs, nil)
	dest, err := prov.Acquire("/roms/psx", "Final Fantasy VII")
	require.NoError(t, err)
	return &fixture{prov: prov, docs: docs, zip: NewZip(prov, 16, nil), dest: dest}
}

func (f *fixture) writeArchive(t *testing.T, name string, data []byte) storage.Node {
	t.Helper()
	parent, err := f.prov.Acquire("/roms", "psx")
	require.NoError(t, err)
	node, err := f.docs.CreateChildFile(parent.Path, name)
	require.NoError(t, err)
	w, err := f.docs.OpenOutputStream(node)
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return node
}

func (f *fixture) children(t *testing.T, dir string) []string {
	t.Helper()
	nodes, err := f.docs.ListChildren(dir)
	require.NoError(t, err)
	var names []string
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	return names
}

func fiveEntries() []entry {
	return []entry{
		{name: "disc1.cue", data: bytes.Repeat([]byte("a"), 40)},
		{name: "tracks/", data: nil},
		{name: "tracks/disc1.bin", data: bytes.Repeat([]byte("b"), 100)},
		{name: "disc2.cue", data: bytes.Repeat([]byte("c"), 40)},
		{name: "tracks/disc2.bin", data: bytes.Repeat([]byte("d"), 100)},
	}
}

func TestExpand_WritesAllEntries(t *testing.T) {
	f := newFixture(t)
	archive := f.writeArchive(t, "Final Fantasy VII.zip", buildZip(t, fiveEntries()))

	n, err := f.zip.Expand(context.Background(), archive, f.dest)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	assert.ElementsMatch(t, []string{"disc1.cue", "disc2.cue", "tracks"}, f.children(t, f.dest.Path))
	assert.ElementsMatch(t, []string{"disc1.bin", "disc2.bin"}, f.children(t, f.dest.Path+"/tracks"))

	r, size, err := f.docs.OpenReader(storage.Node{Path: f.dest.Path + "/tracks/disc2.bin"})
	require.NoError(t, err)
	defer r.Close()
	assert.EqualValues(t, 100, size)
}

func TestExpand_CorruptEntryRollsBack(t *testing.T) {
	f := newFixture(t)
	data := corruptEntry(t, buildZip(t, fiveEntries()), 3)
	archive := f.writeArchive(t, "Final Fantasy VII.zip", data)

	n, err := f.zip.Expand(context.Background(), archive, f.dest)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrArchiveCorrupt)
	assert.Equal(t, domain.FailureArchiveCorrupt, domain.Classify(err))
	assert.Zero(t, n)

	assert.Empty(t, f.children(t, f.dest.Path))
}

func TestExpand_KeepsPreexistingDirectories(t *testing.T) {
	f := newFixture(t)
	_, err := f.prov.Acquire(f.dest.Path, "tracks")
	require.NoError(t, err)

	data := corruptEntry(t, buildZip(t, fiveEntries()), 4)
	archive := f.writeArchive(t, "Final Fantasy VII.zip", data)

	_, err = f.zip.Expand(context.Background(), archive, f.dest)
	require.ErrorIs(t, err, domain.ErrArchiveCorrupt)

	assert.Equal(t, []string{"tracks"}, f.children(t, f.dest.Path))
	assert.Empty(t, f.children(t, f.dest.Path+"/tracks"))
}

func TestExpand_RejectsEscapingEntries(t *testing.T) {
	f := newFixture(t)
	data := buildZip(t, []entry{
		{name: "ok.bin", data: []byte("fine")},
		{name: "../../etc/passwd", data: []byte("nope")},
	})
	archive := f.writeArchive(t, "evil.zip", data)

	_, err := f.zip.Expand(context.Background(), archive, f.dest)
	require.ErrorIs(t, err, domain.ErrArchiveCorrupt)
	assert.Empty(t, f.children(t, f.dest.Path))
}

func TestExpand_Cancelled(t *testing.T) {
	f := newFixture(t)
	archive := f.writeArchive(t, "game.zip", buildZip(t, fiveEntries()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.zip.Expand(ctx, archive, f.dest)
	require.ErrorIs(t, err, domain.ErrCancelled)
	assert.Empty(t, f.children(t, f.dest.Path))
}

func TestExpand_NotAnArchive(t *testing.T) {
	f := newFixture(t)
	archive := f.writeArchive(t, "game.zip", []byte("this is not a zip file at all"))

	_, err := f.zip.Expand(context.Background(), archive, f.dest)
	require.ErrorIs(t, err, domain.ErrArchiveCorrupt)
}

func TestCanExtract(t *testing.T) {
	f := newFixture(t)

	good := f.writeArchive(t, "game.zip", buildZip(t, fiveEntries()))
	ok, err := f.zip.CanExtract(good)
	require.NoError(t, err)
	assert.True(t, ok)

	renamed := f.writeArchive(t, "game.bin", buildZip(t, fiveEntries()))
	ok, err = f.zip.CanExtract(renamed)
	require.NoError(t, err)
	assert.False(t, ok)

	fake := f.writeArchive(t, "fake.zip", []byte("garbage"))
	ok, err = f.zip.CanExtract(fake)
	require.NoError(t, err)
	assert.False(t, ok)
}
