package transfer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/datallboy/gorom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopy_ReportsEveryChunk(t *testing.T) {
	const size = 10 * 1024 * 1024
	src := bytes.NewReader(make([]byte, size))
	var dst bytes.Buffer

	var calls []domain.TransferProgress
	n, err := Copy(context.Background(), src, &dst, size, 64*1024, func(p domain.TransferProgress) {
		calls = append(calls, p)
	})

	require.NoError(t, err)
	assert.EqualValues(t, size, n)
	assert.Equal(t, size, dst.Len())
	require.Len(t, calls, 160)

	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Transferred, calls[i-1].Transferred)
	}
	last := calls[len(calls)-1]
	assert.EqualValues(t, size, last.Transferred)
	assert.Equal(t, 100, last.Percent())
}

func TestCopy_PartialLastChunk(t *testing.T) {
	src := bytes.NewReader(make([]byte, 100))
	var dst bytes.Buffer

	calls := 0
	n, err := Copy(context.Background(), src, &dst, 100, 64, func(domain.TransferProgress) { calls++ })
	require.NoError(t, err)
	assert.EqualValues(t, 100, n)
	assert.Equal(t, 2, calls)
}

func TestCopy_UnknownTotal(t *testing.T) {
	src := bytes.NewReader(make([]byte, 1000))
	var dst bytes.Buffer

	var last domain.TransferProgress
	_, err := Copy(context.Background(), src, &dst, UnknownTotal, 256, func(p domain.TransferProgress) { last = p })
	require.NoError(t, err)
	assert.False(t, last.Known())
	assert.Zero(t, last.Percent())
	assert.EqualValues(t, 1000, last.Transferred)
}

func TestCopy_CancelledBetweenChunks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := bytes.NewReader(make([]byte, 1024))
	var dst bytes.Buffer

	calls := 0
	n, err := Copy(ctx, src, &dst, 1024, 128, func(domain.TransferProgress) {
		calls++
		if calls == 3 {
			cancel()
		}
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.EqualValues(t, 3*128, n)
	assert.Equal(t, 3*128, dst.Len())
}

type brokenReader struct {
	remaining int
}

func (b *brokenReader) Read(p []byte) (int, error) {
	if b.remaining == 0 {
		return 0, io.ErrUnexpectedEOF
	}
	n := min(len(p), b.remaining)
	b.remaining -= n
	return n, nil
}

func TestCopy_TruncatedSourceIsNetworkError(t *testing.T) {
	var dst bytes.Buffer

	_, err := Copy(context.Background(), &brokenReader{remaining: 300}, &dst, 1000, 128, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, domain.FailureNetwork, domain.Classify(err))
}

type fullDisk struct{}

func (fullDisk) Write([]byte) (int, error) { return 0, errors.New("no space left on device") }

func TestCopy_WriteFailureIsStorageError(t *testing.T) {
	_, err := Copy(context.Background(), bytes.NewReader(make([]byte, 10)), fullDisk{}, 10, 4, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorage)
}
