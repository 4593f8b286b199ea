package repository

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menmos/menmos/pkg/keylock"
)

func newConcurrentDiskRepo(t *testing.T) *ConcurrentRepository {
	t.Helper()
	disk, err := NewDiskRepository(t.TempDir())
	require.NoError(t, err)
	return NewConcurrentRepository(disk, keylock.New(time.Hour, 1000))
}

func TestConcurrentRepository_SaveThenGetRoundTrip(t *testing.T) {
	repo := newConcurrentDiskRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "blob-1", 5, strings.NewReader("hello")))

	rc, size, err := repo.Get(ctx, "blob-1")
	require.NoError(t, err)
	defer rc.Close()
	assert.EqualValues(t, 5, size)

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestConcurrentRepository_SaveBlocksUntilConcurrentGetStreamCloses(t *testing.T) {
	repo := newConcurrentDiskRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "blob-1", 5, strings.NewReader("hello")))

	rc, _, err := repo.Get(ctx, "blob-1")
	require.NoError(t, err)

	saveDone := make(chan struct{})
	go func() {
		_ = repo.Save(ctx, "blob-1", 5, strings.NewReader("world"))
		close(saveDone)
	}()

	select {
	case <-saveDone:
		t.Fatal("Save completed while a Get stream was still open")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, rc.Close()) // releases the read guard carried by the stream

	select {
	case <-saveDone:
	case <-time.After(time.Second):
		t.Fatal("Save never completed after the Get stream closed")
	}
}

func TestConcurrentRepository_ConcurrentGetsDoNotBlockEachOther(t *testing.T) {
	repo := newConcurrentDiskRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "blob-1", 5, strings.NewReader("hello")))

	rc1, _, err := repo.Get(ctx, "blob-1")
	require.NoError(t, err)
	defer rc1.Close()

	done := make(chan struct{})
	go func() {
		rc2, _, err := repo.Get(ctx, "blob-1")
		require.NoError(t, err)
		rc2.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked by first reader's still-open stream")
	}
}

func TestConcurrentRepository_DeleteWaitsForOpenReadStream(t *testing.T) {
	repo := newConcurrentDiskRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "blob-1", 5, strings.NewReader("hello")))

	rc, _, err := repo.Get(ctx, "blob-1")
	require.NoError(t, err)

	deleteDone := make(chan struct{})
	go func() {
		require.NoError(t, repo.Delete(ctx, "blob-1"))
		close(deleteDone)
	}()

	select {
	case <-deleteDone:
		t.Fatal("Delete completed while a Get stream was still open")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, rc.Close())

	select {
	case <-deleteDone:
	case <-time.After(time.Second):
		t.Fatal("Delete never completed after the Get stream closed")
	}
}

func TestConcurrentRepository_GetErrorDoesNotLeakTheLock(t *testing.T) {
	repo := newConcurrentDiskRepo(t)
	ctx := context.Background()

	_, _, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// If the failed Get had leaked its read lock, this Save would hang.
	done := make(chan struct{})
	go func() {
		_ = repo.Save(ctx, "missing", 1, strings.NewReader("x"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Save blocked forever: a failed Get leaked its read lock")
	}
}

func TestConcurrentRepository_Fsync(t *testing.T) {
	repo := newConcurrentDiskRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "blob-1", 5, strings.NewReader("hello")))
	require.NoError(t, repo.Fsync(ctx, "blob-1"))
}

func TestConcurrentRepository_Write(t *testing.T) {
	repo := newConcurrentDiskRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "blob-1", 5, strings.NewReader("hello")))

	n, err := repo.Write(ctx, "blob-1", 0, []byte("H"))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
