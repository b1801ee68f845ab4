package tablestore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"worksheet-sync/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedBackend holds CreateTable open until release is closed
type gatedBackend struct {
	*MemoryBackend
	release  chan struct{}
	creates  atomic.Int32
	failNext atomic.Bool
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{MemoryBackend: NewMemoryBackend(), release: make(chan struct{})}
}

func (g *gatedBackend) CreateTable(ctx context.Context) error {
	g.creates.Add(1)
	<-g.release
	if g.failNext.CompareAndSwap(true, false) {
		return errors.New("storage account unreachable")
	}
	return g.MemoryBackend.CreateTable(ctx)
}

func TestClient_EnsureReady_ConcurrentColdStart(t *testing.T) {
	backend := newGatedBackend()
	client := NewClient(backend, Options{})

	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.EnsureReady(context.Background())
		}()
	}

	// Give every caller a chance to join the in-flight attempt
	time.Sleep(50 * time.Millisecond)
	close(backend.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), backend.creates.Load(), "provisioning must run once")

	require.NoError(t, client.EnsureReady(context.Background()))
	assert.Equal(t, int32(1), backend.creates.Load(), "ready client must not provision again")
}

func TestClient_EnsureReady_ExistingTableIsSuccess(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.CreateTable(context.Background()))

	client := NewClient(backend, Options{})
	require.NoError(t, client.EnsureReady(context.Background()))
	assert.Equal(t, 2, backend.CreateTableCalls())
}

func TestClient_EnsureReady_RetriesAfterFailure(t *testing.T) {
	backend := newGatedBackend()
	close(backend.release)
	backend.failNext.Store(true)
	client := NewClient(backend, Options{})

	err := client.EnsureReady(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage account unreachable")

	require.NoError(t, client.EnsureReady(context.Background()))
	assert.Equal(t, int32(2), backend.creates.Load())
}

func TestClient_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	client := NewClient(NewMemoryBackend(), Options{})

	sheet := models.Sheet{ID: "quote", Title: "QUOTE", URL: "https://x/y", Embed: models.EmbedURL("https://x/y")}
	require.NoError(t, client.Upsert(ctx, SheetEntity(sheet)))
	require.NoError(t, client.Upsert(ctx, SheetEntity(sheet)))

	rows, err := client.List(ctx, models.PartitionSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sheet, rows[0].Sheet())
}

func TestClient_ConcurrentFolderUpsertsCollapse(t *testing.T) {
	ctx := context.Background()
	client := NewClient(NewMemoryBackend(), Options{})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, client.Upsert(ctx, FolderEntity(models.Folder{Name: "2026"})))
		}()
	}
	wg.Wait()

	rows, err := client.List(ctx, models.PartitionFolder)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2026", rows[0].Folder().Name)
}

func TestClient_DeleteMissingRowIsSuccess(t *testing.T) {
	ctx := context.Background()
	client := NewClient(NewMemoryBackend(), Options{})
	require.NoError(t, client.Upsert(ctx, SheetEntity(models.Sheet{ID: "keep", Title: "Keep", URL: "https://x"})))

	require.NoError(t, client.Delete(ctx, models.PartitionSheet, "missing"))

	rows, err := client.List(ctx, models.PartitionSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "keep", rows[0].RowKey)
}

func TestClient_RejectsBlankKeys(t *testing.T) {
	client := NewClient(NewMemoryBackend(), Options{})

	assert.ErrorIs(t, client.Upsert(context.Background(), Entity{PartitionKey: models.PartitionSheet, RowKey: " "}), ErrInvalidKey)
	assert.ErrorIs(t, client.Delete(context.Background(), models.PartitionSheet, ""), ErrInvalidKey)
}

type failingDeleteBackend struct {
	*MemoryBackend
}

func (f failingDeleteBackend) DeleteEntity(context.Context, models.PartitionKind, string) error {
	return errors.New("403 AuthorizationFailure")
}

func TestClient_DeleteSurfacesBackendRejection(t *testing.T) {
	client := NewClient(failingDeleteBackend{NewMemoryBackend()}, Options{})

	err := client.Delete(context.Background(), models.PartitionFolder, "2026")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403 AuthorizationFailure")
}
