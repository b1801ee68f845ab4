package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"worksheet-sync/internal/enrich"
	"worksheet-sync/internal/localcache"
	"worksheet-sync/internal/providers/onedrive"
	"worksheet-sync/internal/worksheets"
	"worksheet-sync/pkg/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRemote struct {
	mu    sync.Mutex
	fail  bool
	calls int
	list  *worksheets.ListResponse
}

func (f *fakeRemote) call() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return fmt.Errorf("%w: connection refused", ErrRemoteUnavailable)
	}
	return nil
}

func (f *fakeRemote) List(context.Context) (*worksheets.ListResponse, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return f.list, nil
}

func (f *fakeRemote) CreateSheet(_ context.Context, input models.SheetInput) (models.Sheet, error) {
	if err := f.call(); err != nil {
		return models.Sheet{}, err
	}
	return models.Sheet{ID: "server-id", Title: input.Title, URL: input.URL, Folder: input.Folder,
		Embed: models.ResolveEmbed(input.Embed, input.URL), CreatedAt: "2026-01-01T00:00:00.000Z"}, nil
}

func (f *fakeRemote) CreateFolder(_ context.Context, name string) (string, error) {
	return name, f.call()
}

func (f *fakeRemote) Delete(context.Context, models.PartitionKind, string) error {
	return f.call()
}

type staticResolver struct {
	items map[string]*onedrive.DriveItem
}

func (r staticResolver) ResolveShare(_ context.Context, shareURL string) (*onedrive.DriveItem, error) {
	if item, ok := r.items[shareURL]; ok {
		return item, nil
	}
	return nil, errors.New("not shared")
}

func openCache(t *testing.T, path string) *localcache.Cache {
	t.Helper()
	cache, err := localcache.Open(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestNew_Strategy(t *testing.T) {
	assert.Equal(t, LocalOnly, New(Options{}).Strategy())
	assert.Equal(t, RemoteBacked, New(Options{Remote: &fakeRemote{}}).Strategy())
	assert.Equal(t, "2026", New(Options{}).Selected())
}

func TestAddSheet_RemoteSuccessAdoptsServerSheet(t *testing.T) {
	remote := &fakeRemote{}
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	o := New(Options{Remote: remote, Cache: cache, Enricher: enrich.NewEnricher(staticResolver{}, enrich.NewStore(), zerolog.Nop())})
	o.Start(context.Background())

	sheet, err := o.AddSheet(context.Background(), models.SheetInput{Title: "QUOTE", URL: "https://x/y"})
	require.NoError(t, err)

	assert.Equal(t, "server-id", sheet.ID)
	assert.Equal(t, "2026", sheet.Folder)
	assert.Equal(t, []models.Sheet{sheet}, o.Sheets())
	assert.Empty(t, o.Notices())
	// the server owns it, nothing written locally
	assert.Empty(t, cache.ReadSheets())

	overlay, ok := o.Overlay("server-id")
	require.True(t, ok)
	assert.Equal(t, enrich.Overlay{EmbedURL: sheet.Embed}, overlay)
}

func TestAddSheet_RemoteUnreachableSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	cache, err := localcache.Open(path, zerolog.Nop())
	require.NoError(t, err)

	o := New(Options{Remote: NewAPIClient(closedServerURL(t), time.Second), Cache: cache})
	o.Start(context.Background())

	sheet, err := o.AddSheet(context.Background(), models.SheetInput{Title: "Straight Seed Pricing", URL: "https://x/y?e=1", Folder: "pricing"})
	require.NoError(t, err)

	assert.Regexp(t, `^straight-seed-pricing-\d+$`, sheet.ID)
	assert.Equal(t, "https://x/y?e=1&action=edit&wdAllowInteractivity=True&wdDownloadButton=True", sheet.Embed)
	assert.Equal(t, []models.Sheet{sheet}, o.Sheets())
	assert.Equal(t, []string{NoticeSheetSavedLocally}, o.Notices())
	assert.Empty(t, o.Notices())
	require.NoError(t, cache.Close())

	restarted := New(Options{Remote: NewAPIClient(closedServerURL(t), time.Second), Cache: openCache(t, path)})
	restarted.Start(context.Background())
	assert.Equal(t, []models.Sheet{sheet}, restarted.Sheets())
}

func TestAddSheet_AgainstAPIServer(t *testing.T) {
	server := newAPIServer(t)
	o := New(Options{Remote: NewAPIClient(server.URL, time.Second)})

	sheet, err := o.AddSheet(context.Background(), models.SheetInput{Title: "QUOTE", URL: "https://x/y", Folder: "2026"})
	require.NoError(t, err)
	assert.NotEmpty(t, sheet.CreatedAt)

	fresh := New(Options{Remote: NewAPIClient(server.URL, time.Second)})
	fresh.Authorize(context.Background(), "Ari")
	assert.Equal(t, []models.Sheet{sheet}, fresh.Sheets())
	assert.Empty(t, fresh.Notices())
}

func TestAddSheet_ValidationBeforeAnyCall(t *testing.T) {
	remote := &fakeRemote{}
	o := New(Options{Remote: remote})

	_, err := o.AddSheet(context.Background(), models.SheetInput{Title: " ", URL: "https://x"})
	assert.ErrorIs(t, err, ErrInvalidSheet)
	_, err = o.AddSheet(context.Background(), models.SheetInput{Title: "T"})
	assert.ErrorIs(t, err, ErrInvalidSheet)

	assert.Zero(t, remote.calls)
	assert.Empty(t, o.Sheets())
}

func TestAddSheet_SameIDReplaces(t *testing.T) {
	o := New(Options{})

	_, err := o.AddSheet(context.Background(), models.SheetInput{ID: "a", Title: "First", URL: "https://x/1"})
	require.NoError(t, err)
	_, err = o.AddSheet(context.Background(), models.SheetInput{ID: "a", Title: "Second", URL: "https://x/2"})
	require.NoError(t, err)

	sheets := o.Sheets()
	require.Len(t, sheets, 1)
	assert.Equal(t, "Second", sheets[0].Title)
}

func TestAddSheet_ConcurrentAddsAreAllKept(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	o := New(Options{Cache: cache})
	o.Start(context.Background())

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.AddSheet(context.Background(), models.SheetInput{Title: fmt.Sprintf("Sheet %d", i), URL: "https://x/y"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, o.Sheets(), n)
	assert.Len(t, cache.ReadSheets(), n)
}

func TestAddFolder(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	o := New(Options{Cache: cache})
	ctx := context.Background()

	_, err := o.AddFolder(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidFolder)

	name, err := o.AddFolder(ctx, " Quotes ")
	require.NoError(t, err)
	assert.Equal(t, "Quotes", name)

	_, err = o.AddFolder(ctx, "Quotes")
	require.NoError(t, err)
	_, err = o.AddFolder(ctx, "pricing")
	require.NoError(t, err)

	assert.Equal(t, []string{"Quotes"}, cache.ReadFolders())
	assert.Equal(t, []string{"2026", "pricing", "Quotes"}, o.Folders())
}

func TestAddFolder_RemoteFailure(t *testing.T) {
	o := New(Options{Remote: &fakeRemote{fail: true}})

	_, err := o.AddFolder(context.Background(), "Quotes")
	require.NoError(t, err)
	assert.Equal(t, []string{NoticeFolderSavedLocally}, o.Notices())
	assert.Contains(t, o.Folders(), "Quotes")
}

func TestDelete(t *testing.T) {
	remote := &fakeRemote{}
	o := New(Options{Remote: remote})
	ctx := context.Background()

	sheet, err := o.AddSheet(ctx, models.SheetInput{Title: "A", URL: "https://x/a"})
	require.NoError(t, err)

	assert.ErrorIs(t, o.Delete(ctx, models.PartitionSheet, ""), ErrMissingID)

	remote.fail = true
	require.NoError(t, o.Delete(ctx, models.PartitionSheet, sheet.ID))
	assert.Empty(t, o.Sheets())
	assert.Equal(t, []string{NoticeDeletedLocally}, o.Notices())

	remote.fail = false
	_, err = o.AddFolder(ctx, "Quotes")
	require.NoError(t, err)
	require.NoError(t, o.Delete(ctx, models.PartitionFolder, "Quotes"))
	assert.NotContains(t, o.Folders(), "Quotes")
	assert.Empty(t, o.Notices())
}

func TestAuthorize_LoadFailureKeepsLocalState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	cache := openCache(t, path)
	cache.WriteSheets([]models.Sheet{{ID: "local", Title: "Local", URL: "https://x/l"}})
	cache.WriteFolders([]string{"Offline"})

	remote := &fakeRemote{fail: true}
	o := New(Options{Remote: remote, Cache: cache})
	o.Authorize(context.Background(), "Jo")

	assert.Equal(t, []string{NoticeLoadFailed}, o.Notices())
	require.Len(t, o.Sheets(), 1)
	assert.Equal(t, "local", o.Sheets()[0].ID)
	assert.Contains(t, o.Folders(), "Offline")

	// already authorized, no refetch
	o.Authorize(context.Background(), "Jo")
	assert.Equal(t, 1, remote.calls)
}

func TestAuthorize_ReplacesWholesale(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	cache.WriteSheets([]models.Sheet{{ID: "stale", Title: "Stale", URL: "https://x/s"}})

	remote := &fakeRemote{list: &worksheets.ListResponse{
		Sheets:  []models.Sheet{{ID: "shared", Title: "Shared", URL: "https://x/shared", Folder: "2026"}},
		Folders: []string{"Team"},
	}}
	o := New(Options{Remote: remote, Cache: cache})
	o.Authorize(context.Background(), "Ari")

	require.Len(t, o.Sheets(), 1)
	assert.Equal(t, "shared", o.Sheets()[0].ID)
	assert.Equal(t, []string{"2026", "pricing", "Team"}, o.Folders())
	assert.Equal(t, "Ari", o.User())
}

func TestFoldersAndSheetsIn(t *testing.T) {
	o := New(Options{})
	ctx := context.Background()

	_, err := o.AddSheet(ctx, models.SheetInput{ID: "a", Title: "A", URL: "https://x/a", Folder: "Team"})
	require.NoError(t, err)
	_, err = o.AddSheet(ctx, models.SheetInput{ID: "b", Title: "B", URL: "https://x/b", Folder: "2026"})
	require.NoError(t, err)
	_, err = o.AddFolder(ctx, "Archive")
	require.NoError(t, err)

	assert.Equal(t, []string{"2026", "pricing", "Archive", "Team"}, o.Folders())

	in := o.SheetsIn("Team")
	require.Len(t, in, 1)
	assert.Equal(t, "a", in[0].ID)

	o.Select("pricing")
	sheet, err := o.AddSheet(ctx, models.SheetInput{ID: "c", Title: "C", URL: "https://x/c"})
	require.NoError(t, err)
	assert.Equal(t, "pricing", sheet.Folder)
}

func TestEnrichmentAndOpenPersistLastOpened(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	cache := openCache(t, path)
	cache.WriteSheets([]models.Sheet{
		{ID: "good", Title: "Good", URL: "https://1drv.ms/x/good", Embed: "good-embed"},
		{ID: "bad", Title: "Bad", URL: "https://1drv.ms/x/bad", Embed: "bad-embed"},
	})

	enricher := enrich.NewEnricher(staticResolver{items: map[string]*onedrive.DriveItem{
		"https://1drv.ms/x/good": {LastModifiedDateTime: "2026-02-03T04:05:06Z", EmbedURL: "remote-embed"},
	}}, enrich.NewStore(), zerolog.Nop())
	o := New(Options{Cache: cache, Enricher: enricher})

	o.Authorize(context.Background(), "Cedric")
	o.WaitForEnrichment()

	good, _ := o.Overlay("good")
	assert.NotEqual(t, enrich.Unavailable, good.LastOpened)
	assert.Equal(t, "remote-embed", good.EmbedURL)
	bad, _ := o.Overlay("bad")
	assert.Equal(t, enrich.Unavailable, bad.LastOpened)
	assert.Equal(t, "bad-embed", bad.EmbedURL)

	saved := cache.ReadLastOpened()
	assert.Contains(t, saved, "good")
	assert.NotContains(t, saved, "bad")

	overlay, err := o.Open(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, "Cedric", overlay.LastOpenedBy)
	assert.Equal(t, "Cedric", cache.ReadLastOpened()["bad"].User)

	_, err = o.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrUnknownSheet)
}

func TestStart_LoadsLastOpenedIntoOverlay(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	cache.WriteLastOpened(map[string]localcache.LastOpened{"a": {Time: "1/2/2026, 3:04:05 PM", User: "Ari"}})

	o := New(Options{Cache: cache, Enricher: enrich.NewEnricher(staticResolver{}, enrich.NewStore(), zerolog.Nop())})
	o.Start(context.Background())

	overlay, ok := o.Overlay("a")
	require.True(t, ok)
	assert.Equal(t, "1/2/2026, 3:04:05 PM", overlay.LastOpened)
	assert.Equal(t, "Ari", overlay.LastOpenedBy)
}

func TestLocalID(t *testing.T) {
	now := time.UnixMilli(1767225600000)
	assert.Equal(t, "q1-pricing-1767225600000", localID("Q1   Pricing", now))
}

func TestRefresh(t *testing.T) {
	remote := &fakeRemote{list: &worksheets.ListResponse{Sheets: []models.Sheet{}, Folders: []string{}}}
	o := New(Options{Remote: remote})
	o.Authorize(context.Background(), "Ari")
	assert.Empty(t, o.Sheets())

	remote.list = &worksheets.ListResponse{
		Sheets:  []models.Sheet{{ID: "new", Title: "New", URL: "https://x/new"}},
		Folders: []string{},
	}
	require.NoError(t, o.Refresh(context.Background()))
	require.Len(t, o.Sheets(), 1)

	remote.fail = true
	assert.ErrorIs(t, o.Refresh(context.Background()), ErrRemoteUnavailable)
	assert.Len(t, o.Sheets(), 1)
	assert.Equal(t, []string{NoticeLoadFailed}, o.Notices())
}

func TestRefresh_LocalOnlyRereadsCache(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	o := New(Options{Cache: cache})
	o.Start(context.Background())
	assert.Empty(t, o.Sheets())

	cache.WriteSheets([]models.Sheet{{ID: "a", Title: "A", URL: "https://x/a"}})
	require.NoError(t, o.Refresh(context.Background()))
	assert.Len(t, o.Sheets(), 1)
}

type gatedResolver struct {
	gate chan struct{}
	staticResolver
}

func (r gatedResolver) ResolveShare(ctx context.Context, shareURL string) (*onedrive.DriveItem, error) {
	<-r.gate
	return r.staticResolver.ResolveShare(ctx, shareURL)
}

func TestOpenDuringStartupEnrichmentIsKept(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	cache.WriteSheets([]models.Sheet{
		{ID: "shared", Title: "Shared", URL: "https://1drv.ms/x/shared", Embed: "shared-embed"},
		{ID: "private", Title: "Private", URL: "https://1drv.ms/x/private", Embed: "private-embed"},
	})

	gate := make(chan struct{})
	enricher := enrich.NewEnricher(gatedResolver{gate: gate, staticResolver: staticResolver{items: map[string]*onedrive.DriveItem{
		"https://1drv.ms/x/shared": {LastModifiedDateTime: "2020-01-01T00:00:00Z", EmbedURL: "remote-embed"},
	}}}, enrich.NewStore(), zerolog.Nop())
	o := New(Options{Cache: cache, Enricher: enricher})
	ctx := context.Background()

	o.Authorize(ctx, "Ari")
	shared, err := o.Open(ctx, "shared")
	require.NoError(t, err)
	private, err := o.Open(ctx, "private")
	require.NoError(t, err)
	close(gate)
	o.WaitForEnrichment()

	overlay, _ := o.Overlay("shared")
	assert.Equal(t, shared.LastOpened, overlay.LastOpened)
	assert.Equal(t, "Ari", overlay.LastOpenedBy)
	assert.Equal(t, "remote-embed", overlay.EmbedURL)
	assert.False(t, overlay.Loading)

	overlay, _ = o.Overlay("private")
	assert.Equal(t, private.LastOpened, overlay.LastOpened)
	assert.Equal(t, "private-embed", overlay.EmbedURL)

	assert.Equal(t, map[string]localcache.LastOpened{
		"shared":  {Time: shared.LastOpened, User: "Ari"},
		"private": {Time: private.LastOpened, User: "Ari"},
	}, cache.ReadLastOpened())
}

func TestFailedLookupKeepsCachedOpen(t *testing.T) {
	cache := openCache(t, filepath.Join(t.TempDir(), "cache.db"))
	cache.WriteSheets([]models.Sheet{{ID: "s", Title: "S", URL: "https://1drv.ms/x/s", Embed: "e"}})
	cache.WriteLastOpened(map[string]localcache.LastOpened{"s": {Time: "1/2/2026, 3:04:05 PM", User: "Jo"}})

	enricher := enrich.NewEnricher(staticResolver{}, enrich.NewStore(), zerolog.Nop())
	o := New(Options{Cache: cache, Enricher: enricher})
	o.Authorize(context.Background(), "Ari")
	o.WaitForEnrichment()

	overlay, _ := o.Overlay("s")
	assert.Equal(t, enrich.Unavailable, overlay.LastOpened)
	assert.Equal(t, map[string]localcache.LastOpened{"s": {Time: "1/2/2026, 3:04:05 PM", User: "Jo"}}, cache.ReadLastOpened())
}

func TestWaitForEnrichmentWhilePassesStart(t *testing.T) {
	enricher := enrich.NewEnricher(staticResolver{}, enrich.NewStore(), zerolog.Nop())
	o := New(Options{Enricher: enricher})
	ctx := context.Background()
	o.Authorize(ctx, "Ari")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := o.AddSheet(ctx, models.SheetInput{ID: fmt.Sprintf("s%d", i), Title: "T", URL: "https://1drv.ms/x/s"})
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			o.WaitForEnrichment()
		}()
	}
	wg.Wait()
	o.WaitForEnrichment()

	for i := 0; i < 20; i++ {
		overlay, ok := o.Overlay(fmt.Sprintf("s%d", i))
		require.True(t, ok)
		assert.False(t, overlay.Loading)
	}
}
