package orchestrator

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"worksheet-sync/internal/enrich"
	"worksheet-sync/internal/localcache"
	"worksheet-sync/pkg/models"

	"github.com/rs/zerolog"
)

// DefaultFolders are always offered, whether or not anything is filed in them
var DefaultFolders = []string{"2026", "pricing"}

// Strategy decides where mutations are persisted
type Strategy int

const (
	// LocalOnly persists every change to the local cache
	LocalOnly Strategy = iota
	// RemoteBacked writes through the worksheet API and falls back to the local cache
	RemoteBacked
)

func (s Strategy) String() string {
	if s == RemoteBacked {
		return "remote"
	}
	return "local"
}

// Options configures an Orchestrator. A nil Remote selects LocalOnly.
type Options struct {
	Remote         Remote
	Cache          Cache
	Enricher       *enrich.Enricher
	SelectedFolder string
	Logger         *zerolog.Logger
}

// Orchestrator owns the client's view of sheets and folders
type Orchestrator struct {
	strategy Strategy
	remote   Remote
	cache    Cache
	enricher *enrich.Enricher
	logger   zerolog.Logger
	now      func() time.Time

	mu         sync.Mutex
	sheets     []models.Sheet
	folders    []string
	selected   string
	started    bool
	authorized bool
	user       string
	notices    []string

	// done channels of enrichment passes still running or persisting
	pending []chan struct{}
}

func New(opts Options) *Orchestrator {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	cache := opts.Cache
	if cache == nil {
		cache = localcache.Noop(logger)
	}
	selected := strings.TrimSpace(opts.SelectedFolder)
	if selected == "" {
		selected = DefaultFolders[0]
	}

	o := &Orchestrator{
		strategy: LocalOnly,
		remote:   opts.Remote,
		cache:    cache,
		enricher: opts.Enricher,
		logger:   logger.With().Str("component", "orchestrator").Logger(),
		now:      time.Now,
		sheets:   make([]models.Sheet, 0),
		folders:  make([]string, 0),
		selected: selected,
	}
	if opts.Remote != nil {
		o.strategy = RemoteBacked
	}
	return o
}

func (o *Orchestrator) Strategy() Strategy {
	return o.strategy
}

// Start seeds state from the local cache. Only the first call has an effect.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.started = true

	o.sheets = o.cache.ReadSheets()
	o.folders = o.cache.ReadFolders()

	if o.enricher != nil {
		overlays := o.enricher.Overlays()
		for id, entry := range o.cache.ReadLastOpened() {
			overlays.Apply(id, enrich.Patch{LastOpened: &entry.Time, LastOpenedBy: &entry.User})
		}
	}
	o.logger.Debug().
		Str("strategy", o.strategy.String()).
		Int("sheets", len(o.sheets)).
		Int("folders", len(o.folders)).
		Msg("seeded from local cache")
}

// Authorize marks the session authorized for user. The first authorization
// loads the shared list and starts enrichment.
func (o *Orchestrator) Authorize(ctx context.Context, user string) {
	o.Start(ctx)

	o.mu.Lock()
	wasAuthorized := o.authorized
	o.authorized = true
	o.user = strings.TrimSpace(user)
	o.mu.Unlock()

	if wasAuthorized {
		return
	}
	if o.strategy == RemoteBacked {
		_ = o.loadRemote(ctx)
	}
	o.enrich(ctx)
}

// Refresh replaces the whole list from its source
func (o *Orchestrator) Refresh(ctx context.Context) error {
	o.Start(ctx)

	if o.strategy == RemoteBacked {
		if err := o.loadRemote(ctx); err != nil {
			return err
		}
	} else {
		o.mu.Lock()
		o.sheets = o.cache.ReadSheets()
		o.folders = o.cache.ReadFolders()
		o.mu.Unlock()
	}
	o.enrich(ctx)
	return nil
}

func (o *Orchestrator) loadRemote(ctx context.Context) error {
	list, err := o.remote.List(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("load shared worksheets")
		o.notify(NoticeLoadFailed)
		return err
	}

	o.mu.Lock()
	o.sheets = slices.Clone(list.Sheets)
	o.folders = slices.Clone(list.Folders)
	o.mu.Unlock()
	return nil
}

// AddSheet saves a sheet remotely when possible, locally otherwise
func (o *Orchestrator) AddSheet(ctx context.Context, input models.SheetInput) (models.Sheet, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.URL = strings.TrimSpace(input.URL)
	input.ID = strings.TrimSpace(input.ID)
	if input.Title == "" || input.URL == "" {
		return models.Sheet{}, ErrInvalidSheet
	}
	input.Folder = strings.TrimSpace(input.Folder)
	if input.Folder == "" {
		input.Folder = o.Selected()
	}

	var sheet models.Sheet
	saved := false
	if o.strategy == RemoteBacked {
		remoteSheet, err := o.remote.CreateSheet(ctx, input)
		if err == nil {
			sheet, saved = remoteSheet, true
		} else {
			o.logger.Warn().Err(err).Str("title", input.Title).Msg("save sheet to server")
			o.notify(NoticeSheetSavedLocally)
		}
	}

	o.mu.Lock()
	if !saved {
		sheet = o.localSheet(input)
	}
	o.sheets = upsertSheet(o.sheets, sheet)
	if !saved {
		o.cache.WriteSheets(slices.Clone(o.sheets))
	}
	o.mu.Unlock()

	if o.enricher != nil {
		o.enricher.Overlays().Apply(sheet.ID, enrich.Seed(enrich.Overlay{EmbedURL: sheet.Embed}))
	}
	o.enrich(ctx)
	return sheet, nil
}

// localSheet builds a sheet the way the server would, with a client-side id
func (o *Orchestrator) localSheet(input models.SheetInput) models.Sheet {
	id := input.ID
	if id == "" {
		id = localID(input.Title, o.now())
	}
	return models.Sheet{
		ID:     id,
		Title:  input.Title,
		URL:    input.URL,
		Embed:  models.ResolveEmbed(input.Embed, input.URL),
		Folder: input.Folder,
	}
}

// AddFolder saves a folder remotely when possible, locally otherwise
func (o *Orchestrator) AddFolder(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidFolder
	}

	if o.strategy == RemoteBacked {
		saved, err := o.remote.CreateFolder(ctx, name)
		if err == nil {
			o.mu.Lock()
			if !slices.Contains(o.folders, saved) {
				o.folders = append(o.folders, saved)
			}
			o.mu.Unlock()
			return saved, nil
		}
		o.logger.Warn().Err(err).Str("folder", name).Msg("save folder to server")
		o.notify(NoticeFolderSavedLocally)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if slices.Contains(o.folders, name) || slices.Contains(DefaultFolders, name) {
		return name, nil
	}
	o.folders = append(o.folders, name)
	o.cache.WriteFolders(slices.Clone(o.folders))
	return name, nil
}

// Delete removes a sheet or folder remotely when possible, locally otherwise
func (o *Orchestrator) Delete(ctx context.Context, kind models.PartitionKind, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrMissingID
	}

	removedRemotely := false
	if o.strategy == RemoteBacked {
		if err := o.remote.Delete(ctx, kind, id); err != nil {
			o.logger.Warn().Err(err).Str("id", id).Msg("delete on server")
			o.notify(NoticeDeletedLocally)
		} else {
			removedRemotely = true
		}
	}

	o.mu.Lock()
	if kind == models.PartitionFolder {
		o.folders = slices.DeleteFunc(o.folders, func(f string) bool { return f == id })
		if !removedRemotely {
			o.cache.WriteFolders(slices.Clone(o.folders))
		}
		o.mu.Unlock()
		return nil
	}
	o.sheets = slices.DeleteFunc(o.sheets, func(s models.Sheet) bool { return s.ID == id })
	if !removedRemotely {
		o.cache.WriteSheets(slices.Clone(o.sheets))
	}
	o.mu.Unlock()

	o.enrich(ctx)
	return nil
}

// Open records that the authorized user opened the sheet and returns its overlay
func (o *Orchestrator) Open(ctx context.Context, id string) (enrich.Overlay, error) {
	o.mu.Lock()
	known := slices.ContainsFunc(o.sheets, func(s models.Sheet) bool { return s.ID == id })
	user := o.user
	o.mu.Unlock()
	if !known {
		return enrich.Overlay{}, ErrUnknownSheet
	}
	if o.enricher == nil {
		return enrich.Overlay{}, nil
	}

	overlay := o.enricher.MarkOpened(id, user)
	o.persistLastOpened()
	return overlay, nil
}

// enrich starts a metadata pass over the current sheets when authorized
func (o *Orchestrator) enrich(ctx context.Context) {
	o.mu.Lock()
	if !o.authorized || o.enricher == nil {
		o.mu.Unlock()
		return
	}
	sheets := slices.Clone(o.sheets)
	done := make(chan struct{})
	o.pending = append(o.pending, done)
	o.mu.Unlock()

	pass := o.enricher.Enrich(context.WithoutCancel(ctx), sheets)
	go func() {
		pass.Wait()
		o.persistLastOpened()

		o.mu.Lock()
		o.pending = slices.DeleteFunc(o.pending, func(c chan struct{}) bool { return c == done })
		o.mu.Unlock()
		close(done)
	}()
}

// WaitForEnrichment blocks until every started enrichment pass has finished,
// including passes started while waiting.
func (o *Orchestrator) WaitForEnrichment() {
	for {
		o.mu.Lock()
		pending := slices.Clone(o.pending)
		o.mu.Unlock()
		if len(pending) == 0 {
			return
		}
		for _, done := range pending {
			<-done
		}
	}
}

// persistLastOpened writes known last-opened times of current sheets to the cache.
// A sheet without a known time keeps the entry already cached for it.
func (o *Orchestrator) persistLastOpened() {
	if o.enricher == nil {
		return
	}
	overlays := o.enricher.Overlays().Snapshot()

	o.mu.Lock()
	defer o.mu.Unlock()
	previous := o.cache.ReadLastOpened()
	entries := make(map[string]localcache.LastOpened)
	for _, sheet := range o.sheets {
		overlay, ok := overlays[sheet.ID]
		if !ok || overlay.LastOpened == "" || overlay.LastOpened == enrich.Unavailable {
			if entry, cached := previous[sheet.ID]; cached {
				entries[sheet.ID] = entry
			}
			continue
		}
		entries[sheet.ID] = localcache.LastOpened{Time: overlay.LastOpened, User: overlay.LastOpenedBy}
	}
	o.cache.WriteLastOpened(entries)
}

func (o *Orchestrator) notify(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notices = append(o.notices, message)
}

// Notices returns and clears the pending notices
func (o *Orchestrator) Notices() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	notices := o.notices
	o.notices = nil
	return notices
}

func (o *Orchestrator) Sheets() []models.Sheet {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.sheets)
}

// Folders lists default folders, known folders and folders referenced by sheets,
// each once in first-seen order
func (o *Orchestrator) Folders() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	folders := make([]string, 0, len(DefaultFolders)+len(o.folders))
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		folders = append(folders, name)
	}
	for _, name := range DefaultFolders {
		add(name)
	}
	for _, name := range o.folders {
		add(name)
	}
	for _, sheet := range o.sheets {
		add(sheet.Folder)
	}
	return folders
}

// SheetsIn lists the sheets filed in folder plus the unfiled ones
func (o *Orchestrator) SheetsIn(folder string) []models.Sheet {
	o.mu.Lock()
	defer o.mu.Unlock()

	sheets := make([]models.Sheet, 0)
	for _, sheet := range o.sheets {
		if sheet.Folder == folder || sheet.Folder == "" {
			sheets = append(sheets, sheet)
		}
	}
	return sheets
}

func (o *Orchestrator) Overlay(id string) (enrich.Overlay, bool) {
	if o.enricher == nil {
		return enrich.Overlay{}, false
	}
	return o.enricher.Overlays().Get(id)
}

// Select changes the folder new sheets are filed in
func (o *Orchestrator) Select(folder string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.selected = strings.TrimSpace(folder)
}

func (o *Orchestrator) Selected() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected
}

func (o *Orchestrator) User() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user
}

// upsertSheet replaces the sheet with the same id or appends it
func upsertSheet(sheets []models.Sheet, sheet models.Sheet) []models.Sheet {
	if i := slices.IndexFunc(sheets, func(s models.Sheet) bool { return s.ID == sheet.ID }); i >= 0 {
		sheets[i] = sheet
		return sheets
	}
	return append(sheets, sheet)
}

// localID derives an id from the title and the current time, like "q1-pricing-1767225600000"
func localID(title string, now time.Time) string {
	slug := strings.Join(strings.Fields(strings.ToLower(title)), "-")
	return slug + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}
