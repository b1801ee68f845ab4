package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	"worksheet-sync/internal/providers/onedrive"
	"worksheet-sync/pkg/models"

	"github.com/rs/zerolog"
)

const (
	// Unavailable is shown when no last-opened time could be resolved
	Unavailable = "Unavailable"
	// UnknownUser is recorded when a sheet is opened without a display name
	UnknownUser = "Unknown"
	// TimeLayout renders last-opened times in the device's local zone
	TimeLayout = "1/2/2006, 3:04:05 PM"
)

// Resolver looks up the drive item behind a share link
type Resolver interface {
	ResolveShare(ctx context.Context, shareURL string) (*onedrive.DriveItem, error)
}

// Enricher fills sheet overlays with metadata fetched from OneDrive
type Enricher struct {
	resolver Resolver
	overlays *Store
	now      func() time.Time
	location *time.Location
	logger   zerolog.Logger
}

// NewEnricher creates an enricher writing into overlays
func NewEnricher(resolver Resolver, overlays *Store, logger zerolog.Logger) *Enricher {
	return &Enricher{
		resolver: resolver,
		overlays: overlays,
		now:      time.Now,
		location: time.Local,
		logger:   logger.With().Str("component", "enrich").Logger(),
	}
}

// Overlays returns the store the enricher writes to
func (e *Enricher) Overlays() *Store {
	return e.overlays
}

// Pass tracks the fetches started by one Enrich call
type Pass struct {
	wg   sync.WaitGroup
	done chan struct{}
}

// Wait blocks until every fetch of the pass has merged its result
func (p *Pass) Wait() {
	<-p.done
}

// Done is closed once the pass has finished
func (p *Pass) Done() <-chan struct{} {
	return p.done
}

// Enrich starts one independent fetch per sheet and returns without waiting.
// Sheets whose url is not a share link get the fallback overlay right away.
// A sheet opened while its fetch is running keeps the time of that open.
func (e *Enricher) Enrich(ctx context.Context, sheets []models.Sheet) *Pass {
	pass := &Pass{done: make(chan struct{})}
	since := e.overlays.Generation()

	for _, sheet := range sheets {
		if _, err := onedrive.EncodeShareToken(sheet.URL); err != nil {
			e.logger.Debug().Err(err).Str("sheet", sheet.ID).Msg("no share token")
			e.overlays.Apply(sheet.ID, fallback(sheet))
			continue
		}

		loading := true
		e.overlays.Apply(sheet.ID, Patch{Loading: &loading})

		pass.wg.Add(1)
		go func(sheet models.Sheet) {
			defer pass.wg.Done()
			e.overlays.ApplySince(sheet.ID, e.fetch(ctx, sheet), since)
		}(sheet)
	}

	go func() {
		pass.wg.Wait()
		close(pass.done)
	}()
	return pass
}

func (e *Enricher) fetch(ctx context.Context, sheet models.Sheet) Patch {
	item, err := e.resolver.ResolveShare(ctx, sheet.URL)
	if err != nil {
		e.logger.Debug().Err(err).Str("sheet", sheet.ID).Msg("metadata lookup failed")
		return fallback(sheet)
	}

	lastOpened := Unavailable
	if t, ok := item.LastOpened(); ok {
		lastOpened = e.format(t)
	}
	embedURL := item.EmbedURL
	if embedURL == "" {
		embedURL = sheet.Embed
	}
	loading := false
	return Patch{
		LastOpened: &lastOpened,
		Loading:    &loading,
		EmbedURL:   &embedURL,
	}
}

// MarkOpened records that user opened the sheet now
func (e *Enricher) MarkOpened(id, user string) Overlay {
	user = strings.TrimSpace(user)
	if user == "" {
		user = UnknownUser
	}
	now := e.format(e.now())
	return e.overlays.Open(id, Patch{LastOpened: &now, LastOpenedBy: &user})
}

func (e *Enricher) format(t time.Time) string {
	return t.In(e.location).Format(TimeLayout)
}

// fallback keeps lastOpenedBy and shows the sheet's own embed
func fallback(sheet models.Sheet) Patch {
	lastOpened := Unavailable
	loading := false
	embedURL := sheet.Embed
	return Patch{
		LastOpened: &lastOpened,
		Loading:    &loading,
		EmbedURL:   &embedURL,
	}
}
