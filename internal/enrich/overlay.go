package enrich

import (
	"maps"
	"sync"
)

// Overlay is the client-only metadata shown next to a sheet
type Overlay struct {
	LastOpened   string `json:"lastOpened"`
	LastOpenedBy string `json:"lastOpenedBy"`
	Loading      bool   `json:"loading"`
	EmbedURL     string `json:"embedUrl"`
}

// Patch is a partial Overlay. Nil fields are left alone by Merge.
type Patch struct {
	LastOpened   *string
	LastOpenedBy *string
	Loading      *bool
	EmbedURL     *string
}

// Merge applies patch on top of old
func Merge(old Overlay, patch Patch) Overlay {
	merged := old
	if patch.LastOpened != nil {
		merged.LastOpened = *patch.LastOpened
	}
	if patch.LastOpenedBy != nil {
		merged.LastOpenedBy = *patch.LastOpenedBy
	}
	if patch.Loading != nil {
		merged.Loading = *patch.Loading
	}
	if patch.EmbedURL != nil {
		merged.EmbedURL = *patch.EmbedURL
	}
	return merged
}

// Seed is the patch that replaces every field of an overlay
func Seed(o Overlay) Patch {
	return Patch{
		LastOpened:   &o.LastOpened,
		LastOpenedBy: &o.LastOpenedBy,
		Loading:      &o.Loading,
		EmbedURL:     &o.EmbedURL,
	}
}

// Store holds overlays keyed by sheet id. Entries are never removed.
// Opens are numbered so results of lookups started earlier can be told apart.
type Store struct {
	overlays map[string]Overlay
	opens    map[string]uint64
	seq      uint64
	mu       sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		overlays: make(map[string]Overlay),
		opens:    make(map[string]uint64),
	}
}

// Generation returns the number of opens recorded so far
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq
}

// Open applies patch and records it as the latest open of id
func (s *Store) Open(id string, patch Patch) Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.opens[id] = s.seq
	merged := Merge(s.overlays[id], patch)
	s.overlays[id] = merged
	return merged
}

// ApplySince merges patch like Apply, but keeps lastOpened when id was
// opened after generation since.
func (s *Store) ApplySince(id string, patch Patch, since uint64) Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opens[id] > since {
		patch.LastOpened = nil
	}
	merged := Merge(s.overlays[id], patch)
	s.overlays[id] = merged
	return merged
}

// Apply merges patch into the overlay for id, creating it if needed
func (s *Store) Apply(id string, patch Patch) Overlay {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := Merge(s.overlays[id], patch)
	s.overlays[id] = merged
	return merged
}

func (s *Store) Get(id string) (Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overlay, exists := s.overlays[id]
	return overlay, exists
}

// Snapshot returns a copy of every overlay
func (s *Store) Snapshot() map[string]Overlay {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return maps.Clone(s.overlays)
}
