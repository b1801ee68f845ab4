package onedrive

import (
	"fmt"
	"time"
)

// DriveItem is the subset of a OneDrive driveItem the enricher reads
type DriveItem struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	WebURL               string `json:"webUrl,omitempty"`
	EmbedURL             string `json:"embedUrl,omitempty"`
	LastModifiedDateTime string `json:"lastModifiedDateTime,omitempty"`
	LastAccessedDateTime string `json:"lastAccessedDateTime,omitempty"`
}

// LastOpened returns the modification time, else the access time.
// Timestamps that do not parse count as absent.
func (d DriveItem) LastOpened() (time.Time, bool) {
	for _, raw := range []string{d.LastModifiedDateTime, d.LastAccessedDateTime} {
		if raw == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// APIError is a non-200 answer from the shares API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("shares API failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("shares API failed with status %d: %s", e.StatusCode, e.Body)
}
