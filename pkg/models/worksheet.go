package models

import (
	"strings"
)

// PartitionKind is the outer key of the worksheet table
type PartitionKind string

const (
	PartitionSheet  PartitionKind = "sheet"
	PartitionFolder PartitionKind = "folder"
)

// PartitionKindFromType maps a request "type" value to its partition.
// Anything other than "folder" is a sheet.
func PartitionKindFromType(t string) PartitionKind {
	if strings.TrimSpace(t) == string(PartitionFolder) {
		return PartitionFolder
	}
	return PartitionSheet
}

// embedSuffix turns a OneDrive document link into an editable embed
const embedSuffix = "action=edit&wdAllowInteractivity=True&wdDownloadButton=True"

// Sheet represents a worksheet link stored in the sheet partition
type Sheet struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Embed     string `json:"embed"`
	Folder    string `json:"folder"`              // "" means unfiled
	CreatedAt string `json:"createdAt,omitempty"` // ISO-8601, assigned by the server
}

// Folder represents a named folder stored in the folder partition
type Folder struct {
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// SheetInput is the caller-supplied part of a sheet before it is written
type SheetInput struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
	URL    string `json:"url"`
	Folder string `json:"folder,omitempty"`
	Embed  string `json:"embed,omitempty"`
}

// EmbedURL derives the embeddable URL for a document link.
// An empty link has no embed, and a link that already carries the suffix is returned as-is.
func EmbedURL(url string) string {
	if url == "" {
		return ""
	}
	if strings.HasSuffix(url, embedSuffix) {
		return url
	}
	separator := "?"
	if strings.Contains(url, "?") {
		separator = "&"
	}
	return url + separator + embedSuffix
}

// ResolveEmbed returns the explicit embed when present, otherwise the derived one
func ResolveEmbed(embed, url string) string {
	if embed != "" {
		return embed
	}
	return EmbedURL(url)
}
