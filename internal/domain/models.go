package domain

import (
	"fmt"
	"image"
	"math"
	"strings"
	"time"
)

// RasterPage is one rendered page of a source document. It is consumed by the
// deck builder and never persisted on its own.
type RasterPage struct {
	Index  int // zero-based page index in the source document
	Image  image.Image
	Width  int
	Height int
}

// MaxRenderScale is the largest resize factor applied to rendered pages.
const MaxRenderScale = 16.0

// ValidScale reports whether scale is a finite factor in (0, MaxRenderScale].
func ValidScale(scale float64) bool {
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return false
	}
	return scale > 0 && scale <= MaxRenderScale
}

// DateRange is the reporting window of a batch run. Dates are kept in the
// YYYYMMDD form the dashboard export expects; dashes are tolerated on input.
type DateRange struct {
	Start string `json:"start" yaml:"start"`
	End   string `json:"end" yaml:"end"`
}

// Compact returns start and end with any dashes removed.
func (r DateRange) Compact() (string, string) {
	return strings.ReplaceAll(r.Start, "-", ""), strings.ReplaceAll(r.End, "-", "")
}

// Validate checks that both ends parse as calendar dates and are ordered.
func (r DateRange) Validate() error {
	start, end := r.Compact()
	s, err := time.Parse("20060102", start)
	if err != nil {
		return ValidationError(fmt.Sprintf("invalid start date %q", r.Start), err)
	}
	e, err := time.Parse("20060102", end)
	if err != nil {
		return ValidationError(fmt.Sprintf("invalid end date %q", r.End), err)
	}
	if e.Before(s) {
		return ValidationError(fmt.Sprintf("end date %s is before start date %s", end, start), nil)
	}
	return nil
}

// VentureConfig is one row of the configuration store.
type VentureConfig struct {
	Venture  string `json:"venture"`
	Brand    string `json:"brand_name"`
	FolderID string `json:"parent_drive_folder_id"`
}

// WorkItem is one unit of batch processing.
type WorkItem struct {
	Brand    string    `json:"brand"`
	Venture  string    `json:"venture"`
	Range    DateRange `json:"date_range"`
	FolderID string    `json:"folder_id,omitempty"` // publishing destination, optional
}

// String identifies the item in logs.
func (w WorkItem) String() string {
	return fmt.Sprintf("%s (%s)", w.Brand, w.Venture)
}

// DeckFileName returns the artifact file name for the item.
func (w WorkItem) DeckFileName() string {
	start, end := w.Range.Compact()
	return fmt.Sprintf("%s_%s_%s.pptx", w.Brand, start, end)
}

// WorkItemsFromConfigs builds work items in row order for a shared date range.
func WorkItemsFromConfigs(rows []VentureConfig, dr DateRange) []WorkItem {
	items := make([]WorkItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, WorkItem{
			Brand:    row.Brand,
			Venture:  row.Venture,
			Range:    dr,
			FolderID: row.FolderID,
		})
	}
	return items
}

// EntryStatus is the outcome of one work item.
type EntryStatus string

const (
	StatusSuccess EntryStatus = "success"
	StatusFailed  EntryStatus = "failed"
)

// ManifestEntry records the outcome of processing one WorkItem.
type ManifestEntry struct {
	Item      WorkItem    `json:"item"`
	DeckPath  string      `json:"deck_path,omitempty"`
	Status    EntryStatus `json:"status"`
	Detail    string      `json:"detail,omitempty"`
	ErrorType ErrorType   `json:"error_type,omitempty"`
	Slides    int         `json:"slides,omitempty"`
	Summaries int         `json:"summaries,omitempty"`
}

// Succeeded reports whether the entry has a usable deck.
func (e ManifestEntry) Succeeded() bool {
	return e.Status == StatusSuccess && e.DeckPath != ""
}

// ObjectKind narrows a cloud storage search.
type ObjectKind string

const (
	KindAny    ObjectKind = ""
	KindFile   ObjectKind = "file"
	KindFolder ObjectKind = "folder"
)

// RemoteObject is a file or folder in cloud storage.
type RemoteObject struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
}

// IsFolder reports whether the object is a folder.
func (o RemoteObject) IsFolder() bool {
	return o.MimeType == FolderMimeType
}

// SearchQuery filters a cloud storage search. Empty fields are ignored.
type SearchQuery struct {
	ParentID string
	Kind     ObjectKind
	Name     string // exact name match
	Filter   string // raw additional filter clause
}

const (
	FolderMimeType       = "application/vnd.google-apps.folder"
	PresentationMimeType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	PDFMimeType          = "application/pdf"
	OctetStreamMimeType  = "application/octet-stream"
)

// MimeTypeFor maps a file type hint to a content type.
func MimeTypeFor(fileType string) string {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case "pdf":
		return PDFMimeType
	case "pptx":
		return PresentationMimeType
	default:
		return OctetStreamMimeType
	}
}

// EventType represents the type of progress event
type EventType string

const (
	EventStart        EventType = "start"
	EventItemStart    EventType = "item_start"
	EventItemStage    EventType = "item_stage"
	EventItemComplete EventType = "item_complete"
	EventError        EventType = "error"
	EventComplete     EventType = "complete"
)

// Event represents a progress event emitted during a batch run
type Event struct {
	Type      EventType      `json:"type"`
	Index     int            `json:"index"`
	Item      WorkItem       `json:"item"`
	Entry     *ManifestEntry `json:"entry,omitempty"`
	Payload   interface{}    `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
