// Package drive implements the cloud storage collaborator on Google Drive v3,
// plus an in-memory store used for dry runs and tests.
package drive

import (
	"strings"

	"github.com/spherical/autoslides/internal/domain"
)

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// quote renders s as a Drive query string literal.
func quote(s string) string {
	return "'" + quoteEscaper.Replace(s) + "'"
}

// BuildQuery renders a search as a Drive files.list query. Clauses are joined
// with " and " and trashed items are always excluded.
func BuildQuery(q domain.SearchQuery) string {
	var parts []string

	if q.ParentID != "" {
		parts = append(parts, quote(q.ParentID)+" in parents")
	}

	switch q.Kind {
	case domain.KindFolder:
		parts = append(parts, "mimeType='"+domain.FolderMimeType+"'")
	case domain.KindFile:
		parts = append(parts, "mimeType!='"+domain.FolderMimeType+"'")
	}

	if q.Name != "" {
		parts = append(parts, "name = "+quote(q.Name))
	}

	if q.Filter != "" {
		parts = append(parts, q.Filter)
	}

	parts = append(parts, "trashed=false")

	return strings.Join(parts, " and ")
}
