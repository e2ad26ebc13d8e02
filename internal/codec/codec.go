package codec

import (
	"io"
	"strings"

	"flowscope/internal/domain"
)

// Importer interface for importing transactions from various upload formats
type Importer interface {
	Parse(r io.Reader) ([]*domain.Transaction, error)
	Format() string
}

// ForFormat returns the importer for a format name or MIME type, or nil
// when the format is unsupported.
func ForFormat(format string) Importer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv", "text/csv":
		return NewCSVImporter()
	case "json", "application/json":
		return NewJSONImporter()
	}
	return nil
}
