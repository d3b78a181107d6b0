// Package export renders published article payloads to downloadable
// documents.
package export

import "errors"

// Format is the export output format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatHTML Format = "html"
)

// Request names the article and version to export. Version is "latest" or a
// revision commit hash.
type Request struct {
	ArticleID string
	Version   string
	Format    Format
}

// Result is the rendered document.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates no Chrome runtime is available.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
	// ErrUnsupportedFormat indicates the requested format is not exportable.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
